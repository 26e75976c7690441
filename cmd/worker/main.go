package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trellis-kg/trellis/internal/queue"
	"github.com/trellis-kg/trellis/internal/storage"
	"github.com/trellis-kg/trellis/internal/stores"
	"github.com/trellis-kg/trellis/internal/util"
	"github.com/trellis-kg/trellis/pkg/chunker"
	"github.com/trellis-kg/trellis/pkg/extract"
	"github.com/trellis-kg/trellis/pkg/extract/ollama"
	"github.com/trellis-kg/trellis/pkg/extract/openai"
	"github.com/trellis-kg/trellis/pkg/graph"
	"github.com/trellis-kg/trellis/pkg/logger"
	"github.com/trellis-kg/trellis/pkg/logger/console"
	"github.com/trellis-kg/trellis/pkg/ontology"
	"github.com/trellis-kg/trellis/pkg/pipeline"
	"github.com/trellis-kg/trellis/pkg/store"
	"github.com/trellis-kg/trellis/pkg/summary"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init s3 client
	s3Client := storage.NewS3Client(ctx)

	// Init stores
	st, err := stores.Open(ctx)
	if err != nil {
		logger.Fatal("Failed to open stores", "err", err)
	}
	defer st.Close()

	// AI clients
	openaiClient := openai.New(openai.Params{
		ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
		SummaryModel:    util.GetEnv("AI_CHAT_SUMMARY_MODEL"),
		EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),

		ChatURL:      util.GetEnv("AI_CHAT_URL"),
		ChatKey:      util.GetEnv("AI_CHAT_KEY"),
		EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
		EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),

		MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 8)),
	})

	var embedder extract.Embedder = openaiClient
	if util.GetEnv("AI_ADAPTER") == "ollama" {
		client, err := ollama.New(ollama.Params{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			BaseURL:        util.GetEnv("AI_EMBED_URL"),
			ApiKey:         util.GetEnv("AI_EMBED_KEY"),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		embedder = client
	}

	// Chunking
	counter, err := chunker.TiktokenCounter(util.GetEnvString("CHUNK_ENCODING", "o200k_base"))
	if err != nil {
		logger.Fatal("Failed to load token encoding", "err", err)
	}
	maxTokens := int(util.GetEnvNumeric("CHUNK_MAX_TOKENS", 512))
	textChunker := chunker.New(chunker.SentenceStrategy{MaxTokens: maxTokens, Count: counter})
	csvChunker := chunker.New(chunker.CSVStrategy{MaxTokens: maxTokens, Count: counter})

	// Ontology
	var resolver *ontology.Resolver
	if path := os.Getenv("ONTOLOGY_PATH"); path != "" {
		onto, err := ontology.LoadFile(path)
		if err != nil {
			logger.Fatal("Failed to load ontology", "path", path, "err", err)
		}
		resolver = ontology.NewResolver(onto, ontology.DefaultThreshold)
		logger.Info("Loaded ontology", "classes", onto.Len())
	}

	var summarizer *summary.Summarizer
	if util.GetEnv("AI_CHAT_SUMMARY_MODEL") != "" {
		summarizer = summary.New(openaiClient)
	}

	writer := store.NewWriter(st.Relational, st.Vector, st.Graph, util.BackoffParams{})
	executor := pipeline.NewExecutor(st.Relational, writer, int(util.GetEnvNumeric("PIPELINE_CONCURRENCY", 4)))
	tasks := pipeline.CognifyTasks(pipeline.CognifyParams{
		Chunker:    textChunker,
		CSVChunker: csvChunker,
		Adapter:    openaiClient,
		Embedder:   embedder,
		Deduper:    graph.NewDeduper(st.Graph, resolver),
		Summarizer: summarizer,
	})

	ingestor := &queue.Ingestor{
		S3:       s3Client,
		Executor: executor,
		Tasks:    tasks,
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	// One message at a time; a run can take minutes
	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.IngestQueue,
		"ingest_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "err", err)
	}

	logger.Info("Listening for messages")

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed")
					return
				}

				startTime := time.Now()
				logger.Info("Received message", "queue", queue.IngestQueue)

				if err := ingestor.Process(ctx, msg.Body); err != nil {
					logger.Error("Error processing message", "err", err)
					queue.HandleProcessingError(consumerCh, msg, queue.IngestQueue)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "duration", time.Since(startTime).Round(time.Second))
				}
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
