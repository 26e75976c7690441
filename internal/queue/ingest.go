package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/trellis-kg/trellis/internal/storage"
	"github.com/trellis-kg/trellis/pkg/loader"
	"github.com/trellis-kg/trellis/pkg/logger"
	"github.com/trellis-kg/trellis/pkg/pipeline"
)

// Ingestor processes ingest messages: it pulls the raw payloads from
// object storage and drives the cognify pipeline over them.
type Ingestor struct {
	S3       *s3.Client
	Executor *pipeline.Executor
	Tasks    []pipeline.Task
}

func (i *Ingestor) Process(ctx context.Context, body []byte) error {
	var msg IngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshaling ingest message: %w", err)
	}
	if msg.Dataset == "" || len(msg.Documents) == 0 {
		return fmt.Errorf("ingest message missing dataset or documents")
	}

	documents := make([]pipeline.DocumentInput, 0, len(msg.Documents))
	for _, ref := range msg.Documents {
		content, err := storage.GetDocument(ctx, i.S3, ref.Key)
		if err != nil {
			return fmt.Errorf("fetching document %s: %w", ref.Key, err)
		}
		content, err = loader.ExtractText(ref.Name, ref.MimeType, content)
		if err != nil {
			return fmt.Errorf("extracting text from %s: %w", ref.Name, err)
		}
		documents = append(documents, pipeline.DocumentInput{
			Name:     ref.Name,
			MimeType: ref.MimeType,
			Content:  content,
		})
	}

	run, err := i.Executor.Run(ctx, pipeline.RunSpec{
		RunID:     msg.RunID,
		Dataset:   msg.Dataset,
		Pipeline:  msg.Pipeline,
		Documents: documents,
		Tasks:     i.Tasks,
	})
	if err != nil {
		return err
	}

	logger.Info("Ingest run finished",
		"run_id", run.ID,
		"dataset", run.Dataset,
		"units", run.CompletedUnits(),
	)
	return nil
}
