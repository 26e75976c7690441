package openai

import (
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// Client wraps OpenAI-compatible endpoints for extraction, summarization
// and embeddings. Chat and embedding endpoints can point at different
// providers.
//
// A Client should be created using New.
type Client struct {
	extractionModel string
	summaryModel    string
	embeddingModel  string

	embedDim   int
	timeoutMin int

	reqLock *semaphore.Weighted

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// Params configures a new Client. ChatURL and EmbeddingURL may be empty to
// use the default OpenAI endpoint.
type Params struct {
	ExtractionModel string
	SummaryModel    string
	EmbeddingModel  string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	EmbedDim              int
	TimeoutMin            int
	MaxConcurrentRequests int64
}

// New creates a Client configured with the provided parameters.
func New(params Params) *Client {
	if params.EmbedDim == 0 {
		params.EmbedDim = 1536
	}
	if params.TimeoutMin == 0 {
		params.TimeoutMin = 5
	}
	if params.MaxConcurrentRequests == 0 {
		params.MaxConcurrentRequests = 8
	}

	return &Client{
		extractionModel: params.ExtractionModel,
		summaryModel:    params.SummaryModel,
		embeddingModel:  params.EmbeddingModel,

		embedDim:   params.EmbedDim,
		timeoutMin: params.TimeoutMin,

		reqLock: semaphore.NewWeighted(params.MaxConcurrentRequests),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)
	return &client
}
