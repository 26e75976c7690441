package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// Client is an embedder backed by a locally-hosted Ollama server.
type Client struct {
	embeddingModel string
	embedDim       int
	timeoutMin     int

	reqLock *semaphore.Weighted

	Client *api.Client
}

// Params configures a new Client. BaseURL may be empty to use the Ollama
// default endpoint.
type Params struct {
	EmbeddingModel string
	BaseURL        string
	ApiKey         string

	EmbedDim              int
	TimeoutMin            int
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// New creates an Ollama-backed embedder with the given configuration.
func New(params Params) (*Client, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	if params.EmbedDim == 0 {
		params.EmbedDim = 1024
	}
	if params.TimeoutMin == 0 {
		params.TimeoutMin = 5
	}
	if params.MaxConcurrentRequests == 0 {
		params.MaxConcurrentRequests = 4
	}

	httpClient := http.DefaultClient
	if params.ApiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.ApiKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	return &Client{
		embeddingModel: params.EmbeddingModel,
		embedDim:       params.EmbedDim,
		timeoutMin:     params.TimeoutMin,

		reqLock: semaphore.NewWeighted(params.MaxConcurrentRequests),

		Client: api.NewClient(u, httpClient),
	}, nil
}

// Embed creates a vector embedding for the given input text using the
// configured embedding model on Ollama.
func (c *Client) Embed(ctx context.Context, input []byte) ([]float32, error) {
	if len(strings.TrimSpace(string(input))) == 0 {
		return make([]float32, c.embedDim), nil
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	}

	res, err := c.Client.Embed(rCtx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding in response from model %s", c.embeddingModel)
	}

	out := make([]float32, 0, c.embedDim)
	for _, v := range res.Embeddings[0] {
		if len(out) >= c.embedDim {
			break
		}
		out = append(out, float32(v))
	}
	if len(out) < c.embedDim {
		padded := make([]float32, c.embedDim)
		copy(padded, out)
		out = padded
	}
	return out, nil
}

// EmbedBatch embeds each input in sequence. Ollama has no batch endpoint,
// so this is a loop over Embed.
func (c *Client) EmbedBatch(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		vec, err := c.Embed(ctx, input)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
