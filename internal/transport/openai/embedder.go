// Package openai talks to OpenAI-compatible embedding APIs.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/domain"
	"github.com/kailas-cloud/simproj/internal/metrics"
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is sent to models that support shortened embeddings. 0 omits it.
	Dimensions int
	User       string
	// Provider labels metrics and logs, e.g. "openai" or "tei".
	Provider string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Embedder calls the /embeddings endpoint and records transport metrics.
type Embedder struct {
	client *openai.Client
	req    openai.EmbeddingRequest
	labels [2]string // provider, model
	logger *zap.Logger
}

// NewEmbedder builds a client for cfg. An empty BaseURL targets api.openai.com.
func NewEmbedder(cfg *Config) *Embedder {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client: openai.NewClientWithConfig(cc),
		req: openai.EmbeddingRequest{
			Model:          openai.EmbeddingModel(cfg.Model),
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
			User:           cfg.User,
			Dimensions:     max(cfg.Dimensions, 0),
		},
		labels: [2]string{cfg.Provider, cfg.Model},
		logger: logger,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	resp, err := e.call(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// BatchEmbed embeds all texts in one request. Providers may answer out of
// order, so vectors are placed by their reported index.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	resp, err := e.call(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	vectors, err := e.inOrder(resp.Data, len(texts))
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// inOrder checks that data holds exactly one vector per input index.
func (e *Embedder) inOrder(data []openai.Embedding, n int) ([][]float32, error) {
	if len(data) != n {
		e.countError("count_mismatch")
		return nil, fmt.Errorf("got %d embeddings for %d inputs: %w", len(data), n, domain.ErrEmbeddingProviderError)
	}
	out := make([][]float32, n)
	for _, d := range data {
		if d.Index < 0 || d.Index >= n || out[d.Index] != nil {
			e.countError("bad_index")
			return nil, fmt.Errorf("unexpected embedding index %d: %w", d.Index, domain.ErrEmbeddingProviderError)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *Embedder) call(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
	req := e.req
	req.Input = input

	began := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	elapsed := time.Since(began)

	switch {
	case err != nil:
		e.countRequest("error")
		e.countError("api_error")
		e.logger.Warn("embedding API call failed",
			zap.String("provider", e.labels[0]),
			zap.Int("inputs", len(input)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return openai.EmbeddingResponse{}, classify(err)
	case len(resp.Data) == 0:
		e.countRequest("error")
		e.countError("empty_response")
		return openai.EmbeddingResponse{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	e.countRequest("success")
	metrics.EmbeddingRequestDuration.WithLabelValues(e.labels[:]...).Observe(elapsed.Seconds())
	if u := resp.Usage; u.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.labels[0], e.labels[1], "prompt").Add(float64(u.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.labels[0], e.labels[1], "total").Add(float64(u.TotalTokens))
	}
	return resp, nil
}

func (e *Embedder) countRequest(status string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.labels[0], e.labels[1], status).Inc()
}

func (e *Embedder) countError(kind string) {
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.labels[0], e.labels[1], kind).Inc()
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classify wraps an upstream failure in the matching domain error.
// HTTP 429 becomes ErrRateLimited; everything else is a provider error.
func classify(err error) error {
	var (
		status  int
		message string
	)
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &reqErr):
		status, message = reqErr.HTTPStatusCode, detail(reqErr.Body)
	case errors.As(err, &apiErr):
		status, message = apiErr.HTTPStatusCode, apiErr.Message
	default:
		return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}

	sentinel := domain.ErrEmbeddingProviderError
	if status == http.StatusTooManyRequests {
		sentinel = domain.ErrRateLimited
	}
	return fmt.Errorf("embedding API error %d: %s: %w", status, message, sentinel)
}

// detail pulls the "detail" field that TEI-style servers put in error bodies,
// falling back to the raw body.
func detail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return string(body)
}
