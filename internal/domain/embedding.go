package domain

import (
	"context"
	"fmt"
)

// Embedder turns one text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder turns many texts into vectors with one upstream call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker reports whether the embedding provider is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens spent on it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text, in input order,
// plus the tokens spent on the whole batch.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

func (b *BatchEmbeddingResult) add(i int, r EmbeddingResult) {
	b.Embeddings[i] = r.Embedding
	b.PromptTokens += r.PromptTokens
	b.TotalTokens += r.TotalTokens
}

// EmbedEach embeds texts one call at a time and stops at the first failure.
func EmbedEach(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		r, err := e.Embed(ctx, texts[i])
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d: %w", i, err)
		}
		out.add(i, r)
	}
	return out, nil
}

// EmbedMany prefers the native batch call of e and falls back to EmbedEach.
func EmbedMany(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	be, ok := e.(BatchEmbedder)
	if !ok {
		return EmbedEach(ctx, e, texts)
	}
	return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // callers add context
}

// InstructionEmbedder prefixes every text with a fixed instruction, as
// instruction-tuned models expect. It sits outermost in the chain so cache
// keys include the instruction.
type InstructionEmbedder struct {
	inner  Embedder
	prefix string
}

// NewInstructionEmbedder wraps inner with the given instruction prefix.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, prefix: instruction}
}

func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := e.inner.Embed(ctx, e.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return r, nil
}

func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	withPrefix := make([]string, 0, len(texts))
	for _, t := range texts {
		withPrefix = append(withPrefix, e.prefix+t)
	}
	r, err := EmbedMany(ctx, e.inner, withPrefix)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed: %w", err)
	}
	return r, nil
}

// HealthCheck is a no-op unless the wrapped embedder can check itself.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := e.inner.(HealthChecker)
	if !ok {
		return nil
	}
	return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
}
