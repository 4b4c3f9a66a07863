package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/domain"
	"github.com/kailas-cloud/simproj/internal/metrics"
)

// DefaultMaxAPIBatchSize bounds the texts sent in one upstream call.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker gates upstream calls on the token budget.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	Remaining(p Period) int64
}

// InstrumentedEmbedder enforces the token budget around the provider, splits
// large batches into API-sized chunks and logs each call. Transport metrics
// are recorded one layer down in transport/openai.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	budget    BudgetChecker
	chunkSize int
	provider  string
	logger    *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. A nil budget disables enforcement and
// chunkSize <= 0 falls back to DefaultMaxAPIBatchSize.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, chunkSize int, logger *zap.Logger,
) *InstrumentedEmbedder {
	if chunkSize <= 0 {
		chunkSize = DefaultMaxAPIBatchSize
	}
	return &InstrumentedEmbedder{
		inner:     inner,
		budget:    budget,
		chunkSize: chunkSize,
		provider:  provider,
		logger:    logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.admit(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	began := time.Now()
	res, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.logger.Error("embedding failed", zap.Duration("duration", time.Since(began)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	p.spend(res.TotalTokens)

	p.logger.Debug("embedded",
		zap.Duration("duration", time.Since(began)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed sends texts in chunks of at most chunkSize. The budget is
// re-checked before every chunk, so an exhausted budget stops a long import
// part way through instead of overspending.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	began := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for lo := 0; lo < len(texts); lo += p.chunkSize {
		if err := p.admit(ctx, len(texts)-lo); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		hi := min(lo+p.chunkSize, len(texts))
		res, err := domain.EmbedMany(ctx, p.inner, texts[lo:hi])
		if err != nil {
			p.logger.Error("batch embedding failed", zap.Int("offset", lo), zap.Int("size", hi-lo), zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed [%d:%d]: %w", lo, hi, err)
		}

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		p.spend(res.TotalTokens)
	}

	p.logger.Debug("batch embedded",
		zap.Duration("duration", time.Since(began)),
		zap.Int("texts", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck defers to the provider; embedders without a check are healthy.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedder health: %w", err)
	}
	return nil
}

// admit consults the budget before pending texts go upstream.
func (p *InstrumentedEmbedder) admit(ctx context.Context, pending int) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx); err != nil {
		p.logger.Warn("embedding budget exhausted", zap.Int("pending_texts", pending), zap.Error(err))
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

// spend records tokens against the budget and refreshes the remaining gauges.
func (p *InstrumentedEmbedder) spend(tokens int) {
	if p.budget == nil || tokens <= 0 {
		return
	}
	p.budget.Record(int64(tokens))
	for _, period := range []Period{PeriodDaily, PeriodMonthly} {
		remaining := p.budget.Remaining(period)
		metrics.EmbeddingBudgetTokensRemaining.WithLabelValues(p.provider, string(period)).Set(float64(remaining))
	}
}
