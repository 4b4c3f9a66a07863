package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/simproj/internal/domain/usage"
	embeddinguc "github.com/kailas-cloud/simproj/internal/usecase/embedding"
)

// Service handles usage reporting.
type Service struct {
	br       BudgetReader
	provider string
	now      func() time.Time
}

// New creates a Service. br can be nil (no budget configured, nothing counted).
func New(br BudgetReader, provider string) *Service {
	return &Service{
		br:       br,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetReport builds a usage report for the current day or month.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	budgetPeriod := embeddinguc.PeriodMonthly
	if period == domusage.PeriodDay {
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
		budgetPeriod = embeddinguc.PeriodDaily
	}

	if s.br == nil {
		return domusage.NewReport(period, start, end, s.provider, 0, 0, -1)
	}

	used, limits := s.br.Used(), s.br.Limits()
	tokens, limit := used.Monthly, limits.Monthly
	if budgetPeriod == embeddinguc.PeriodDaily {
		tokens, limit = used.Daily, limits.Daily
	}
	return domusage.NewReport(period, start, end, s.provider, tokens, limit, s.br.Remaining(budgetPeriod))
}
