package usage

import embeddinguc "github.com/kailas-cloud/simproj/internal/usecase/embedding"

// BudgetReader exposes the token budget counters.
type BudgetReader interface {
	Used() embeddinguc.Usage
	Limits() embeddinguc.Limits
	Remaining(p embeddinguc.Period) int64
}
