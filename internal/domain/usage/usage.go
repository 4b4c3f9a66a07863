// Package usage describes embedding token consumption reports.
package usage

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/simproj/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. Empty means month.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodMonth:
		return PeriodMonth, nil
	case PeriodDay:
		return PeriodDay, nil
	default:
		return "", fmt.Errorf("period must be %q or %q, got %q: %w", PeriodDay, PeriodMonth, s, domain.ErrInvalidInput)
	}
}

// Report is the embedding token budget state for one window.
// A zero limit means unlimited; Remaining is then -1.
type Report struct {
	period    Period
	start     time.Time
	end       time.Time
	provider  string
	used      int64
	limit     int64
	remaining int64
}

// NewReport creates a usage report for the window [start, end).
func NewReport(period Period, start, end time.Time, provider string, used, limit, remaining int64) Report {
	return Report{
		period:    period,
		start:     start,
		end:       end,
		provider:  provider,
		used:      used,
		limit:     limit,
		remaining: remaining,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the window start.
func (r *Report) PeriodStart() time.Time { return r.start }

// PeriodEnd returns the window end, which is also when the budget resets.
func (r *Report) PeriodEnd() time.Time { return r.end }

// Provider returns the embedding provider label.
func (r *Report) Provider() string { return r.provider }

// TokensUsed returns tokens consumed in the window.
func (r *Report) TokensUsed() int64 { return r.used }

// TokensLimit returns the token cap, 0 when unlimited.
func (r *Report) TokensLimit() int64 { return r.limit }

// TokensRemaining returns tokens left, -1 when unlimited.
func (r *Report) TokensRemaining() int64 { return r.remaining }

// Exhausted reports whether a limited budget is spent.
func (r *Report) Exhausted() bool { return r.limit > 0 && r.remaining <= 0 }
