package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/domain"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// Period names a budget window.
type Period string

// Budget windows.
const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// Limits configures a BudgetTracker. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
	Action  BudgetAction
}

// retention is how long a window's counter outlives the window itself.
func (p Period) retention() time.Duration {
	if p == PeriodDaily {
		return 48 * time.Hour
	}
	return 62 * 24 * time.Hour
}

// BudgetStore keeps window counters shared between replicas.
type BudgetStore interface {
	// Add increments key and returns the new total. ttl applies to a fresh key only.
	Add(ctx context.Context, key string, tokens int64, ttl time.Duration) (int64, error)
	// Load returns the counter at key, zero when absent.
	Load(ctx context.Context, key string) (int64, error)
}

// Usage is a snapshot of consumed tokens in the current windows.
type Usage struct {
	Daily   int64
	Monthly int64
}

// BudgetTracker counts embedding tokens per day and month.
// Check is served from memory; Record writes behind to the store when one is attached.
type BudgetTracker struct {
	mu       sync.Mutex
	used     Usage
	limits   Limits
	provider string
	dayStart time.Time
	monStart time.Time
	now      func() time.Time
	store    BudgetStore
	logger   *zap.Logger
}

// NewBudgetTracker creates a budget tracker for provider.
func NewBudgetTracker(provider string, limits Limits, logger *zap.Logger) *BudgetTracker {
	if limits.Action == "" {
		limits.Action = BudgetActionWarn
	}
	b := &BudgetTracker{
		limits:   limits,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	now := b.now()
	b.dayStart = startOfDay(now)
	b.monStart = startOfMonth(now)
	return b
}

// WithStore attaches a persistence store and loads the counters of the current windows.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	for _, p := range []Period{PeriodDaily, PeriodMonthly} {
		key := b.key(p, now)
		val, err := store.Load(ctx, key)
		if err != nil {
			b.logger.Warn("Failed to load budget counter", zap.String("key", key), zap.Error(err))
			continue
		}
		if p == PeriodDaily {
			b.used.Daily = val
		} else {
			b.used.Monthly = val
		}
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.used.Daily),
		zap.Int64("monthly_used", b.used.Monthly),
	)
	return b
}

func (b *BudgetTracker) key(p Period, t time.Time) string {
	layout := "2006-01-02"
	if p == PeriodMonthly {
		layout = "2006-01"
	}
	return fmt.Sprintf("%sbudget:%s:%s:%s", domain.KeyPrefix, b.provider, p, t.Format(layout))
}

// Check returns ErrEmbeddingQuotaExceeded when a window is exhausted and the action is reject.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	if !b.exceeded() {
		return nil
	}
	if b.limits.Action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.used.Daily),
		zap.Int64("daily_limit", b.limits.Daily),
		zap.Int64("monthly_used", b.used.Monthly),
		zap.Int64("monthly_limit", b.limits.Monthly),
	)
	return nil
}

func (b *BudgetTracker) exceeded() bool {
	return (b.limits.Daily > 0 && b.used.Daily >= b.limits.Daily) ||
		(b.limits.Monthly > 0 && b.used.Monthly >= b.limits.Monthly)
}

// Record adds consumed tokens to both windows.
func (b *BudgetTracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	b.roll()
	b.used.Daily += tokens
	b.used.Monthly += tokens
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request: a cancelled caller must not lose the increment.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, p := range []Period{PeriodDaily, PeriodMonthly} {
		key := b.key(p, now)
		total, err := store.Add(ctx, key, tokens, p.retention())
		if err != nil {
			b.logger.Warn("Failed to persist budget counter", zap.String("key", key), zap.Error(err))
			continue
		}
		b.sync(p, key, total)
	}
}

// sync raises the local counter to the shared total so spend by other
// replicas counts against this one too. Stale windows are ignored.
func (b *BudgetTracker) sync(p Period, key string, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	if b.key(p, b.now()) != key {
		return
	}
	used := &b.used.Daily
	if p == PeriodMonthly {
		used = &b.used.Monthly
	}
	*used = max(*used, total)
}

// Remaining returns tokens left in the period, -1 when unlimited.
func (b *BudgetTracker) Remaining(p Period) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	limit, used := b.limits.Daily, b.used.Daily
	if p == PeriodMonthly {
		limit, used = b.limits.Monthly, b.used.Monthly
	}
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// Used returns a snapshot of the current counters.
func (b *BudgetTracker) Used() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.used
}

// Limits returns the configured limits.
func (b *BudgetTracker) Limits() Limits { return b.limits }

// roll zeroes counters when the day or month changes. Caller holds mu.
func (b *BudgetTracker) roll() {
	now := b.now()
	if day := startOfDay(now); day.After(b.dayStart) {
		b.used.Daily = 0
		b.dayStart = day
	}
	if mon := startOfMonth(now); mon.After(b.monStart) {
		b.used.Monthly = 0
		b.monStart = mon
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
