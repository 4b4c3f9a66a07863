package domain

import (
	"context"
	"sync/atomic"
)

type requestUsageKey struct{}

// RequestUsage tallies embedding calls made while serving one request.
// Bulk imports record from several batches, so it is safe for concurrent use.
type RequestUsage struct {
	calls  atomic.Int64
	tokens atomic.Int64
}

// WithRequestUsage attaches a fresh tally to ctx.
func WithRequestUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := new(RequestUsage)
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// RequestUsageFrom returns the tally attached to ctx, nil outside a request.
func RequestUsageFrom(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// Record counts one embedding call billed at tokens. A cache hit records zero.
// Nil receivers are ignored.
func (u *RequestUsage) Record(tokens int) {
	if u == nil {
		return
	}
	u.calls.Add(1)
	u.tokens.Add(int64(tokens))
}

// Embedded reports whether any embedding call was recorded.
func (u *RequestUsage) Embedded() bool { return u != nil && u.calls.Load() > 0 }

// Tokens returns the billed total.
func (u *RequestUsage) Tokens() int64 {
	if u == nil {
		return 0
	}
	return u.tokens.Load()
}
