package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pinger struct{ err error }

func (p *pinger) Ping(context.Context) error { return p.err }

type provider struct{ err error }

func (p *provider) HealthCheck(context.Context) error { return p.err }

// slowPinger blocks until its context ends.
type slowPinger struct{}

func (slowPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCheck(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name    string
		svc     *Service
		status  Status
		failing []string
	}{
		{
			name:   "all healthy",
			svc:    New(&pinger{}, &provider{}).WithDependency("sessions", &pinger{}),
			status: Healthy,
		},
		{
			name:    "database down",
			svc:     New(&pinger{err: down}, &provider{}),
			status:  Unhealthy,
			failing: []string{CheckDatabase},
		},
		{
			name:    "secondary failures degrade",
			svc:     New(&pinger{}, &provider{err: down}).WithDependency("sessions", &pinger{err: down}),
			status:  Degraded,
			failing: []string{CheckEmbedding, "sessions"},
		},
		{
			name:   "nil dependencies are skipped",
			svc:    New(&pinger{}, nil).WithDependency("cache", nil),
			status: Healthy,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.svc.Check(context.Background())
			assert.Equal(t, tc.status, r.Status)
			assert.Equal(t, tc.failing, Failing(r.Checks))
		})
	}
}

func TestCheck_ReportsEveryProbe(t *testing.T) {
	r := New(&pinger{}, &provider{}).WithDependency("sessions", &pinger{}).Check(context.Background())

	assert.Equal(t, map[string]CheckResult{
		CheckDatabase:  CheckOK,
		CheckEmbedding: CheckOK,
		"sessions":     CheckOK,
	}, r.Checks)
}

func TestCheck_ProbeTimeout(t *testing.T) {
	svc := New(&pinger{}, nil).
		WithDependency("sessions", slowPinger{}).
		WithTimeout(20 * time.Millisecond)

	began := time.Now()
	r := svc.Check(context.Background())

	assert.Less(t, time.Since(began), time.Second)
	assert.Equal(t, Degraded, r.Status)
	assert.Equal(t, CheckError, r.Checks["sessions"])
}
