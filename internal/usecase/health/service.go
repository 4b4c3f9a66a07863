// Package health aggregates liveness probes of the backends the API depends on.
package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the overall verdict.
type Status string

const (
	Healthy Status = "ok"
	// Degraded means a secondary dependency failed but projects can still be served.
	Degraded Status = "degraded"
	// Unhealthy means the project store itself is unreachable.
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one probe.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

const (
	// CheckDatabase names the project store probe.
	CheckDatabase = "database"
	// CheckEmbedding names the embedding provider probe.
	CheckEmbedding = "embedding"
)

// DefaultProbeTimeout bounds every individual probe.
const DefaultProbeTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker probes the embedding provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// Report lists every probe by name with the overall verdict.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name string
	run  func(ctx context.Context) error
}

// Service runs all probes concurrently, each with its own deadline.
type Service struct {
	primary   probe
	secondary []probe
	timeout   time.Duration
}

// New probes db as the primary store. embedding may be nil.
func New(db Pinger, embedding ProviderChecker) *Service {
	s := &Service{
		primary: probe{name: CheckDatabase, run: db.Ping},
		timeout: DefaultProbeTimeout,
	}
	if embedding != nil {
		s.secondary = append(s.secondary, probe{name: CheckEmbedding, run: embedding.HealthCheck})
	}
	return s
}

// WithDependency adds a secondary backend under name. Its failure degrades
// the report without making it unhealthy. A nil p is ignored.
func (s *Service) WithDependency(name string, p Pinger) *Service {
	if p != nil {
		s.secondary = append(s.secondary, probe{name: name, run: p.Ping})
	}
	return s
}

// WithTimeout overrides DefaultProbeTimeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs every probe and grades the result.
func (s *Service) Check(ctx context.Context) Report {
	all := append([]probe{s.primary}, s.secondary...)
	checks := make(map[string]CheckResult, len(all))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, p := range all {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			r := outcome(p.run(pctx))

			mu.Lock()
			checks[p.name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // probes report through checks, never through the group

	status := Healthy
	switch {
	case checks[CheckDatabase] == CheckError:
		status = Unhealthy
	case len(Failing(checks)) > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

// Failing returns the sorted names of failed checks.
func Failing(checks map[string]CheckResult) []string {
	var out []string
	for name, r := range checks {
		if r == CheckError {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func outcome(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
