package db

import (
	"context"
	"fmt"
	"time"
)

const (
	readyFirstDelay = 50 * time.Millisecond
	readyMaxDelay   = time.Second
)

// WaitReady calls ping until it succeeds or timeout elapses. The first probe
// is immediate; later ones back off exponentially up to one second. On timeout
// the last ping error is reported alongside the backend name.
func WaitReady(ctx context.Context, backend string, timeout time.Duration, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := readyFirstDelay
	for {
		err := ping(ctx)
		if err == nil {
			return nil
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s not ready after %s: %w", backend, timeout, err)
		case <-t.C:
		}
		delay = min(delay*2, readyMaxDelay)
	}
}
