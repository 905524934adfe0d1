// Package ratelimit implements the shared token-bucket limiter that
// bounds the ingestion pipeline's outbound request rate: a single
// emitter goroutine paces itself against a golang.org/x/time/rate
// limiter and tops up a permit channel one token at a time, and every
// fetcher blocks on that channel before issuing a request.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter hands out permits at a fixed rate via a FIFO channel fed
// by a single goroutine, mirroring the worker-pool producer/consumer
// shape this codebase already uses for fan-out (symbol channel -> N
// workers), here specialized to one producer and many consumers.
type Limiter struct {
	permits chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// New starts the emitter goroutine and returns a Limiter that issues
// one permit every 1/requestsPerSecond seconds until Stop is called.
func New(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Limiter{
		permits: make(chan struct{}),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go l.emit(ctx, rate.NewLimiter(rate.Limit(requestsPerSecond), 1))
	return l
}

func (l *Limiter) emit(ctx context.Context, rl *rate.Limiter) {
	defer close(l.done)

	for {
		if err := rl.Wait(ctx); err != nil {
			return
		}
		select {
		case l.permits <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case <-l.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the emitter goroutine and waits for it to exit. A
// stopped Limiter's Acquire calls will block until their context is
// itself cancelled. cmd/ingest builds one Limiter per process, shares
// it across every timeframe pass, and stops it only when it exits.
func (l *Limiter) Stop() {
	l.cancel()
	<-l.done
}
