// Package resilience provides retry-with-backoff and circuit-breaking
// helpers for the networked store backends (kv and hybrid).
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	retryInstrumentsOnce sync.Once
	retryAttempts        metric.Int64Counter
	retrySuccesses       metric.Int64Counter
	retryFailures        metric.Int64Counter
)

func initRetryInstruments() {
	meter := otel.Meter("jug")
	retryAttempts, _ = meter.Int64Counter("jug_resilience_retry_attempts_total")
	retrySuccesses, _ = meter.Int64Counter("jug_resilience_retry_success_total")
	retryFailures, _ = meter.Int64Counter("jug_resilience_retry_fail_total")
}

// maxBackoff bounds a single store call's retry delay well under the
// scheduler's own stall-and-sleep interval (§4.3): a wedged networked
// call should fail back to the scheduler's "unknown state, retry next
// pass" handling quickly rather than stalling one worker's pass waiting
// on a single task.
const maxBackoff = 5 * time.Second

// Retry re-issues a single store call (Dump/Load/Remove against the
// NATS-backed kv and hybrid backends; their lock operations and existence
// checks call NATS directly, without Retry) with exponential backoff and full
// jitter. backend labels every metric emitted ("natskv", "hybrid") so a
// fault storm against one backend is distinguishable from the other.
// Every error Retry ultimately returns is a store fault in §4.2's sense:
// the caller reports it up to the backend's Store method, which the
// scheduler treats as "unknown state for this pass," never a fatal
// error.
func Retry[T any](ctx context.Context, backend string, attempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	retryInstrumentsOnce.Do(initRetryInstruments)
	var zero T
	if attempts <= 0 {
		return zero, nil
	}
	attrs := metric.WithAttributes(attribute.String("backend", backend))

	backoff := delay
	var finalErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn()
		retryAttempts.Add(ctx, 1, attrs)
		if err == nil {
			retrySuccesses.Add(ctx, 1, attrs)
			return v, nil
		}
		finalErr = err
		// The caller's own context is already done; further attempts
		// would just re-fail for the same reason, so stop immediately
		// instead of burning the retry budget.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if attempt == attempts-1 {
			break
		}
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		wait := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			retryFailures.Add(ctx, 1, attrs)
			return zero, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	retryFailures.Add(ctx, 1, attrs)
	return zero, finalErr
}
