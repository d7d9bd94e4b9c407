package resilience

import (
	"context"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CircuitBreaker trips on a fixed failure-rate threshold measured over a
// rolling window, and recovers through a bounded number of half-open
// probes. A networked store backend holds one breaker per remote
// endpoint and consults Allow before issuing a call.
//
// jug's call volume against a breaker is one Dump/Load/Remove per task
// per scheduler pass — nowhere near the request rate an adaptive,
// periodically-recomputed threshold is meant to smooth over, so unlike a
// high-QPS RPC client's breaker this one does not retune itself from
// recent volatility; failureRateOpen is fixed for the breaker's
// lifetime.
type CircuitBreaker struct {
	mu sync.Mutex

	backend           string
	minSamples        int
	failureRateOpen   float64
	halfOpenAfter     time.Duration
	maxHalfOpenProbes int

	openedAt       time.Time
	state          breakerState
	window         *slidingWindow
	halfOpenProbes int
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

var (
	breakerInstrumentsOnce sync.Once
	circuitOpened          metric.Int64Counter
	circuitClosed          metric.Int64Counter
)

func initBreakerInstruments() {
	meter := otel.Meter("jug")
	circuitOpened, _ = meter.Int64Counter("jug_resilience_circuit_open_total")
	circuitClosed, _ = meter.Int64Counter("jug_resilience_circuit_closed_total")
}

// NewCircuitBreaker constructs a breaker for backend (used only as a
// metric label) using a rolling window of windowSize split into buckets.
func NewCircuitBreaker(backend string, windowSize time.Duration, buckets int, minSamples int, failureRateOpen float64, halfOpenAfter time.Duration, maxHalfOpenProbes int) *CircuitBreaker {
	breakerInstrumentsOnce.Do(initBreakerInstruments)
	if buckets <= 0 {
		buckets = 1
	}
	return &CircuitBreaker{
		backend:           backend,
		minSamples:        minSamples,
		failureRateOpen:   math.Min(math.Max(failureRateOpen, 0), 1),
		halfOpenAfter:     halfOpenAfter,
		maxHalfOpenProbes: maxHalfOpenProbes,
		state:             stateClosed,
		window:            newSlidingWindow(windowSize, buckets),
	}
}

// Allow reports whether a call may proceed given the breaker's state.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateOpen:
		if time.Since(c.openedAt) >= c.halfOpenAfter {
			c.state = stateHalfOpen
			// this call is the first half-open probe
			c.halfOpenProbes = 1
		} else {
			return false
		}
	case stateHalfOpen:
		if c.halfOpenProbes >= c.maxHalfOpenProbes {
			return false
		}
		c.halfOpenProbes++
	}
	return true
}

// RecordResult records a success or failure outcome for the most recent
// call permitted by Allow.
func (c *CircuitBreaker) RecordResult(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.add(success)

	switch c.state {
	case stateClosed:
		total, failures := c.window.stats()
		if total >= c.minSamples && float64(failures)/float64(total) >= c.failureRateOpen {
			c.transitionToOpen()
		}
	case stateHalfOpen:
		if !success {
			c.transitionToOpen()
		} else if c.halfOpenProbes >= c.maxHalfOpenProbes {
			c.reset()
		}
	case stateOpen:
	}
}

func (c *CircuitBreaker) transitionToOpen() {
	c.state = stateOpen
	c.openedAt = time.Now()
	circuitOpened.Add(context.Background(), 1, metric.WithAttributes(attribute.String("backend", c.backend)))
}

func (c *CircuitBreaker) reset() {
	c.state = stateClosed
	c.openedAt = time.Time{}
	c.window.reset()
	circuitClosed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("backend", c.backend)))
}

// slidingWindow counts successes and failures in fixed-size time buckets
// spanning size, used to compute a rolling failure rate without keeping
// every individual call result.
type slidingWindow struct {
	size     time.Duration
	buckets  int
	interval time.Duration
	data     []bucket
	nowFn    func() time.Time
}

type bucket struct {
	success, fail int
	// slot is the absolute interval number the counts belong to.
	slot int64
}

func newSlidingWindow(size time.Duration, buckets int) *slidingWindow {
	return &slidingWindow{
		size:     size,
		buckets:  buckets,
		interval: size / time.Duration(buckets),
		data:     make([]bucket, buckets),
		nowFn:    time.Now,
	}
}

func (w *slidingWindow) currentIndex(now time.Time) int {
	return int(now.UnixNano()/w.interval.Nanoseconds()) % w.buckets
}

// add records a single outcome, clearing the target bucket first: once
// the wall clock has moved on to a bucket's next occurrence, its old
// counts are stale and must not be folded into the new period.
func (w *slidingWindow) add(success bool) {
	now := w.nowFn()
	idx := w.currentIndex(now)
	slot := now.UnixNano() / w.interval.Nanoseconds()
	if w.data[idx].slot != slot {
		w.data[idx] = bucket{slot: slot}
	}
	if success {
		w.data[idx].success++
	} else {
		w.data[idx].fail++
	}
}

func (w *slidingWindow) stats() (total int, failures int) {
	cur := w.nowFn().UnixNano() / w.interval.Nanoseconds()
	for _, b := range w.data {
		if cur-b.slot >= int64(w.buckets) {
			continue
		}
		total += b.success + b.fail
		failures += b.fail
	}
	return
}

func (w *slidingWindow) reset() {
	for i := range w.data {
		w.data[i] = bucket{}
	}
}
