package worker

import (
	"context"
	"log/slog"
	"time"

	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/audit/metrics"
	"ledger/pkg/platform/audit/publishers/breaker"
)

const (
	defaultInboxSize      = 1024
	defaultPublishTimeout = 5 * time.Second
)

// Sink delivers one change set to a downstream system.
type Sink interface {
	Publish(ctx context.Context, set audit.ChangeSet) error
}

// Worker drains persisted change sets from an in-memory inbox and hands them
// to a sink. Failures are logged and counted, never returned to requests.
type Worker struct {
	sink           Sink
	inbox          chan audit.ChangeSet
	breaker        *breaker.Breaker
	logger         *slog.Logger
	metrics        *metrics.Metrics
	publishTimeout time.Duration
}

// Option configures the Worker.
type Option func(*Worker)

// WithInboxSize sets the inbox capacity.
func WithInboxSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.inbox = make(chan audit.ChangeSet, n)
		}
	}
}

// WithBreaker guards the sink with a circuit breaker.
func WithBreaker(b *breaker.Breaker) Option {
	return func(w *Worker) {
		w.breaker = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithPublishTimeout bounds a single delivery.
func WithPublishTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.publishTimeout = d
		}
	}
}

func NewWorker(sink Sink, opts ...Option) *Worker {
	w := &Worker{
		sink:           sink,
		inbox:          make(chan audit.ChangeSet, defaultInboxSize),
		logger:         slog.Default(),
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Offer enqueues set without blocking. It reports false when the inbox is full.
func (w *Worker) Offer(set audit.ChangeSet) bool {
	select {
	case w.inbox <- set:
		return true
	default:
		w.metrics.IncFanoutDropped("inbox_full")
		return false
	}
}

// Run delivers change sets until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case set := <-w.inbox:
			w.deliver(ctx, set)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, set audit.ChangeSet) {
	if w.breaker != nil && !w.breaker.Allow() {
		w.metrics.IncFanoutDropped("circuit_open")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()

	if err := w.sink.Publish(pubCtx, set); err != nil {
		w.metrics.IncFanoutDropped("publish_failed")
		open := false
		if w.breaker != nil {
			open = w.breaker.RecordFailure()
			w.metrics.SetCircuitBreakerState(open)
		}
		w.logger.ErrorContext(ctx, "audit change set fan-out failed",
			"header_id", set.HeaderID,
			"request_id", set.RequestID,
			"circuit_open", open,
			"error", err,
		)
		return
	}

	if w.breaker != nil {
		w.breaker.RecordSuccess()
		w.metrics.SetCircuitBreakerState(false)
	}
	w.metrics.IncFanoutPublished()
}
