package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/audit/publishers/breaker"
)

type recordingSink struct {
	mu   sync.Mutex
	sets []audit.ChangeSet
	err  error
	done chan struct{}
}

func newRecordingSink(err error) *recordingSink {
	return &recordingSink{err: err, done: make(chan struct{}, 16)}
}

func (s *recordingSink) Publish(_ context.Context, set audit.ChangeSet) error {
	s.mu.Lock()
	s.sets = append(s.sets, set)
	s.mu.Unlock()
	s.done <- struct{}{}
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerDelivers(t *testing.T) {
	sink := newRecordingSink(nil)
	w := NewWorker(sink, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.True(t, w.Offer(audit.ChangeSet{HeaderID: 1}))
	require.True(t, w.Offer(audit.ChangeSet{HeaderID: 2}))

	for range 2 {
		select {
		case <-sink.done:
		case <-time.After(time.Second):
			t.Fatal("change set not delivered")
		}
	}
	assert.Equal(t, 2, sink.count())

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestWorkerOfferDropsWhenFull(t *testing.T) {
	w := NewWorker(newRecordingSink(nil), WithInboxSize(1), WithLogger(quietLogger()))
	assert.True(t, w.Offer(audit.ChangeSet{HeaderID: 1}))
	assert.False(t, w.Offer(audit.ChangeSet{HeaderID: 2}))
}

func TestWorkerBreakerSkipsSink(t *testing.T) {
	sink := newRecordingSink(errors.New("broker down"))
	b := breaker.New("kafka", breaker.WithThreshold(1), breaker.WithCooldown(time.Hour))
	w := NewWorker(sink, WithBreaker(b), WithLogger(quietLogger()))

	ctx := context.Background()
	w.deliver(ctx, audit.ChangeSet{HeaderID: 1})
	assert.True(t, b.IsOpen())

	w.deliver(ctx, audit.ChangeSet{HeaderID: 2})
	assert.Equal(t, 1, sink.count(), "open breaker must skip delivery")
}
