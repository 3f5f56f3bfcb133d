// Package audit records who called which endpoint and which fields of which
// rows changed as a result.
//
// The Writer never takes part in the business transaction. Begin and Complete
// each run in their own unit of work, and AttachChanges runs after the
// business commit. Failures are reported to the caller, who logs and drops
// them: an audit outage must never change the HTTP outcome of a request.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ledger/pkg/platform/audit/metrics"
	"ledger/pkg/requestcontext"
)

//go:generate mockgen -source=writer.go -destination=mocks/mocks.go -package=mocks Store

// Store persists headers and their field changes.
type Store interface {
	// CreateHeader inserts h and sets h.ID.
	CreateHeader(ctx context.Context, h *Header) error
	// CompleteHeader fills the outcome half of an existing header.
	// Returns sentinel.ErrNotFound if no header has that id.
	CompleteHeader(ctx context.Context, id int64, outcome Outcome) error
	// AppendChanges inserts field changes for an existing header atomically.
	// Returns sentinel.ErrNotFound if no header has that id.
	AppendChanges(ctx context.Context, headerID int64, changes []FieldChange) error
}

// Publisher receives persisted change sets for asynchronous fan-out.
// Offer must not block; it reports false when the set was dropped.
type Publisher interface {
	Offer(set ChangeSet) bool
}

// WriteFailure reports that field changes could not be persisted.
// It is returned instead of a plain error so call sites handle it
// explicitly as a non-fatal outcome.
type WriteFailure struct {
	HeaderID int64
	Count    int
	Err      error
}

func (f *WriteFailure) Error() string {
	return fmt.Sprintf("attach %d field changes to audit header %d: %v", f.Count, f.HeaderID, f.Err)
}

func (f *WriteFailure) Unwrap() error {
	return f.Err
}

// Writer is the single entry point for writing the audit log.
type Writer struct {
	store     Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher Publisher
}

// Option configures the Writer.
type Option func(*Writer)

// WithLogger sets a logger for fan-out diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) {
		w.metrics = m
	}
}

// WithPublisher enables fan-out of persisted change sets.
func WithPublisher(p Publisher) Option {
	return func(w *Writer) {
		w.publisher = p
	}
}

// NewWriter creates a Writer on top of store.
func NewWriter(store Store, opts ...Option) *Writer {
	w := &Writer{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Begin persists the request half of a header and returns its id.
// The outcome fields of draft are ignored.
func (w *Writer) Begin(ctx context.Context, draft Header) (int64, error) {
	h := draft
	if h.CorrelationID == uuid.Nil {
		h.CorrelationID = uuid.New()
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}
	if h.UserName == "" {
		h.UserName = requestcontext.AnonymousUser
	}
	Outcome{}.Apply(&h)

	if err := w.store.CreateHeader(ctx, &h); err != nil {
		w.metrics.IncWriteFailure(metrics.StageBegin)
		return 0, fmt.Errorf("begin audit header: %w", err)
	}
	w.metrics.IncHeadersBegun()
	return h.ID, nil
}

// Complete records the response half of header id. It never creates a header.
func (w *Writer) Complete(ctx context.Context, id int64, outcome Outcome) error {
	if err := w.store.CompleteHeader(ctx, id, outcome); err != nil {
		w.metrics.IncWriteFailure(metrics.StageComplete)
		return fmt.Errorf("complete audit header %d: %w", id, err)
	}
	w.metrics.IncHeadersCompleted()
	return nil
}

// AttachChanges persists committed field changes under header id.
// A nil result means the changes are stored. A panicking store is reported
// as a failure as well.
func (w *Writer) AttachChanges(ctx context.Context, headerID int64, changes []FieldChange) (failure *WriteFailure) {
	if len(changes) == 0 {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			w.metrics.IncWriteFailure(metrics.StageAttach)
			failure = &WriteFailure{HeaderID: headerID, Count: len(changes), Err: fmt.Errorf("audit store panic: %v", r)}
		}
	}()

	rows := make([]FieldChange, len(changes))
	for i, c := range changes {
		c.HeaderID = headerID
		if c.EntityID == "" {
			c.EntityID = UnknownEntityKey
		}
		rows[i] = c
	}

	if err := w.store.AppendChanges(ctx, headerID, rows); err != nil {
		w.metrics.IncWriteFailure(metrics.StageAttach)
		return &WriteFailure{HeaderID: headerID, Count: len(rows), Err: err}
	}
	w.metrics.AddChangesRecorded(len(rows))

	if w.publisher != nil {
		set := ChangeSet{
			HeaderID:   headerID,
			RequestID:  requestcontext.RequestID(ctx),
			UserName:   requestcontext.UserName(ctx),
			RecordedAt: time.Now().UTC(),
			Changes:    rows,
		}
		if !w.publisher.Offer(set) {
			w.logger.WarnContext(ctx, "audit fan-out inbox full, change set dropped",
				"header_id", headerID,
				"changes", len(rows),
			)
		}
	}
	return nil
}
