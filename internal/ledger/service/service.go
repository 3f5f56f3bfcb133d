// Package service runs ledger record operations inside a unit of work. Writes
// are change-captured before commit and the captured field changes are
// attached to the request's audit header after commit.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ledger/internal/changecapture"
	"ledger/internal/ledger/models"
	"ledger/internal/ledger/store"
	"ledger/internal/platform/metrics"
	dErrors "ledger/pkg/domain-errors"
	"ledger/pkg/platform/audit"
	"ledger/pkg/platform/etag"
	"ledger/pkg/platform/sentinel"
	"ledger/pkg/requestcontext"
)

// ChangeAttacher stores committed field changes under an audit header.
type ChangeAttacher interface {
	AttachChanges(ctx context.Context, headerID int64, changes []audit.FieldChange) *audit.WriteFailure
}

// Service orchestrates reads and versioned writes of ledger records.
type Service struct {
	uow     store.UnitOfWork
	audit   ChangeAttacher
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New returns a Service. attacher may be nil to disable change auditing.
func New(uow store.UnitOfWork, attacher ChangeAttacher, opts ...Option) *Service {
	s := &Service{
		uow:    uow,
		audit:  attacher,
		logger: slog.Default(),
		tracer: otel.Tracer("ledger/internal/ledger/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ref locates a record beneath its owners. Owners holds ancestor ids root
// first, e.g. {documentID, costID} for a cost line item. An empty Owners
// skips the ownership check.
type Ref struct {
	Kind   models.Kind
	ID     int64
	Owners []int64
}

// Get returns a live record.
func (s *Service) Get(ctx context.Context, ref Ref) (models.Entity, error) {
	ctx, span := s.start(ctx, "Get", ref)
	defer span.End()

	var out models.Entity
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		var err error
		out, err = s.load(ctx, st, ref)
		return err
	})
	if err != nil {
		return nil, s.fail(span, translate(err, ref.Kind))
	}
	return out, nil
}

// List returns the live records of kind owned by the last of owners, or every
// document when kind has no parent.
func (s *Service) List(ctx context.Context, kind models.Kind, owners ...int64) ([]models.Entity, error) {
	ctx, span := s.start(ctx, "List", Ref{Kind: kind, Owners: owners})
	defer span.End()

	var out []models.Entity
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := s.checkOwners(ctx, st, kind, owners); err != nil {
			return err
		}
		var parents []int64
		if len(owners) > 0 {
			parents = owners[len(owners)-1:]
		}
		var err error
		out, err = st.List(ctx, kind, parents...)
		return err
	})
	if err != nil {
		return nil, s.fail(span, translate(err, kind))
	}
	return out, nil
}

// Create inserts e under its owners and returns it with id and version set.
func (s *Service) Create(ctx context.Context, e models.Entity, owners ...int64) (models.Entity, error) {
	ref := Ref{Kind: e.Kind(), Owners: owners}
	ctx, span := s.start(ctx, "Create", ref)
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("create", time.Since(start)) }()

	if len(owners) > 0 && e.ParentID() != owners[len(owners)-1] {
		return nil, s.fail(span, dErrors.New(dErrors.CodeBadRequest, "record parent does not match the request path"))
	}

	err := s.inUnitOfWork(ctx, func(ctx context.Context, st store.Store, tracker *changecapture.Tracker) error {
		if err := s.checkOwners(ctx, st, e.Kind(), owners); err != nil {
			return err
		}
		now, actor := requestcontext.Now(ctx), requestcontext.Actor(ctx)
		meta := e.Metadata()
		meta.CreatedAt, meta.CreatedBy = now, actor
		meta.UpdatedAt, meta.UpdatedBy = now, actor
		if err := st.Insert(ctx, e); err != nil {
			return err
		}
		tracker.Created(e)
		return nil
	})
	if err != nil {
		return nil, s.fail(span, translate(err, e.Kind()))
	}
	s.metrics.IncrementWrite(string(e.Kind()), "create")
	return e, nil
}

// Patch applies patch to the record at ref if ifMatch still names its
// current version. The comparison and the write are one compare-and-swap;
// a stale token yields *dErrors.ConflictError carrying the current token.
func (s *Service) Patch(ctx context.Context, ref Ref, ifMatch string, patch models.Patch) (models.Entity, error) {
	ctx, span := s.start(ctx, "Patch", ref)
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("update", time.Since(start)) }()

	expected, err := parseIfMatch(ifMatch, true)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if patch == nil || patch.Kind() != ref.Kind {
		return nil, s.fail(span, dErrors.New(dErrors.CodeBadRequest, "patch does not match the record type"))
	}
	if v, ok := patch.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeValidation, err.Error()))
		}
	}

	var out models.Entity
	err = s.inUnitOfWork(ctx, func(ctx context.Context, st store.Store, tracker *changecapture.Tracker) error {
		current, err := s.load(ctx, st, ref)
		if err != nil {
			return err
		}
		tracker.Track(current)
		if !current.Metadata().Version.Equal(expected) {
			return &store.VersionMismatch{Kind: ref.Kind, ID: ref.ID, Current: current.Metadata().Version}
		}

		next := current.Clone()
		if err := patch.Apply(next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
		}
		meta := next.Metadata()
		meta.UpdatedAt = requestcontext.Now(ctx)
		meta.UpdatedBy = requestcontext.Actor(ctx)
		if err := st.Update(ctx, next, expected); err != nil {
			return err
		}
		tracker.Updated(next)
		out = next
		return nil
	})
	if err != nil {
		return nil, s.fail(span, s.conflictOrTranslate(ctx, err, ref, expected))
	}
	s.metrics.IncrementWrite(string(ref.Kind), "update")
	return out, nil
}

// Delete soft-deletes the record at ref and every live descendant. A
// non-empty ifMatch is checked like Patch; an empty one skips the check.
func (s *Service) Delete(ctx context.Context, ref Ref, ifMatch string) error {
	ctx, span := s.start(ctx, "Delete", ref)
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("delete", time.Since(start)) }()

	expected, err := parseIfMatch(ifMatch, false)
	if err != nil {
		return s.fail(span, err)
	}

	err = s.inUnitOfWork(ctx, func(ctx context.Context, st store.Store, tracker *changecapture.Tracker) error {
		current, err := s.load(ctx, st, ref)
		if err != nil {
			return err
		}
		if expected != nil && !current.Metadata().Version.Equal(expected) {
			return &store.VersionMismatch{Kind: ref.Kind, ID: ref.ID, Current: current.Metadata().Version}
		}
		return s.cascade(ctx, st, tracker, current, expected)
	})
	if err != nil {
		return s.fail(span, s.conflictOrTranslate(ctx, err, ref, expected))
	}
	s.metrics.IncrementWrite(string(ref.Kind), "delete")
	return nil
}

// cascade deletes children before their owner so each gets its own change set.
func (s *Service) cascade(ctx context.Context, st store.Store, tracker *changecapture.Tracker, e models.Entity, expected etag.Stamp) error {
	for _, child := range e.Kind().Children() {
		rows, err := st.List(ctx, child, e.Metadata().ID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := s.cascade(ctx, st, tracker, row, nil); err != nil {
				return err
			}
		}
	}

	tracker.Track(e)
	next := e.Clone()
	meta := next.Metadata()
	meta.UpdatedAt = requestcontext.Now(ctx)
	meta.UpdatedBy = requestcontext.Actor(ctx)
	if err := st.SoftDelete(ctx, next, expected); err != nil {
		return err
	}
	tracker.Deleted(next)
	return nil
}

// inUnitOfWork runs fn in a transaction with a fresh change tracker. Changes
// are computed before commit and attached to the request's audit header once
// the transaction has committed. Attach failures are logged, never returned.
func (s *Service) inUnitOfWork(ctx context.Context, fn func(ctx context.Context, st store.Store, tracker *changecapture.Tracker) error) error {
	tracker := changecapture.NewTracker()
	var changes []audit.FieldChange
	err := s.uow.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := fn(ctx, st, tracker); err != nil {
			return err
		}
		changes = tracker.Changes()
		return nil
	})
	if err != nil {
		return err
	}
	s.attach(ctx, changes)
	return nil
}

func (s *Service) attach(ctx context.Context, changes []audit.FieldChange) {
	if s.audit == nil || len(changes) == 0 {
		return
	}
	headerID, ok := requestcontext.AuditHeaderID(ctx)
	if !ok {
		s.logger.DebugContext(ctx, "no audit header for request, field changes not recorded",
			"request_id", requestcontext.RequestID(ctx),
			"changes", len(changes),
		)
		return
	}
	// The write has committed. A caller hanging up now must not cost its change rows.
	if failure := s.audit.AttachChanges(context.WithoutCancel(ctx), headerID, changes); failure != nil {
		s.logger.ErrorContext(ctx, "failed to record audit field changes",
			"request_id", requestcontext.RequestID(ctx),
			"header_id", failure.HeaderID,
			"changes", failure.Count,
			"error", failure.Err,
		)
	}
}

// load fetches ref and verifies its ownership chain.
func (s *Service) load(ctx context.Context, st store.Store, ref Ref) (models.Entity, error) {
	if err := s.checkOwners(ctx, st, ref.Kind, ref.Owners); err != nil {
		return nil, err
	}
	e, err := st.Get(ctx, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	if len(ref.Owners) > 0 && e.ParentID() != ref.Owners[len(ref.Owners)-1] {
		return nil, notOwned(ref.Kind, ref.ID)
	}
	return e, nil
}

// checkOwners verifies that owners, root first, are live and form the
// ownership chain above kind.
func (s *Service) checkOwners(ctx context.Context, st store.Store, kind models.Kind, owners []int64) error {
	var chain []models.Kind
	for k := kind.Parent(); k != ""; k = k.Parent() {
		chain = append(chain, k)
	}
	if len(owners) == 0 {
		return nil
	}
	if len(owners) != len(chain) {
		return dErrors.New(dErrors.CodeBadRequest, "record path does not match the record type")
	}
	// chain is nearest first, owners root first.
	for i, k := range chain {
		idx := len(owners) - 1 - i
		owner, err := st.Get(ctx, k, owners[idx])
		if err != nil {
			return err
		}
		if idx > 0 && owner.ParentID() != owners[idx-1] {
			return notOwned(k, owners[idx])
		}
	}
	return nil
}

func (s *Service) conflictOrTranslate(ctx context.Context, err error, ref Ref, expected etag.Stamp) error {
	var mismatch *store.VersionMismatch
	if !errors.As(err, &mismatch) {
		return translate(err, ref.Kind)
	}
	conflict := &dErrors.ConflictError{
		ResourceType: string(mismatch.Kind),
		ResourceID:   strconv.FormatInt(mismatch.ID, 10),
		ExpectedETag: expected.Token(),
		CurrentETag:  mismatch.Current.Token(),
	}
	s.logger.WarnContext(ctx, "version conflict",
		"request_id", requestcontext.RequestID(ctx),
		"entity_type", conflict.ResourceType,
		"entity_id", conflict.ResourceID,
		"expected_etag", conflict.ExpectedETag,
		"current_etag", conflict.CurrentETag,
	)
	s.metrics.IncrementConflict(conflict.ResourceType)
	return conflict
}

// CheckIfMatch reports the error Patch would return for a missing or
// malformed If-Match value, without touching the store.
func CheckIfMatch(ifMatch string) error {
	_, err := parseIfMatch(ifMatch, true)
	return err
}

func parseIfMatch(ifMatch string, required bool) (etag.Stamp, error) {
	if ifMatch == "" {
		if required {
			return nil, dErrors.New(dErrors.CodeBadRequest, "Missing If-Match header (ETag required)")
		}
		return nil, nil
	}
	stamp, err := etag.Decode(ifMatch)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "Invalid ETag format")
	}
	return stamp, nil
}

type ownershipError struct {
	kind models.Kind
	id   int64
}

func (e *ownershipError) Error() string {
	return string(e.kind) + " " + strconv.FormatInt(e.id, 10) + " is not part of the requested path"
}

func (e *ownershipError) Unwrap() error { return sentinel.ErrNotFound }

func notOwned(kind models.Kind, id int64) error {
	return &ownershipError{kind: kind, id: id}
}

// translate maps store errors to domain errors. Coded errors pass through.
func translate(err error, kind models.Kind) error {
	var de *dErrors.Error
	var ce *dErrors.ConflictError
	switch {
	case errors.As(err, &de), errors.As(err, &ce):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, string(kind)+" not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access ledger records")
	}
}

func (s *Service) start(ctx context.Context, op string, ref Ref) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.entity_type", string(ref.Kind)),
		attribute.Int64("ledger.entity_id", ref.ID),
	))
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}
