package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ledger/internal/ledger/models"
	dErrors "ledger/pkg/domain-errors"
	"ledger/pkg/platform/etag"
	txcontext "ledger/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Postgres stores records in PostgreSQL through database/sql.
// The version check is part of each UPDATE statement, so concurrent writers
// race inside the database and exactly one of them matches.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres returns a store on db. timeout bounds each unit of work that
// arrives without a deadline; zero selects the default.
func NewPostgres(db *sql.DB, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &Postgres{db: db, timeout: timeout}
}

// RunInTx implements UnitOfWork.
func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	s := &pgStore{db: p.db}
	return txcontext.Run(ctx, p.db, func(ctx context.Context) error {
		return fn(ctx, s)
	})
}

type pgStore struct {
	db *sql.DB
}

func (s *pgStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

func lookup(kind models.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("unknown record kind %q", kind)
	}
	return t, nil
}

func (s *pgStore) Get(ctx context.Context, kind models.Kind, id int64) (models.Entity, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	e := models.New(kind)
	err = s.exec(ctx).QueryRowContext(ctx, t.getSQL(), id).Scan(t.scanDest(e)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", kind, id, err)
	}
	return e, nil
}

func (s *pgStore) List(ctx context.Context, kind models.Kind, parentIDs ...int64) ([]models.Entity, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	var args []any
	if t.parent != "" {
		if len(parentIDs) == 0 {
			return nil, nil
		}
		args = append(args, pq.Array(parentIDs))
	}
	rows, err := s.exec(ctx).QueryContext(ctx, t.listSQL(), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		e := models.New(kind)
		if err := rows.Scan(t.scanDest(e)...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

func (s *pgStore) Insert(ctx context.Context, e models.Entity) error {
	t, err := lookup(e.Kind())
	if err != nil {
		return err
	}
	meta := e.Metadata()
	stamp := etag.NewStamp()
	args := append([]any{stamp, false, meta.CreatedAt, meta.CreatedBy, meta.UpdatedAt, meta.UpdatedBy}, t.values(e)...)

	var id int64
	if err := s.exec(ctx).QueryRowContext(ctx, t.insertSQL(), args...).Scan(&id); err != nil {
		return fmt.Errorf("insert %s: %w", e.Kind(), err)
	}
	meta.ID = id
	meta.Version = stamp
	meta.IsDeleted = false
	return nil
}

func (s *pgStore) Update(ctx context.Context, e models.Entity, expected etag.Stamp) error {
	t, err := lookup(e.Kind())
	if err != nil {
		return err
	}
	meta := e.Metadata()
	stamp := etag.NewStamp()
	args := append([]any{meta.ID, expected, stamp, meta.UpdatedAt, meta.UpdatedBy}, t.values(e)...)

	var createdAt time.Time
	var createdBy string
	err = s.exec(ctx).QueryRowContext(ctx, t.updateSQL(), args...).Scan(&createdAt, &createdBy)
	if errors.Is(err, sql.ErrNoRows) {
		return s.explainMiss(ctx, t, e.Kind(), meta.ID)
	}
	if err != nil {
		return fmt.Errorf("update %s %d: %w", e.Kind(), meta.ID, err)
	}
	meta.Version = stamp
	meta.CreatedAt = createdAt
	meta.CreatedBy = createdBy
	return nil
}

func (s *pgStore) SoftDelete(ctx context.Context, e models.Entity, expected etag.Stamp) error {
	t, err := lookup(e.Kind())
	if err != nil {
		return err
	}
	meta := e.Metadata()
	stamp := etag.NewStamp()
	args := []any{meta.ID, stamp, meta.UpdatedAt, meta.UpdatedBy}
	if expected != nil {
		args = append(args, expected)
	}

	res, err := s.exec(ctx).ExecContext(ctx, t.softDeleteSQL(expected != nil), args...)
	if err != nil {
		return fmt.Errorf("soft delete %s %d: %w", e.Kind(), meta.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete %s %d: %w", e.Kind(), meta.ID, err)
	}
	if n == 0 {
		return s.explainMiss(ctx, t, e.Kind(), meta.ID)
	}
	meta.Version = stamp
	meta.IsDeleted = true
	return nil
}

// explainMiss decides why a conditional write matched no row.
func (s *pgStore) explainMiss(ctx context.Context, t table, kind models.Kind, id int64) error {
	var current etag.Stamp
	err := s.exec(ctx).QueryRowContext(ctx, t.probeSQL(), id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, id)
	}
	if err != nil {
		return fmt.Errorf("probe %s %d: %w", kind, id, err)
	}
	return &VersionMismatch{Kind: kind, ID: id, Current: current}
}
