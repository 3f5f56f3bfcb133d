// Package store persists versioned ledger records. Every write replaces the
// row's version stamp, and updates are a single compare-and-swap on it.
package store

import (
	"context"
	"fmt"

	"ledger/internal/ledger/models"
	"ledger/pkg/platform/etag"
	"ledger/pkg/platform/sentinel"
)

// Store reads and writes records inside one unit of work.
// Soft-deleted rows behave as absent: reads return sentinel.ErrNotFound.
type Store interface {
	Get(ctx context.Context, kind models.Kind, id int64) (models.Entity, error)
	// List returns live records of kind owned by any of parentIDs, ordered by id.
	// Documents have no parent; List(ctx, KindDocument) returns all of them.
	List(ctx context.Context, kind models.Kind, parentIDs ...int64) ([]models.Entity, error)
	// Insert assigns e's id and first version stamp.
	Insert(ctx context.Context, e models.Entity) error
	// Update writes e only if the stored stamp equals expected, then sets
	// e's new stamp. A mismatch returns *VersionMismatch.
	Update(ctx context.Context, e models.Entity, expected etag.Stamp) error
	// SoftDelete flags e deleted and replaces its stamp. A nil expected
	// skips the version check.
	SoftDelete(ctx context.Context, e models.Entity, expected etag.Stamp) error
}

// UnitOfWork runs fn atomically: everything fn wrote commits when it returns
// nil and nothing is visible to other readers otherwise.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// VersionMismatch reports a lost compare-and-swap. Current is the stamp that
// won, so callers can hand it back to the client.
type VersionMismatch struct {
	Kind    models.Kind
	ID      int64
	Current etag.Stamp
}

func (e *VersionMismatch) Error() string {
	return fmt.Sprintf("%s %d: version mismatch (current %s)", e.Kind, e.ID, e.Current.Token())
}

func (e *VersionMismatch) Unwrap() error {
	return sentinel.ErrConflict
}

func notFound(kind models.Kind, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, sentinel.ErrNotFound)
}
