package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ledger/internal/ledger/models"
	"ledger/pkg/platform/etag"
)

type memoryTxKey struct{}

type rowKey struct {
	kind models.Kind
	id   int64
}

// Memory is an in-process record store. Units of work are serialized: a
// transaction holds the store lock from start to commit or rollback.
type Memory struct {
	mu     sync.Mutex
	rows   map[rowKey]models.Entity
	nextID map[models.Kind]int64
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		rows:   make(map[rowKey]models.Entity),
		nextID: make(map[models.Kind]int64),
	}
}

// RunInTx implements UnitOfWork. Writes are journaled and undone if fn fails.
func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok && tx.m == m {
		return fn(ctx, tx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{m: m, undo: make(map[rowKey]models.Entity), nextID: make(map[models.Kind]int64, len(m.nextID))}
	for k, v := range m.nextID {
		tx.nextID[k] = v
	}

	err := fn(context.WithValue(ctx, memoryTxKey{}, tx), tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memoryTx struct {
	m      *Memory
	undo   map[rowKey]models.Entity // prior state, nil when the row was new
	nextID map[models.Kind]int64    // counters at tx start
}

func (tx *memoryTx) remember(k rowKey) {
	if _, ok := tx.undo[k]; ok {
		return
	}
	tx.undo[k] = tx.m.rows[k]
}

func (tx *memoryTx) rollback() {
	for k, prev := range tx.undo {
		if prev == nil {
			delete(tx.m.rows, k)
			continue
		}
		tx.m.rows[k] = prev
	}
	tx.m.nextID = tx.nextID
}

func (tx *memoryTx) live(kind models.Kind, id int64) (models.Entity, bool) {
	row, ok := tx.m.rows[rowKey{kind, id}]
	if !ok || row.Metadata().IsDeleted {
		return nil, false
	}
	return row, true
}

func (tx *memoryTx) Get(_ context.Context, kind models.Kind, id int64) (models.Entity, error) {
	row, ok := tx.live(kind, id)
	if !ok {
		return nil, notFound(kind, id)
	}
	return row.Clone(), nil
}

func (tx *memoryTx) List(_ context.Context, kind models.Kind, parentIDs ...int64) ([]models.Entity, error) {
	parents := make(map[int64]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = struct{}{}
	}
	var out []models.Entity
	for k, row := range tx.m.rows {
		if k.kind != kind || row.Metadata().IsDeleted {
			continue
		}
		if kind.Parent() != "" {
			if _, ok := parents[row.ParentID()]; !ok {
				continue
			}
		}
		out = append(out, row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata().ID < out[j].Metadata().ID })
	return out, nil
}

func (tx *memoryTx) Insert(_ context.Context, e models.Entity) error {
	if e == nil {
		return fmt.Errorf("insert: nil record")
	}
	kind := e.Kind()
	tx.m.nextID[kind]++
	meta := e.Metadata()
	meta.ID = tx.m.nextID[kind]
	meta.Version = etag.NewStamp()
	meta.IsDeleted = false

	k := rowKey{kind, meta.ID}
	tx.remember(k)
	tx.m.rows[k] = e.Clone()
	return nil
}

func (tx *memoryTx) Update(_ context.Context, e models.Entity, expected etag.Stamp) error {
	kind, id := e.Kind(), e.Metadata().ID
	current, ok := tx.live(kind, id)
	if !ok {
		return notFound(kind, id)
	}
	if !current.Metadata().Version.Equal(expected) {
		return &VersionMismatch{Kind: kind, ID: id, Current: append(etag.Stamp(nil), current.Metadata().Version...)}
	}

	meta := e.Metadata()
	meta.Version = etag.NewStamp()
	meta.IsDeleted = false
	meta.CreatedAt = current.Metadata().CreatedAt
	meta.CreatedBy = current.Metadata().CreatedBy

	k := rowKey{kind, id}
	tx.remember(k)
	tx.m.rows[k] = e.Clone()
	return nil
}

func (tx *memoryTx) SoftDelete(_ context.Context, e models.Entity, expected etag.Stamp) error {
	kind, id := e.Kind(), e.Metadata().ID
	current, ok := tx.live(kind, id)
	if !ok {
		return notFound(kind, id)
	}
	if expected != nil && !current.Metadata().Version.Equal(expected) {
		return &VersionMismatch{Kind: kind, ID: id, Current: append(etag.Stamp(nil), current.Metadata().Version...)}
	}

	next := current.Clone()
	meta := next.Metadata()
	meta.IsDeleted = true
	meta.Version = etag.NewStamp()
	meta.UpdatedAt = e.Metadata().UpdatedAt
	meta.UpdatedBy = e.Metadata().UpdatedBy

	k := rowKey{kind, id}
	tx.remember(k)
	tx.m.rows[k] = next

	*e.Metadata() = *meta
	e.Metadata().Version = append(etag.Stamp(nil), meta.Version...)
	return nil
}
