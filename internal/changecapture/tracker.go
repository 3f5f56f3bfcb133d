package changecapture

import (
	"sync"

	audit "ledger/pkg/platform/audit"
)

type snapshot struct {
	names  []string
	values map[string]*string
}

func take(r Record) *snapshot {
	fields := r.Fields()
	s := &snapshot{names: make([]string, 0, len(fields)), values: make(map[string]*string, len(fields))}
	for _, f := range fields {
		if _, dup := s.values[f.Name]; dup {
			continue
		}
		s.names = append(s.names, f.Name)
		s.values[f.Name] = Format(f.Value)
	}
	return s
}

func (s *snapshot) value(name string) *string {
	if s == nil {
		return nil
	}
	return s.values[name]
}

// entry is the consolidated state of one (type, key) pair.
type entry struct {
	entityType string
	key        string
	original   *snapshot // nil when the row did not exist before
	current    *snapshot
	created    bool
	updated    bool
	deleted    bool
}

// Tracker accumulates row states for one unit of work. It is safe for
// concurrent use, although a unit of work normally runs on one goroutine.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

func identity(r Record) (entityType, key, id string) {
	entityType = r.EntityType()
	key = r.EntityKey()
	if key == "" {
		key = audit.UnknownEntityKey
	}
	return entityType, key, entityType + "\x00" + key
}

func (t *Tracker) lookup(r Record) *entry {
	entityType, key, id := identity(r)
	if e, ok := t.entries[id]; ok {
		return e
	}
	e := &entry{entityType: entityType, key: key}
	t.entries[id] = e
	t.order = append(t.order, id)
	return e
}

// Track records the loaded state of r as its original, unless r was already
// seen in this unit of work. Call it before mutating a loaded row.
func (t *Tracker) Track(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(r)
	if e.original == nil && e.current == nil {
		e.original = take(r)
	}
}

// Created marks r as inserted. Call it once the key is assigned.
func (t *Tracker) Created(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(r)
	e.created = true
	e.current = take(r)
}

// Updated records the latest state of a modified row.
func (t *Tracker) Updated(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(r)
	e.updated = true
	e.current = take(r)
}

// Deleted marks r as removed.
func (t *Tracker) Deleted(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(r)
	if e.original == nil && !e.created {
		e.original = take(r)
	}
	e.deleted = true
	e.current = nil
}

// Changes diffs every tracked row and returns field changes in first-touch
// order. HeaderID is left zero for the writer to fill.
func (t *Tracker) Changes() []audit.FieldChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []audit.FieldChange
	for _, id := range t.order {
		e := t.entries[id]
		var op audit.Operation
		switch {
		case e.created && e.deleted:
			continue
		case e.created:
			op = audit.OperationCreated
		case e.deleted:
			op = audit.OperationDeleted
		case e.updated:
			op = audit.OperationUpdated
		default:
			continue
		}

		var before, after *snapshot
		switch op {
		case audit.OperationCreated:
			after = e.current
		case audit.OperationDeleted:
			before = e.original
		default:
			before, after = e.original, e.current
		}
		out = append(out, diff(e, op, before, after)...)
	}
	return out
}

func diff(e *entry, op audit.Operation, before, after *snapshot) []audit.FieldChange {
	names := fieldNames(before, after)
	var out []audit.FieldChange
	for _, name := range names {
		if Excluded(name) {
			continue
		}
		oldValue, newValue := before.value(name), after.value(name)
		if equal(oldValue, newValue) {
			continue
		}
		out = append(out, audit.FieldChange{
			EntityType: e.entityType,
			EntityID:   e.key,
			Operation:  op,
			FieldName:  name,
			OldValue:   oldValue,
			NewValue:   newValue,
		})
	}
	return out
}

func fieldNames(before, after *snapshot) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, s := range []*snapshot{after, before} {
		if s == nil {
			continue
		}
		for _, name := range s.names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
