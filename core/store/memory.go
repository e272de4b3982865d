// Package store provides in-memory implementations of the core storage
// interfaces, for testing and development.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memogarden/core-engine/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds committed state plus at most one open unit of work. Writes
// build up in a pending copy; Commit swaps it in, Rollback drops it.
type Memory struct {
	mu      sync.Mutex
	open    bool
	state   memState
	pending *memState
}

type memState struct {
	entities map[core.EntityID]core.Entity
	records  map[core.EntityID]memRecord
}

type memRecord struct {
	fields       core.Fields
	version      int64
	hash         string
	previousHash string
}

func NewMemory() *Memory {
	return &Memory{state: memState{
		entities: make(map[core.EntityID]core.Entity),
		records:  make(map[core.EntityID]memRecord),
	}}
}

func (s memState) clone() *memState {
	c := memState{
		entities: make(map[core.EntityID]core.Entity, len(s.entities)),
		records:  make(map[core.EntityID]memRecord, len(s.records)),
	}
	for id, e := range s.entities {
		c.entities[id] = e
	}
	for id, r := range s.records {
		c.records[id] = r
	}
	return &c
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

type memUnitOfWork struct {
	m    *Memory
	done bool
}

// Begin opens a unit of work. Nesting is a programmer error.
func (m *Memory) Begin(_ context.Context) (core.UnitOfWork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.open {
		return nil, &core.StorageError{Op: "begin", Err: fmt.Errorf("unit of work already open")}
	}
	m.open = true
	m.pending = m.state.clone()
	return &memUnitOfWork{m: m}, nil
}

func (u *memUnitOfWork) Commit() error {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()

	if u.done {
		return &core.StorageError{Op: "commit", Err: fmt.Errorf("unit of work already closed")}
	}
	u.done = true
	u.m.state = *u.m.pending
	u.m.pending = nil
	u.m.open = false
	return nil
}

func (u *memUnitOfWork) Rollback() error {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()

	if u.done {
		return &core.StorageError{Op: "rollback", Err: fmt.Errorf("unit of work already closed")}
	}
	u.done = true
	u.m.pending = nil
	u.m.open = false
	return nil
}

// writable unwraps the open unit of work and returns the pending state.
func (m *Memory) writable(uow core.UnitOfWork) (*memState, error) {
	u, ok := uow.(*memUnitOfWork)
	if !ok || u == nil || u.m != m {
		return nil, &core.StorageError{Op: "write", Err: fmt.Errorf("no unit of work open")}
	}
	if u.done {
		return nil, &core.StorageError{Op: "write", Err: fmt.Errorf("unit of work already closed")}
	}
	return m.pending, nil
}

// =============================================================================
// REGISTRY (core.Registry)
// =============================================================================

type MemoryRegistry struct {
	m *Memory
}

func NewMemoryRegistry(m *Memory) *MemoryRegistry {
	return &MemoryRegistry{m: m}
}

func (r *MemoryRegistry) Create(_ context.Context, uow core.UnitOfWork, kind core.Kind, opts core.CreateOptions) (core.EntityID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	state, err := r.m.writable(uow)
	if err != nil {
		return "", err
	}
	if !kind.Valid() {
		return "", &core.StorageError{Op: "entity create", Err: fmt.Errorf("unknown kind %q", kind)}
	}

	variant := opts.Variant
	if variant == "" {
		variant = core.VariantActive
	}

	now := time.Now().UTC()
	id := core.EntityID(uuid.NewString())
	state.entities[id] = core.Entity{
		ID:          id,
		Kind:        kind,
		Variant:     variant,
		CreatedAt:   now,
		UpdatedAt:   now,
		GroupID:     opts.GroupID,
		DerivedFrom: opts.DerivedFrom,
	}
	return id, nil
}

func (r *MemoryRegistry) Touch(_ context.Context, uow core.UnitOfWork, id core.EntityID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	state, err := r.m.writable(uow)
	if err != nil {
		return err
	}
	e, ok := state.entities[id]
	if !ok {
		return core.ErrNotFound
	}
	e.UpdatedAt = time.Now().UTC()
	state.entities[id] = e
	return nil
}

func (r *MemoryRegistry) Supersede(_ context.Context, uow core.UnitOfWork, target, successor core.EntityID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	state, err := r.m.writable(uow)
	if err != nil {
		return err
	}
	if target == successor {
		return &core.StorageError{Op: "entity supersede", Err: fmt.Errorf("entity cannot supersede itself")}
	}
	e, ok := state.entities[target]
	if !ok {
		return core.ErrNotFound
	}
	if e.Superseded() {
		return core.ErrAlreadySuperseded
	}

	now := time.Now().UTC()
	e.SupersededBy = &successor
	e.SupersededAt = &now
	state.entities[target] = e
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id core.EntityID) (core.Entity, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	e, ok := r.m.state.entities[id]
	if !ok {
		return core.Entity{}, core.ErrNotFound
	}
	return e, nil
}

func (r *MemoryRegistry) List(_ context.Context, kind core.Kind, opts core.ListOptions) ([]core.Entity, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var entities []core.Entity
	for _, e := range r.m.state.entities {
		if e.Kind != kind {
			continue
		}
		if e.Superseded() && !opts.IncludeSuperseded {
			continue
		}
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].CreatedAt.After(entities[j].CreatedAt)
	})
	return paginate(entities, opts.Limit, opts.Offset), nil
}

// =============================================================================
// RECORD STORE (core.RecordStore)
// =============================================================================

type MemoryRecords struct {
	m        *Memory
	registry *MemoryRegistry
}

func NewMemoryRecords(m *Memory, registry *MemoryRegistry) *MemoryRecords {
	return &MemoryRecords{m: m, registry: registry}
}

func (rs *MemoryRecords) Create(ctx context.Context, uow core.UnitOfWork, fields core.Fields, opts core.CreateOptions) (core.EntityID, error) {
	if err := fields.Validate(); err != nil {
		return "", err
	}

	id, err := rs.registry.Create(ctx, uow, fields.Kind(), opts)
	if err != nil {
		return "", err
	}

	rs.m.mu.Lock()
	defer rs.m.mu.Unlock()

	state, err := rs.m.writable(uow)
	if err != nil {
		return "", err
	}
	hash, err := core.HashFields(fields, "")
	if err != nil {
		return "", &core.StorageError{Op: "record create", Err: err}
	}
	state.records[id] = memRecord{fields: fields, version: 1, hash: hash}
	return id, nil
}

func (rs *MemoryRecords) Get(_ context.Context, id core.EntityID) (core.Record, error) {
	rs.m.mu.Lock()
	defer rs.m.mu.Unlock()

	return rs.m.state.join(id)
}

func (rs *MemoryRecords) Update(_ context.Context, uow core.UnitOfWork, id core.EntityID, patch core.Patch, pre core.Precondition) (core.Record, error) {
	rs.m.mu.Lock()
	defer rs.m.mu.Unlock()

	state, err := rs.m.writable(uow)
	if err != nil {
		return core.Record{}, err
	}

	current, err := state.join(id)
	if err != nil {
		return core.Record{}, err
	}
	// An id of another kind is absent from this kind's view.
	if current.Fields.Kind() != patch.Kind() {
		return core.Record{}, core.ErrNotFound
	}
	if current.Entity.Superseded() {
		return core.Record{}, core.ErrImmutableRecord
	}
	if conflict := pre.Check(current.Hash, current.Version); conflict != nil {
		return core.Record{}, conflict
	}

	merged, err := core.ApplyPatch(current.Fields, patch)
	if err != nil {
		return core.Record{}, err
	}
	nextHash, err := core.HashFields(merged, current.Hash)
	if err != nil {
		return core.Record{}, &core.StorageError{Op: "record update", Err: err}
	}

	// The mutex makes check-and-write atomic here; the SQLite store gets
	// the same guarantee from its conditional UPDATE.
	state.records[id] = memRecord{
		fields:       merged,
		version:      current.Version + 1,
		hash:         nextHash,
		previousHash: current.Hash,
	}

	e := state.entities[id]
	e.UpdatedAt = time.Now().UTC()
	state.entities[id] = e

	return state.join(id)
}

func (rs *MemoryRecords) List(_ context.Context, kind core.Kind, filter core.RecordFilter) ([]core.Record, error) {
	rs.m.mu.Lock()
	defer rs.m.mu.Unlock()

	var records []core.Record
	for id, e := range rs.m.state.entities {
		if e.Kind != kind {
			continue
		}
		if e.Superseded() && !filter.IncludeSuperseded {
			continue
		}
		rec, err := rs.m.state.join(id)
		if err != nil {
			continue // tombstones have no record row
		}
		if !matchesFilter(rec, filter) {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Entity.CreatedAt.After(records[j].Entity.CreatedAt)
	})
	return paginate(records, filter.Limit, filter.Offset), nil
}

func (s memState) join(id core.EntityID) (core.Record, error) {
	e, ok := s.entities[id]
	if !ok {
		return core.Record{}, core.ErrNotFound
	}
	r, ok := s.records[id]
	if !ok {
		return core.Record{}, core.ErrNotFound
	}
	return core.Record{
		Entity:       e,
		Fields:       r.fields,
		Version:      r.version,
		Hash:         r.hash,
		PreviousHash: r.previousHash,
	}, nil
}

func matchesFilter(rec core.Record, filter core.RecordFilter) bool {
	f, ok := rec.Fields.(core.TransactionFields)
	if !ok {
		return true
	}
	if filter.Account != "" && f.Account != filter.Account {
		return false
	}
	if filter.Category != "" && (f.Category == nil || *f.Category != filter.Category) {
		return false
	}
	if filter.DateFrom != "" && f.Date < filter.DateFrom {
		return false
	}
	if filter.DateTo != "" && f.Date > filter.DateTo {
		return false
	}
	return true
}

func paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = core.DefaultListLimit
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
