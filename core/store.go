/*
store.go - Persistence interfaces for the registry and record store

PURPOSE:
  Defines the contract between the core and the storage engine. The store
  assumes a single-writer embedded database; concurrent logical operations
  are serialized by the engine's transaction mechanism, not by in-process
  locks.

KEY INTERFACES:
  UnitOfWork: Scoped transaction boundary (commit / rollback, no nesting)
  Transactor: Opens units of work
  Registry:   Entity identity and lifecycle bookkeeping
  RecordStore: Versioned payloads with the hash chain and CAS updates

WRITE DISCIPLINE:
  Every write takes an explicit open UnitOfWork; there is no ambient or
  process-global connection. Writes made through one unit of work are
  durable together on Commit and fully discarded on Rollback. Reads bypass
  the unit of work and query committed state directly.

THE CAS RULE:
  RecordStore.Update must be expressed as one conditional write keyed on
  (id, observed version), not read-then-write. Two concurrent updates
  against the same starting version must never both succeed; the loser
  surfaces Conflict exactly as if a precondition failed.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - core/store:   In-memory store for tests
*/
package core

import "context"

// =============================================================================
// UNIT OF WORK - Atomic scope
// =============================================================================

// UnitOfWork groups registry and record writes into one durable
// transaction. Exactly one of Commit/Rollback must be called; afterwards
// the unit of work is spent.
type UnitOfWork interface {
	Commit() error
	Rollback() error
}

// Transactor opens units of work. Nesting is disallowed: a second Begin
// while one unit of work is open is a programmer error and fails with
// StorageError.
type Transactor interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// WithUnitOfWork runs fn inside a unit of work, committing on nil and
// rolling back on error. The common path for single-operation callers.
func WithUnitOfWork(ctx context.Context, tx Transactor, fn func(UnitOfWork) error) error {
	uow, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// =============================================================================
// REGISTRY - Entity identity and lifecycle
// =============================================================================

// Registry is the identity/lifecycle store for every record regardless of
// kind.
//
// State machine per entity: Active -> Superseded (terminal). No other
// transitions exist.
type Registry interface {
	// Create mints a new globally-unique id and inserts a registry row
	// with CreatedAt = UpdatedAt = now. Fails with StorageError if the
	// unit of work is not open or the id collides.
	Create(ctx context.Context, uow UnitOfWork, kind Kind, opts CreateOptions) (EntityID, error)

	// Touch sets UpdatedAt = now. Called by the record store on every
	// accepted update; collaborators never call it directly.
	Touch(ctx context.Context, uow UnitOfWork, id EntityID) error

	// Supersede points target at its successor and stamps SupersededAt.
	// One-shot: fails with ErrAlreadySuperseded on a second attempt and
	// with ErrNotFound for an unknown target. Self-supersession is
	// rejected as a storage integrity violation.
	Supersede(ctx context.Context, uow UnitOfWork, target, successor EntityID) error

	// Get resolves an entity by id, superseded or not. Callers decide
	// whether superseded entities are acceptable.
	Get(ctx context.Context, id EntityID) (Entity, error)

	// List returns entities of one kind ordered by CreatedAt descending.
	// Superseded entities are excluded unless opts.IncludeSuperseded.
	List(ctx context.Context, kind Kind, opts ListOptions) ([]Entity, error)
}

// =============================================================================
// RECORD STORE - Hash-chained versioned payloads
// =============================================================================

// RecordFilter narrows record listings. Label and date filters only apply
// to kinds that carry those fields.
type RecordFilter struct {
	IncludeSuperseded bool
	Limit             int // <= 0 means DefaultListLimit
	Offset            int

	// Transaction label/date filters ("" = no filter). Dates in DateLayout.
	Account  string
	Category string
	DateFrom string
	DateTo   string
}

// RecordStore maintains the versioned payloads built on top of the
// registry: version counters, the hash chain, and compare-and-swap
// updates.
type RecordStore interface {
	// Create mints the entity and inserts the version-1 record row
	// atomically within the given unit of work. The record's hash chains
	// on the genesis sentinel; PreviousHash is empty.
	Create(ctx context.Context, uow UnitOfWork, fields Fields, opts CreateOptions) (EntityID, error)

	// Get returns the joined record view for id, superseded or not.
	// Fails with ErrNotFound when no record row exists (a bare tombstone
	// entity has no record).
	Get(ctx context.Context, id EntityID) (Record, error)

	// Update merges the patch over the current payload and advances the
	// chain by one link, guarded by the precondition and the CAS rule.
	// The lookup is scoped to the patch's kind: an id owned by another
	// kind is absent from that kind's view and fails with ErrNotFound.
	// Error order: ErrNotFound, ErrImmutableRecord, ConflictError (either
	// from the precondition or a lost race), then StorageError. On
	// success the entity's UpdatedAt is bumped and the new record state
	// is returned.
	Update(ctx context.Context, uow UnitOfWork, id EntityID, patch Patch, pre Precondition) (Record, error)

	// List returns joined record views of one kind, newest entity first.
	List(ctx context.Context, kind Kind, filter RecordFilter) ([]Record, error)
}
