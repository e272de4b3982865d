/*
Package core provides the entity registry and versioned record store.

PURPOSE:
  This package contains the domain-agnostic heart of the engine: identity
  and lifecycle bookkeeping for every record (the entity registry), and a
  hash-chained, optimistically-locked version history for the payloads that
  hang off those identities (the versioned record store).

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind: Closed enumeration of record types (transaction, recurrence)
  - Entity: Identity + lifecycle metadata shared by every record
  - Record: A versioned payload joined with its entity
  - Precondition: Caller-supplied expected hash/version for optimistic locking

DESIGN PRINCIPLES:
  1. Identity is permanent: entities are never physically deleted
  2. Supersession is terminal: Active -> Superseded, no way back
  3. Every accepted update extends the hash chain by exactly one link
  4. Tombstones are first-class entities, not boolean flags

SEE ALSO:
  - fields.go: Kind-specific payload shapes
  - hash.go: Canonical content hashing
  - store.go: Persistence interfaces
*/
package core

import (
	"time"
)

// =============================================================================
// KINDS - Closed set of record types
// =============================================================================

// Kind identifies which record type owns an entity. The set is closed:
// every kind maps statically to one payload shape (see fields.go) and one
// record table.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindRecurrence  Kind = "recurrence"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTransaction, KindRecurrence:
		return true
	}
	return false
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EntityID is a 128-bit globally unique identifier (UUID), immutable once
// assigned.
type EntityID string

// =============================================================================
// ENTITY - Identity and lifecycle record
// =============================================================================

// Variant tags an entity as a live record holder or a tombstone minted by a
// deletion. A tombstone has identity but no record payload.
type Variant string

const (
	VariantActive    Variant = "active"
	VariantTombstone Variant = "tombstone"
)

// Entity is the identity/lifecycle record shared by every kind of thing in
// the system.
//
// INVARIANTS:
//   - SupersededBy and SupersededAt are both nil or both set.
//   - An entity never supersedes itself.
//   - Once superseded, the entity is immutable and excluded from default
//     listings, but remains resolvable by id forever.
type Entity struct {
	ID        EntityID
	Kind      Kind
	Variant   Variant
	CreatedAt time.Time
	UpdatedAt time.Time

	// Supersession chain. Non-nil means this entity has been replaced by a
	// successor (usually a tombstone) and rejects further updates.
	SupersededBy *EntityID
	SupersededAt *time.Time

	// GroupID clusters related entities (e.g. all transactions generated
	// by one recurrence firing).
	GroupID *EntityID

	// DerivedFrom records provenance: what entity caused this one to exist.
	DerivedFrom *EntityID
}

// Superseded reports whether the entity has reached its terminal state.
func (e Entity) Superseded() bool {
	return e.SupersededBy != nil
}

// CreateOptions carries the optional links callers may set when minting an
// entity.
type CreateOptions struct {
	Variant     Variant // zero value means VariantActive
	GroupID     *EntityID
	DerivedFrom *EntityID
}

// ListOptions controls registry listings.
type ListOptions struct {
	IncludeSuperseded bool
	Limit             int // <= 0 means DefaultListLimit
	Offset            int
}

// DefaultListLimit bounds listings when the caller does not.
const DefaultListLimit = 100

// =============================================================================
// RECORD - Versioned payload joined with its entity
// =============================================================================

// Record is the joined view of a versioned payload and its entity, the
// shape handed to collaborators for every read.
type Record struct {
	Entity Entity
	Fields Fields

	// Version starts at 1 and increases by exactly 1 per accepted update.
	Version int64

	// Hash is the content hash of (Fields, PreviousHash) at this version.
	Hash string

	// PreviousHash is the record's hash at Version-1. Empty iff Version == 1.
	PreviousHash string
}

// =============================================================================
// PRECONDITION - Optimistic locking
// =============================================================================

// Precondition is the caller's claim about the state an update is based on.
// The zero value means no precondition (last-writer-wins at the application
// level; the write itself is still race-free through the store's CAS).
type Precondition struct {
	Hash    *string
	Version *int64
}

// NoPrecondition accepts whatever the current state is.
func NoPrecondition() Precondition { return Precondition{} }

// ExpectHash requires the current record hash to equal h.
func ExpectHash(h string) Precondition { return Precondition{Hash: &h} }

// ExpectVersion requires the current record version to equal v.
func ExpectVersion(v int64) Precondition { return Precondition{Version: &v} }

// Check compares the precondition against the observed state and returns a
// *ConflictError describing the mismatch, or nil when satisfied.
func (p Precondition) Check(currentHash string, currentVersion int64) *ConflictError {
	if p.Hash != nil && *p.Hash != currentHash {
		return &ConflictError{
			Message:        "record was modified by another client",
			CurrentHash:    currentHash,
			CurrentVersion: currentVersion,
			ClientHash:     p.Hash,
		}
	}
	if p.Version != nil && *p.Version != currentVersion {
		return &ConflictError{
			Message:        "record version mismatch",
			CurrentHash:    currentHash,
			CurrentVersion: currentVersion,
			ClientVersion:  p.Version,
		}
	}
	return nil
}
