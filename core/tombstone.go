/*
tombstone.go - Supersede/tombstone soft-delete protocol

PURPOSE:
  Deletion never destroys data. Instead, a brand-new tombstone entity of
  the same kind is minted (identity, no payload) and the target is
  superseded by it, all inside one unit of work. The original record's
  history stays byte-for-byte intact and fetchable by id forever; it
  merely becomes immutable and drops out of default listings.

WHY A SIBLING ENTITY INSTEAD OF A FLAG?
  Every deletion gets a first-class, addressable audit artifact and a
  natural place to attach deletion metadata later.

SEE ALSO:
  - store.go: Registry.Supersede semantics
*/
package core

import "context"

// TombstoneManager implements logical deletion on top of the registry.
type TombstoneManager struct {
	registry Registry
	tx       Transactor
}

// NewTombstoneManager wires the soft-delete protocol over a registry.
func NewTombstoneManager(registry Registry, tx Transactor) *TombstoneManager {
	return &TombstoneManager{registry: registry, tx: tx}
}

// Delete supersedes id with a freshly minted tombstone and returns the
// tombstone's id. Fails with ErrNotFound for an unknown id and
// ErrAlreadySuperseded for a repeat delete; whether the latter is an error
// or a no-op is the caller's policy.
func (m *TombstoneManager) Delete(ctx context.Context, id EntityID) (EntityID, error) {
	target, err := m.registry.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if target.Superseded() {
		return "", ErrAlreadySuperseded
	}

	var tombstoneID EntityID
	err = WithUnitOfWork(ctx, m.tx, func(uow UnitOfWork) error {
		tombstoneID, err = m.registry.Create(ctx, uow, target.Kind, CreateOptions{
			Variant:     VariantTombstone,
			DerivedFrom: &id,
		})
		if err != nil {
			return err
		}
		return m.registry.Supersede(ctx, uow, id, tombstoneID)
	})
	if err != nil {
		return "", err
	}
	return tombstoneID, nil
}
