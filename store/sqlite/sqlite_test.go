package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memogarden/core-engine/core"
	"github.com/memogarden/core-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) (*sqlite.Store, *sqlite.Registry, *sqlite.RecordStore) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := sqlite.NewRegistry(store)
	return store, registry, sqlite.NewRecordStore(store, registry)
}

func lunch(amount string) core.TransactionFields {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return core.TransactionFields{
		Amount:      d,
		Currency:    core.DefaultCurrency,
		Date:        "2026-03-14",
		Description: "chicken rice",
		Account:     "DBS",
		Author:      "alice",
	}
}

func payroll() core.RecurrenceFields {
	return core.RecurrenceFields{
		RRule:     "FREQ=MONTHLY;BYMONTHDAY=-1",
		Entities:  `[{"amount": 5000, "account": "DBS", "description": "salary"}]`,
		ValidFrom: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func createRecord(t *testing.T, store *sqlite.Store, records *sqlite.RecordStore, fields core.Fields) core.EntityID {
	t.Helper()
	ctx := context.Background()

	var id core.EntityID
	err := core.WithUnitOfWork(ctx, store, func(uow core.UnitOfWork) error {
		var err error
		id, err = records.Create(ctx, uow, fields, core.CreateOptions{})
		return err
	})
	require.NoError(t, err)
	return id
}

func updateRecord(store *sqlite.Store, records *sqlite.RecordStore, id core.EntityID, patch core.Patch, pre core.Precondition) (core.Record, error) {
	ctx := context.Background()

	var rec core.Record
	err := core.WithUnitOfWork(ctx, store, func(uow core.UnitOfWork) error {
		var err error
		rec, err = records.Update(ctx, uow, id, patch, pre)
		return err
	})
	return rec, err
}

func amountPatch(amount string) core.TransactionPatch {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return core.TransactionPatch{Amount: &d}
}

// =============================================================================
// CREATE
// =============================================================================

func TestRecordStore_CreateTransaction(t *testing.T) {
	// GIVEN: A fresh store
	// WHEN: Creating a transaction
	// THEN: Version 1, a content hash chained on genesis, and a full
	//       round-trip of the business fields

	store, registry, records := newTestStore(t)
	ctx := context.Background()

	id := createRecord(t, store, records, lunch("-5.80"))

	rec, err := records.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, int64(1), rec.Version)
	assert.Len(t, rec.Hash, 64)
	assert.Empty(t, rec.PreviousHash, "version 1 has no predecessor")

	f := rec.Fields.(core.TransactionFields)
	assert.True(t, f.Amount.Equal(decimal.NewFromFloat(-5.80)))
	assert.Equal(t, "DBS", f.Account)
	assert.Equal(t, "chicken rice", f.Description)
	assert.Equal(t, "alice", f.Author)
	assert.Nil(t, f.Category)

	entity, err := registry.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.KindTransaction, entity.Kind)
	assert.Equal(t, core.VariantActive, entity.Variant)
	assert.False(t, entity.Superseded())
	assert.Equal(t, entity.CreatedAt, entity.UpdatedAt)
}

func TestRecordStore_CreateRejectsInvalidFields(t *testing.T) {
	store, _, records := newTestStore(t)
	ctx := context.Background()

	missing := lunch("-5.80")
	missing.Account = ""

	err := core.WithUnitOfWork(ctx, store, func(uow core.UnitOfWork) error {
		_, err := records.Create(ctx, uow, missing, core.CreateOptions{})
		return err
	})
	assert.ErrorIs(t, err, core.ErrInvalidFields)
}

func TestRecordStore_CreateRecurrence(t *testing.T) {
	store, _, records := newTestStore(t)
	ctx := context.Background()

	id := createRecord(t, store, records, payroll())

	rec, err := records.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)

	f := rec.Fields.(core.RecurrenceFields)
	assert.Equal(t, "FREQ=MONTHLY;BYMONTHDAY=-1", f.RRule)
	assert.True(t, f.ValidFrom.Equal(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, f.ValidUntil, "open-ended template")
}

// =============================================================================
// UPDATE AND THE HASH CHAIN
// =============================================================================

func TestRecordStore_UpdateAdvancesChain(t *testing.T) {
	// GIVEN: A transaction at version 1
	// WHEN: Patching the amount with a matching version precondition
	// THEN: Version 2, previous_hash = the version-1 hash, updated_at bumped

	store, registry, records := newTestStore(t)
	ctx := context.Background()

	id := createRecord(t, store, records, lunch("-5.80"))
	v1, err := records.Get(ctx, id)
	require.NoError(t, err)

	v2, err := updateRecord(store, records, id, amountPatch("-6.50"), core.ExpectVersion(1))
	require.NoError(t, err)

	assert.Equal(t, int64(2), v2.Version)
	assert.Equal(t, v1.Hash, v2.PreviousHash)
	assert.NotEqual(t, v1.Hash, v2.Hash)
	assert.True(t, v2.Fields.(core.TransactionFields).Amount.Equal(decimal.NewFromFloat(-6.50)))

	entity, err := registry.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, entity.UpdatedAt.Before(entity.CreatedAt))
	assert.NotEqual(t, entity.CreatedAt, entity.UpdatedAt, "accepted updates bump updated_at")
}

func TestRecordStore_ChainIsRecomputable(t *testing.T) {
	// GIVEN: A record taken through several updates
	// THEN: Every stored hash equals a fresh computation over
	//       (fields, previous_hash), so tampering is detectable

	store, _, records := newTestStore(t)
	ctx := context.Background()

	id := createRecord(t, store, records, lunch("-5.80"))

	seen := map[string]bool{}
	for _, amount := range []string{"-6.00", "-6.50", "-7.00"} {
		rec, err := updateRecord(store, records, id, amountPatch(amount), core.NoPrecondition())
		require.NoError(t, err)

		recomputed, err := core.HashFields(rec.Fields, rec.PreviousHash)
		require.NoError(t, err)
		assert.Equal(t, rec.Hash, recomputed)

		assert.False(t, seen[rec.Hash], "every link in the chain is distinct")
		seen[rec.Hash] = true
	}

	final, err := records.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), final.Version, "version grows by exactly 1 per accepted update")
}

func TestRecordStore_UpdateWrongKindIsNotFound(t *testing.T) {
	// GIVEN: A recurrence id
	// WHEN: Patching it as a transaction
	// THEN: NotFound - the id is absent from the transaction view

	store, _, records := newTestStore(t)
	ctx := context.Background()

	id := createRecord(t, store, records, payroll())

	_, err := updateRecord(store, records, id, amountPatch("-1.00"), core.NoPrecondition())
	assert.ErrorIs(t, err, core.ErrNotFound)

	// The recurrence itself is untouched.
	rec, err := records.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
}

func TestRecordStore_UpdateUnknownID(t *testing.T) {
	store, _, records := newTestStore(t)

	_, err := updateRecord(store, records, "no-such-id", amountPatch("-1.00"), core.NoPrecondition())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecordStore_UpdateRecurrenceWindow(t *testing.T) {
	store, _, records := newTestStore(t)

	id := createRecord(t, store, records, payroll())

	until := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)
	rec, err := updateRecord(store, records, id, core.RecurrencePatch{ValidUntil: &until}, core.ExpectVersion(1))
	require.NoError(t, err)

	f := rec.Fields.(core.RecurrenceFields)
	require.NotNil(t, f.ValidUntil)
	assert.True(t, f.ValidUntil.Equal(until))
	assert.Equal(t, int64(2), rec.Version)
}

// =============================================================================
// OPTIMISTIC LOCKING
// =============================================================================

func TestRecordStore_StaleVersionConflict(t *testing.T) {
	// GIVEN: A record advanced to version 2
	// WHEN: A second writer updates with its stale version-1 claim
	// THEN: Conflict carrying the winner's state and the client's claim

	store, _, records := newTestStore(t)

	id := createRecord(t, store, records, lunch("-5.80"))
	v2, err := updateRecord(store, records, id, amountPatch("-6.00"), core.ExpectVersion(1))
	require.NoError(t, err)

	_, err = updateRecord(store, records, id, amountPatch("-9.99"), core.ExpectVersion(1))

	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.CurrentVersion)
	assert.Equal(t, v2.Hash, conflict.CurrentHash)
	require.NotNil(t, conflict.ClientVersion)
	assert.Equal(t, int64(1), *conflict.ClientVersion)
	assert.Nil(t, conflict.ClientHash)

	assert.ErrorIs(t, err, core.ErrConflict)
	assert.True(t, core.IsRetryable(err))

	// The losing write left no trace.
	rec, err := records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	assert.True(t, rec.Fields.(core.TransactionFields).Amount.Equal(decimal.NewFromFloat(-6.00)))
}

func TestRecordStore_StaleHashConflict(t *testing.T) {
	store, _, records := newTestStore(t)

	id := createRecord(t, store, records, lunch("-5.80"))
	_, err := updateRecord(store, records, id, amountPatch("-6.00"), core.NoPrecondition())
	require.NoError(t, err)

	_, err = updateRecord(store, records, id, amountPatch("-9.99"), core.ExpectHash("stale-hash"))

	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, conflict.ClientHash)
	assert.Equal(t, "stale-hash", *conflict.ClientHash)
	assert.Nil(t, conflict.ClientVersion)
	assert.NotEmpty(t, conflict.CurrentHash, "conflict always reports enough state to refetch and retry")
}

func TestRecordStore_MatchingHashPreconditionPasses(t *testing.T) {
	store, _, records := newTestStore(t)
	ctx := context.Background()

	id := createRecord(t, store, records, lunch("-5.80"))
	v1, err := records.Get(ctx, id)
	require.NoError(t, err)

	rec, err := updateRecord(store, records, id, amountPatch("-6.00"), core.ExpectHash(v1.Hash))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
}

func TestRecordStore_ConcurrentUpdatesExactlyOneWins(t *testing.T) {
	// GIVEN: Two writers racing with the same version-1 claim
	// THEN: Exactly one succeeds; the loser gets Conflict

	store, _, records := newTestStore(t)

	id := createRecord(t, store, records, lunch("-5.80"))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = updateRecord(store, records, id, amountPatch("-7.00"), core.ExpectVersion(1))
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case core.IsConflict(err):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	rec, err := records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
}

// =============================================================================
// SOFT DELETE
// =============================================================================

func TestDelete_MintsTombstone(t *testing.T) {
	// GIVEN: An active transaction
	// WHEN: Deleting it
	// THEN: A distinct tombstone supersedes it; the record stays fully
	//       fetchable by id with its history intact

	store, registry, records := newTestStore(t)
	ctx := context.Background()
	tombstones := core.NewTombstoneManager(registry, store)

	id := createRecord(t, store, records, lunch("-5.80"))
	before, err := records.Get(ctx, id)
	require.NoError(t, err)

	tombstoneID, err := tombstones.Delete(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, id, tombstoneID)

	entity, err := registry.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entity.SupersededBy)
	assert.Equal(t, tombstoneID, *entity.SupersededBy)
	require.NotNil(t, entity.SupersededAt)

	// Deletion destroyed nothing.
	after, err := records.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.Hash, after.Hash)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Fields, after.Fields)

	// The tombstone has identity but no payload.
	tomb, err := registry.Get(ctx, tombstoneID)
	require.NoError(t, err)
	assert.Equal(t, core.VariantTombstone, tomb.Variant)
	assert.Equal(t, core.KindTransaction, tomb.Kind)
	_, err = records.Get(ctx, tombstoneID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDelete_RecordBecomesImmutable(t *testing.T) {
	store, registry, records := newTestStore(t)
	tombstones := core.NewTombstoneManager(registry, store)

	id := createRecord(t, store, records, lunch("-5.80"))
	_, err := tombstones.Delete(context.Background(), id)
	require.NoError(t, err)

	_, err = updateRecord(store, records, id, amountPatch("-9.99"), core.NoPrecondition())
	assert.ErrorIs(t, err, core.ErrImmutableRecord, "superseded is terminal")
}

func TestDelete_RepeatRejected(t *testing.T) {
	store, registry, records := newTestStore(t)
	ctx := context.Background()
	tombstones := core.NewTombstoneManager(registry, store)

	id := createRecord(t, store, records, lunch("-5.80"))
	first, err := tombstones.Delete(ctx, id)
	require.NoError(t, err)

	_, err = tombstones.Delete(ctx, id)
	assert.ErrorIs(t, err, core.ErrAlreadySuperseded)

	// Still pointing at the first tombstone.
	entity, err := registry.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, *entity.SupersededBy)
}

// =============================================================================
// REGISTRY LIFECYCLE
// =============================================================================

func TestRegistry_SupersedeUnknownTarget(t *testing.T) {
	store, registry, _ := newTestStore(t)
	ctx := context.Background()

	err := core.WithUnitOfWork(ctx, store, func(uow core.UnitOfWork) error {
		successor, err := registry.Create(ctx, uow, core.KindTransaction, core.CreateOptions{})
		if err != nil {
			return err
		}
		return registry.Supersede(ctx, uow, "no-such-id", successor)
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistry_SelfSupersessionRejected(t *testing.T) {
	store, registry, _ := newTestStore(t)
	ctx := context.Background()

	err := core.WithUnitOfWork(ctx, store, func(uow core.UnitOfWork) error {
		id, err := registry.Create(ctx, uow, core.KindTransaction, core.CreateOptions{})
		if err != nil {
			return err
		}
		return registry.Supersede(ctx, uow, id, id)
	})
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestRegistry_TouchUnknownID(t *testing.T) {
	store, registry, _ := newTestStore(t)
	ctx := context.Background()

	err := core.WithUnitOfWork(ctx, store, func(uow core.UnitOfWork) error {
		return registry.Touch(ctx, uow, "no-such-id")
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistry_GetResolvesSupersededForever(t *testing.T) {
	store, registry, records := newTestStore(t)
	ctx := context.Background()
	tombstones := core.NewTombstoneManager(registry, store)

	id := createRecord(t, store, records, lunch("-5.80"))
	_, err := tombstones.Delete(ctx, id)
	require.NoError(t, err)

	entity, err := registry.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, entity.Superseded(), "superseded entities stay resolvable by id")
}

// =============================================================================
// LISTING AND FILTERS
// =============================================================================

func TestRecordStore_ListExcludesSuperseded(t *testing.T) {
	store, registry, records := newTestStore(t)
	ctx := context.Background()
	tombstones := core.NewTombstoneManager(registry, store)

	keep := createRecord(t, store, records, lunch("-5.80"))
	drop := createRecord(t, store, records, lunch("-12.00"))
	_, err := tombstones.Delete(ctx, drop)
	require.NoError(t, err)

	visible, err := records.List(ctx, core.KindTransaction, core.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, keep, visible[0].Entity.ID)

	all, err := records.List(ctx, core.KindTransaction, core.RecordFilter{IncludeSuperseded: true})
	require.NoError(t, err)
	assert.Len(t, all, 2, "include_superseded restores deleted records")
}

func TestRecordStore_ListFilters(t *testing.T) {
	store, _, records := newTestStore(t)
	ctx := context.Background()

	food := "food"
	groceries := lunch("-42.00")
	groceries.Account = "visa"
	groceries.Category = &food
	groceries.Date = "2026-03-20"

	createRecord(t, store, records, lunch("-5.80"))
	createRecord(t, store, records, groceries)

	byAccount, err := records.List(ctx, core.KindTransaction, core.RecordFilter{Account: "visa"})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, "visa", byAccount[0].Fields.(core.TransactionFields).Account)

	byCategory, err := records.List(ctx, core.KindTransaction, core.RecordFilter{Category: "food"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	byDate, err := records.List(ctx, core.KindTransaction, core.RecordFilter{
		DateFrom: "2026-03-01",
		DateTo:   "2026-03-15",
	})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "2026-03-14", byDate[0].Fields.(core.TransactionFields).Date)
}

func TestRecordStore_ListPagination(t *testing.T) {
	store, _, records := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		createRecord(t, store, records, lunch("-1.00"))
	}

	page, err := records.List(ctx, core.KindTransaction, core.RecordFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := records.List(ctx, core.KindTransaction, core.RecordFilter{Limit: 10, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestRecordStore_DistinctLabels(t *testing.T) {
	store, _, records := newTestStore(t)
	ctx := context.Background()

	food := "food"
	transport := "transport"

	a := lunch("-5.80")
	a.Category = &food
	b := lunch("-2.10")
	b.Account = "cash"
	b.Category = &transport
	c := lunch("-6.40") // same account as a, no category

	for _, f := range []core.TransactionFields{a, b, c} {
		createRecord(t, store, records, f)
	}

	accounts, err := records.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"DBS", "cash"}, accounts)

	categories, err := records.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"food", "transport"}, categories)
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

func TestUnitOfWork_RollbackIsAtomic(t *testing.T) {
	// GIVEN: An entity create and a record create in one unit of work
	// WHEN: Rolling back
	// THEN: Neither write survives

	store, registry, records := newTestStore(t)
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)

	id, err := records.Create(ctx, uow, lunch("-5.80"), core.CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, uow.Rollback())

	_, err = registry.Get(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = records.Get(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUnitOfWork_NestedBeginRejected(t *testing.T) {
	store, _, _ := newTestStore(t)
	store.BeginTimeout = 50 * time.Millisecond
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = store.Begin(ctx)
	assert.ErrorIs(t, err, core.ErrStorage, "a second begin while one is open is a programmer error")

	// Closing the first unit of work frees the store again.
	require.NoError(t, uow.Rollback())
	uow2, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow2.Rollback())
}

func TestUnitOfWork_SpentAfterCommit(t *testing.T) {
	store, _, records := newTestStore(t)
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	assert.ErrorIs(t, uow.Commit(), core.ErrStorage)
	assert.ErrorIs(t, uow.Rollback(), core.ErrStorage)

	_, err = records.Create(ctx, uow, lunch("-5.80"), core.CreateOptions{})
	assert.ErrorIs(t, err, core.ErrStorage, "writes through a spent unit of work are rejected")
}

func TestUnitOfWork_WriteRequiresOpenUnitOfWork(t *testing.T) {
	_, registry, records := newTestStore(t)
	ctx := context.Background()

	_, err := registry.Create(ctx, nil, core.KindTransaction, core.CreateOptions{})
	assert.ErrorIs(t, err, core.ErrStorage)

	_, err = records.Create(ctx, nil, lunch("-5.80"), core.CreateOptions{})
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestUnitOfWork_HelperRollsBackOnError(t *testing.T) {
	// GIVEN: A callback that creates a record then fails
	// THEN: WithUnitOfWork rolls everything back and surfaces the error

	store, _, records := newTestStore(t)
	ctx := context.Background()

	var id core.EntityID
	err := core.WithUnitOfWork(ctx, store, func(uow core.UnitOfWork) error {
		var err error
		id, err = records.Create(ctx, uow, lunch("-5.80"), core.CreateOptions{})
		if err != nil {
			return err
		}
		return core.ErrInvalidFields
	})
	require.ErrorIs(t, err, core.ErrInvalidFields)

	_, err = records.Get(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_Persistence(t *testing.T) {
	// GIVEN: A file-backed store with one committed record
	// WHEN: Reopening the database
	// THEN: The record and its chain state survive

	path := t.TempDir() + "/engine.db"

	store, err := sqlite.New(path)
	require.NoError(t, err)
	records := sqlite.NewRecordStore(store, sqlite.NewRegistry(store))
	id := createRecord(t, store, records, lunch("-5.80"))
	v2, err := updateRecord(store, records, id, amountPatch("-6.00"), core.ExpectVersion(1))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	rec, err := sqlite.NewRecordStore(reopened, sqlite.NewRegistry(reopened)).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, v2.Version, rec.Version)
	assert.Equal(t, v2.Hash, rec.Hash)
	assert.Equal(t, v2.PreviousHash, rec.PreviousHash)
}
