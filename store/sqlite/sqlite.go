/*
Package sqlite provides the SQLite-backed implementation of the core
storage interfaces.

PURPOSE:
  Implements core.Transactor, core.Registry and core.RecordStore on a
  single-writer embedded SQLite database. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  entities:     Identity/lifecycle registry for every record kind
  transactions: Versioned transaction payloads (hash chain per row)
  recurrences:  Versioned recurrence payloads (hash chain per row)

READ VIEWS:
  transactions_view / recurrences_view join record columns with registry
  columns; all get/list responses are served from these views.

NON-DESTRUCTIVE STORAGE:
  - Entities are never deleted; deletion supersedes them with a tombstone.
  - Record rows are updated in place, but only through a conditional
    compare-and-swap keyed on (entity_id, version), so a lost update is
    impossible: the chain advances by exactly one link per accepted write.

UNIT OF WORK:
  Begin() wraps one *sql.Tx. All registry/record writes take the open unit
  of work; reads go straight to the database. Nesting is a programmer
  error.

WAL MODE:
  The database is opened with WAL and foreign keys on:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/memogarden.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  registry := sqlite.NewRegistry(store)
  records := sqlite.NewRecordStore(store, registry)

SEE ALSO:
  - core/store.go: Interface definitions and the CAS rule
  - core/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/memogarden/core-engine/core"
)

const timeLayout = time.RFC3339Nano

// DefaultBeginTimeout bounds how long Begin waits for the previous unit of
// work to close before declaring it leaked.
const DefaultBeginTimeout = 5 * time.Second

// Store owns the database handle and the one-open-unit-of-work-at-a-time
// rule.
type Store struct {
	db *sql.DB

	// sem serializes writers: at most one unit of work is open. Concurrent
	// callers queue in Begin; a caller that never closed its unit of work
	// (the nesting programmer error) surfaces as a Begin timeout.
	sem chan struct{}

	// BeginTimeout overrides DefaultBeginTimeout when positive.
	BeginTimeout time.Duration
}

// New creates a SQLite store at the given path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection for the whole store. The engine is single-writer by
	// contract, and with ":memory:" every pooled connection would otherwise
	// get its own empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, sem: make(chan struct{}, 1)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Entity registry: one row per identity, never deleted
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		variant TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		superseded_by TEXT REFERENCES entities(id),
		superseded_at TEXT,
		group_id TEXT REFERENCES entities(id),
		derived_from TEXT REFERENCES entities(id),
		CHECK ((superseded_by IS NULL) = (superseded_at IS NULL)),
		CHECK (superseded_by IS NULL OR superseded_by != id)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_kind_created
		ON entities(kind, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_entities_superseded_by
		ON entities(superseded_by) WHERE superseded_by IS NOT NULL;

	-- Transaction records: one row per entity, hash chain advanced in place
	CREATE TABLE IF NOT EXISTS transactions (
		entity_id TEXT PRIMARY KEY REFERENCES entities(id),
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		account TEXT NOT NULL,
		category TEXT,
		notes TEXT,
		author TEXT NOT NULL DEFAULT '',
		recurrence_id TEXT REFERENCES entities(id),
		version INTEGER NOT NULL DEFAULT 1,
		hash TEXT NOT NULL,
		previous_hash TEXT,
		CHECK (version >= 1),
		CHECK ((previous_hash IS NULL) = (version = 1))
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account);
	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(transaction_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_recurrence
		ON transactions(recurrence_id) WHERE recurrence_id IS NOT NULL;

	-- Recurrence records
	CREATE TABLE IF NOT EXISTS recurrences (
		entity_id TEXT PRIMARY KEY REFERENCES entities(id),
		rrule TEXT NOT NULL,
		entities TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_until TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		hash TEXT NOT NULL,
		previous_hash TEXT,
		CHECK (version >= 1),
		CHECK ((previous_hash IS NULL) = (version = 1))
	);

	-- Read-side joined views: record columns alongside registry columns
	CREATE VIEW IF NOT EXISTS transactions_view AS
		SELECT t.entity_id, t.amount, t.currency, t.transaction_date,
		       t.description, t.account, t.category, t.notes, t.author,
		       t.recurrence_id, t.version, t.hash, t.previous_hash,
		       e.kind, e.variant, e.created_at, e.updated_at,
		       e.superseded_by, e.superseded_at, e.group_id, e.derived_from
		FROM transactions t
		JOIN entities e ON e.id = t.entity_id;

	CREATE VIEW IF NOT EXISTS recurrences_view AS
		SELECT r.entity_id, r.rrule, r.entities, r.valid_from, r.valid_until,
		       r.version, r.hash, r.previous_hash,
		       e.kind, e.variant, e.created_at, e.updated_at,
		       e.superseded_by, e.superseded_at, e.group_id, e.derived_from
		FROM recurrences r
		JOIN entities e ON e.id = r.entity_id;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNIT OF WORK (core.Transactor / core.UnitOfWork)
// =============================================================================

// UnitOfWork wraps one database transaction. Spent after Commit/Rollback.
type UnitOfWork struct {
	tx    *sql.Tx
	store *Store
	done  bool
}

// Begin opens a unit of work. A second Begin while one is open is a
// programmer error and fails with StorageError.
func (s *Store) Begin(ctx context.Context) (core.UnitOfWork, error) {
	wait := s.BeginTimeout
	if wait <= 0 {
		wait = DefaultBeginTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, &core.StorageError{Op: "begin", Err: ctx.Err()}
	case <-timer.C:
		return nil, &core.StorageError{Op: "begin", Err: fmt.Errorf("unit of work already open")}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		<-s.sem
		return nil, &core.StorageError{Op: "begin", Err: err}
	}

	return &UnitOfWork{tx: tx, store: s}, nil
}

// Commit makes all writes in this unit of work durable together.
func (u *UnitOfWork) Commit() error {
	if err := u.finish(); err != nil {
		return err
	}
	if err := u.tx.Commit(); err != nil {
		return &core.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback discards all writes in this unit of work.
func (u *UnitOfWork) Rollback() error {
	if err := u.finish(); err != nil {
		return err
	}
	if err := u.tx.Rollback(); err != nil {
		return &core.StorageError{Op: "rollback", Err: err}
	}
	return nil
}

func (u *UnitOfWork) finish() error {
	if u.done {
		return &core.StorageError{Op: "finish", Err: fmt.Errorf("unit of work already closed")}
	}
	u.done = true

	<-u.store.sem
	return nil
}

// writer unwraps the open unit of work a write was handed. Every mutation
// goes through here; there is no ambient connection to fall back to.
func (s *Store) writer(uow core.UnitOfWork) (*sql.Tx, error) {
	u, ok := uow.(*UnitOfWork)
	if !ok || u == nil {
		return nil, &core.StorageError{Op: "write", Err: fmt.Errorf("no unit of work open")}
	}
	if u.store != s {
		return nil, &core.StorageError{Op: "write", Err: fmt.Errorf("unit of work belongs to a different store")}
	}
	if u.done {
		return nil, &core.StorageError{Op: "write", Err: fmt.Errorf("unit of work already closed")}
	}
	return u.tx, nil
}

// =============================================================================
// REGISTRY (core.Registry)
// =============================================================================

// Registry implements entity identity/lifecycle bookkeeping on the store.
type Registry struct {
	store *Store
}

// NewRegistry creates the registry facet of the store.
func NewRegistry(store *Store) *Registry {
	return &Registry{store: store}
}

// Create mints a new entity row with created_at = updated_at = now.
func (r *Registry) Create(ctx context.Context, uow core.UnitOfWork, kind core.Kind, opts core.CreateOptions) (core.EntityID, error) {
	tx, err := r.store.writer(uow)
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

	id := core.EntityID(uuid.NewString())
	now := time.Now().UTC().Format(timeLayout)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, kind, variant, created_at, updated_at, group_id, derived_from)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, kind, variant, now, now, nullID(opts.GroupID), nullID(opts.DerivedFrom),
	)
	if err != nil {
		return "", &core.StorageError{Op: "entity create", Err: err}
	}
	return id, nil
}

// Touch bumps updated_at. Called by the record store on accepted updates.
func (r *Registry) Touch(ctx context.Context, uow core.UnitOfWork, id core.EntityID) error {
	tx, err := r.store.writer(uow)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE entities SET updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return &core.StorageError{Op: "entity touch", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Supersede is the one-shot terminal transition. The write is conditional
// on superseded_by still being NULL, so a second supersession can never
// slip through between check and write.
func (r *Registry) Supersede(ctx context.Context, uow core.UnitOfWork, target, successor core.EntityID) error {
	tx, err := r.store.writer(uow)
	if err != nil {
		return err
	}
	if target == successor {
		return &core.StorageError{Op: "entity supersede", Err: fmt.Errorf("entity cannot supersede itself")}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE entities SET superseded_by = ?, superseded_at = ?
		WHERE id = ? AND superseded_by IS NULL`,
		successor, time.Now().UTC().Format(timeLayout), target,
	)
	if err != nil {
		return &core.StorageError{Op: "entity supersede", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// Zero rows: either an unknown target, or one already superseded.
	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities WHERE id = ?", target,
	).Scan(&exists); err != nil {
		return &core.StorageError{Op: "entity supersede", Err: err}
	}
	if exists == 0 {
		return core.ErrNotFound
	}
	return core.ErrAlreadySuperseded
}

// Get resolves an entity by id regardless of supersession state.
func (r *Registry) Get(ctx context.Context, id core.EntityID) (core.Entity, error) {
	return r.get(ctx, r.store.db, id)
}

// get reads through q, which is the open transaction when a write path
// needs to see its own uncommitted rows.
func (r *Registry) get(ctx context.Context, q querier, id core.EntityID) (core.Entity, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, kind, variant, created_at, updated_at,
		       superseded_by, superseded_at, group_id, derived_from
		FROM entities WHERE id = ?`, id,
	)
	return scanEntity(row)
}

// List returns entities of one kind, newest first.
func (r *Registry) List(ctx context.Context, kind core.Kind, opts core.ListOptions) ([]core.Entity, error) {
	query := `
		SELECT id, kind, variant, created_at, updated_at,
		       superseded_by, superseded_at, group_id, derived_from
		FROM entities WHERE kind = ?`
	if !opts.IncludeSuperseded {
		query += " AND superseded_by IS NULL"
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"

	limit := opts.Limit
	if limit <= 0 {
		limit = core.DefaultListLimit
	}

	rows, err := r.store.db.QueryContext(ctx, query, kind, limit, opts.Offset)
	if err != nil {
		return nil, &core.StorageError{Op: "entity list", Err: err}
	}
	defer rows.Close()

	var entities []core.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// =============================================================================
// RECORD STORE (core.RecordStore)
// =============================================================================

// RecordStore implements the hash-chained versioned payloads on the store.
type RecordStore struct {
	store    *Store
	registry *Registry
}

// NewRecordStore creates the record facet of the store.
func NewRecordStore(store *Store, registry *Registry) *RecordStore {
	return &RecordStore{store: store, registry: registry}
}

// Create mints an entity and its version-1 record row atomically within
// the given unit of work.
func (rs *RecordStore) Create(ctx context.Context, uow core.UnitOfWork, fields core.Fields, opts core.CreateOptions) (core.EntityID, error) {
	tx, err := rs.store.writer(uow)
	if err != nil {
		return "", err
	}
	if err := fields.Validate(); err != nil {
		return "", err
	}

	id, err := rs.registry.Create(ctx, uow, fields.Kind(), opts)
	if err != nil {
		return "", err
	}

	hash, err := core.HashFields(fields, "")
	if err != nil {
		return "", &core.StorageError{Op: "record create", Err: err}
	}

	if err := insertRecord(ctx, tx, id, fields, hash); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the joined record view for id, superseded or not. An id with
// no entity row and an id whose entity has no record row (a bare
// tombstone) both come back as not found from this layer.
func (rs *RecordStore) Get(ctx context.Context, id core.EntityID) (core.Record, error) {
	entity, err := rs.registry.Get(ctx, id)
	if err != nil {
		return core.Record{}, err
	}
	return getFromView(ctx, rs.store.db, entity.Kind, id)
}

// Update merges the patch over the current payload and advances the hash
// chain by one link. The write is a single compare-and-swap keyed on
// (entity_id, version): if another writer advanced the record between our
// read and our write, zero rows match and the caller gets Conflict exactly
// as if a precondition failed.
func (rs *RecordStore) Update(ctx context.Context, uow core.UnitOfWork, id core.EntityID, patch core.Patch, pre core.Precondition) (core.Record, error) {
	tx, err := rs.store.writer(uow)
	if err != nil {
		return core.Record{}, err
	}

	entity, err := rs.registry.get(ctx, tx, id)
	if err != nil {
		return core.Record{}, err
	}
	// An id of another kind is absent from this kind's view.
	if entity.Kind != patch.Kind() {
		return core.Record{}, core.ErrNotFound
	}
	current, err := getFromView(ctx, tx, entity.Kind, id)
	if err != nil {
		return core.Record{}, err
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

	n, err := casRecord(ctx, tx, id, merged, current.Version, current.Hash, nextHash)
	if err != nil {
		return core.Record{}, err
	}
	if n == 0 {
		// Lost the race: another writer advanced past the version we
		// observed. Report the state that beat us.
		latest, err := getFromView(ctx, tx, entity.Kind, id)
		if err != nil {
			return core.Record{}, err
		}
		return core.Record{}, &core.ConflictError{
			Message:        "record was modified by a concurrent writer",
			CurrentHash:    latest.Hash,
			CurrentVersion: latest.Version,
		}
	}

	if err := rs.registry.Touch(ctx, uow, id); err != nil {
		return core.Record{}, err
	}
	return getFromView(ctx, tx, entity.Kind, id)
}

// List returns joined record views of one kind, newest entity first.
func (rs *RecordStore) List(ctx context.Context, kind core.Kind, filter core.RecordFilter) ([]core.Record, error) {
	view, err := viewFor(kind)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if !filter.IncludeSuperseded {
		where = append(where, "superseded_by IS NULL")
	}
	if kind == core.KindTransaction {
		if filter.Account != "" {
			where = append(where, "account = ?")
			args = append(args, filter.Account)
		}
		if filter.Category != "" {
			where = append(where, "category = ?")
			args = append(args, filter.Category)
		}
		if filter.DateFrom != "" {
			where = append(where, "transaction_date >= ?")
			args = append(args, filter.DateFrom)
		}
		if filter.DateTo != "" {
			where = append(where, "transaction_date <= ?")
			args = append(args, filter.DateTo)
		}
	}

	query := "SELECT * FROM " + view
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"

	limit := filter.Limit
	if limit <= 0 {
		limit = core.DefaultListLimit
	}
	args = append(args, limit, filter.Offset)

	rows, err := rs.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.StorageError{Op: "record list", Err: err}
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		rec, err := scanRecord(kind, rows)
		if err != nil {
			return nil, &core.StorageError{Op: "record list", Err: err}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Accounts returns the distinct account labels in use. Labels are strings,
// not entities; this feeds UI autocomplete.
func (rs *RecordStore) Accounts(ctx context.Context) ([]string, error) {
	return rs.distinctLabels(ctx, "account")
}

// Categories returns the distinct category labels in use.
func (rs *RecordStore) Categories(ctx context.Context) ([]string, error) {
	return rs.distinctLabels(ctx, "category")
}

func (rs *RecordStore) distinctLabels(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM transactions_view
		WHERE %s IS NOT NULL AND superseded_by IS NULL
		ORDER BY %s ASC`, column, column, column)

	rows, err := rs.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &core.StorageError{Op: "label list", Err: err}
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, &core.StorageError{Op: "label list", Err: err}
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// =============================================================================
// PER-KIND SQL
// =============================================================================

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func viewFor(kind core.Kind) (string, error) {
	switch kind {
	case core.KindTransaction:
		return "transactions_view", nil
	case core.KindRecurrence:
		return "recurrences_view", nil
	default:
		return "", &core.StorageError{Op: "record read", Err: fmt.Errorf("unknown kind %q", kind)}
	}
}

func getFromView(ctx context.Context, q querier, kind core.Kind, id core.EntityID) (core.Record, error) {
	view, err := viewFor(kind)
	if err != nil {
		return core.Record{}, err
	}

	row := q.QueryRowContext(ctx, "SELECT * FROM "+view+" WHERE entity_id = ?", id)
	rec, err := scanRecord(kind, row)
	if err == sql.ErrNoRows {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, &core.StorageError{Op: "record get", Err: err}
	}
	return rec, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, id core.EntityID, fields core.Fields, hash string) error {
	switch f := fields.(type) {
	case core.TransactionFields:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions
			(entity_id, amount, currency, transaction_date, description,
			 account, category, notes, author, recurrence_id, version, hash, previous_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, NULL)`,
			id, f.Amount.String(), f.Currency, f.Date, f.Description,
			f.Account, f.Category, f.Notes, f.Author, nullID(f.RecurrenceID), hash,
		)
		if err != nil {
			return &core.StorageError{Op: "record create", Err: err}
		}
		return nil

	case core.RecurrenceFields:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recurrences
			(entity_id, rrule, entities, valid_from, valid_until, version, hash, previous_hash)
			VALUES (?, ?, ?, ?, ?, 1, ?, NULL)`,
			id, f.RRule, f.Entities,
			f.ValidFrom.UTC().Format(timeLayout), nullTime(f.ValidUntil), hash,
		)
		if err != nil {
			return &core.StorageError{Op: "record create", Err: err}
		}
		return nil

	default:
		return &core.StorageError{Op: "record create", Err: fmt.Errorf("unknown fields type %T", fields)}
	}
}

// casRecord is the one conditional write everything hinges on: the row only
// changes if it is still at the exact version the caller observed.
func casRecord(ctx context.Context, tx *sql.Tx, id core.EntityID, fields core.Fields, observedVersion int64, observedHash, nextHash string) (int64, error) {
	var res sql.Result
	var err error

	switch f := fields.(type) {
	case core.TransactionFields:
		res, err = tx.ExecContext(ctx, `
			UPDATE transactions SET
				amount = ?, currency = ?, transaction_date = ?, description = ?,
				account = ?, category = ?, notes = ?, author = ?, recurrence_id = ?,
				version = version + 1, hash = ?, previous_hash = ?
			WHERE entity_id = ? AND version = ?`,
			f.Amount.String(), f.Currency, f.Date, f.Description,
			f.Account, f.Category, f.Notes, f.Author, nullID(f.RecurrenceID),
			nextHash, observedHash, id, observedVersion,
		)

	case core.RecurrenceFields:
		res, err = tx.ExecContext(ctx, `
			UPDATE recurrences SET
				rrule = ?, entities = ?, valid_from = ?, valid_until = ?,
				version = version + 1, hash = ?, previous_hash = ?
			WHERE entity_id = ? AND version = ?`,
			f.RRule, f.Entities, f.ValidFrom.UTC().Format(timeLayout), nullTime(f.ValidUntil),
			nextHash, observedHash, id, observedVersion,
		)

	default:
		return 0, &core.StorageError{Op: "record update", Err: fmt.Errorf("unknown fields type %T", fields)}
	}

	if err != nil {
		return 0, &core.StorageError{Op: "record update", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &core.StorageError{Op: "record update", Err: err}
	}
	return n, nil
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (core.Entity, error) {
	var (
		e                    core.Entity
		createdAt, updatedAt string
		supersededBy         sql.NullString
		supersededAt         sql.NullString
		groupID, derivedFrom sql.NullString
	)

	err := row.Scan(&e.ID, &e.Kind, &e.Variant, &createdAt, &updatedAt,
		&supersededBy, &supersededAt, &groupID, &derivedFrom)
	if err == sql.ErrNoRows {
		return core.Entity{}, core.ErrNotFound
	}
	if err != nil {
		return core.Entity{}, &core.StorageError{Op: "entity scan", Err: err}
	}

	fillEntity(&e, createdAt, updatedAt, supersededBy, supersededAt, groupID, derivedFrom)
	return e, nil
}

func scanRecord(kind core.Kind, row rowScanner) (core.Record, error) {
	switch kind {
	case core.KindTransaction:
		return scanTransactionRecord(row)
	case core.KindRecurrence:
		return scanRecurrenceRecord(row)
	default:
		return core.Record{}, &core.StorageError{Op: "record scan", Err: fmt.Errorf("unknown kind %q", kind)}
	}
}

func scanTransactionRecord(row rowScanner) (core.Record, error) {
	var (
		rec          core.Record
		f            core.TransactionFields
		amount       string
		category     sql.NullString
		notes        sql.NullString
		recurrenceID sql.NullString
		previousHash sql.NullString

		createdAt, updatedAt                           string
		supersededBy, supersededAt, groupID, derivedAt sql.NullString
	)
	e := &rec.Entity

	err := row.Scan(&e.ID, &amount, &f.Currency, &f.Date, &f.Description,
		&f.Account, &category, &notes, &f.Author, &recurrenceID,
		&rec.Version, &rec.Hash, &previousHash,
		&e.Kind, &e.Variant, &createdAt, &updatedAt,
		&supersededBy, &supersededAt, &groupID, &derivedAt)
	if err != nil {
		return core.Record{}, err
	}

	f.Amount = core.MustParseDecimal(amount)
	f.Category = strPtr(category)
	f.Notes = strPtr(notes)
	f.RecurrenceID = idPtr(recurrenceID)
	rec.PreviousHash = previousHash.String
	rec.Fields = f

	fillEntity(e, createdAt, updatedAt, supersededBy, supersededAt, groupID, derivedAt)
	return rec, nil
}

func scanRecurrenceRecord(row rowScanner) (core.Record, error) {
	var (
		rec          core.Record
		f            core.RecurrenceFields
		validFrom    string
		validUntil   sql.NullString
		previousHash sql.NullString

		createdAt, updatedAt                           string
		supersededBy, supersededAt, groupID, derivedAt sql.NullString
	)
	e := &rec.Entity

	err := row.Scan(&e.ID, &f.RRule, &f.Entities, &validFrom, &validUntil,
		&rec.Version, &rec.Hash, &previousHash,
		&e.Kind, &e.Variant, &createdAt, &updatedAt,
		&supersededBy, &supersededAt, &groupID, &derivedAt)
	if err != nil {
		return core.Record{}, err
	}

	f.ValidFrom = parseTime(validFrom)
	if validUntil.Valid {
		t := parseTime(validUntil.String)
		f.ValidUntil = &t
	}
	rec.PreviousHash = previousHash.String
	rec.Fields = f

	fillEntity(e, createdAt, updatedAt, supersededBy, supersededAt, groupID, derivedAt)
	return rec, nil
}

func fillEntity(e *core.Entity, createdAt, updatedAt string, supersededBy, supersededAt, groupID, derivedFrom sql.NullString) {
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	e.SupersededBy = idPtr(supersededBy)
	e.GroupID = idPtr(groupID)
	e.DerivedFrom = idPtr(derivedFrom)
	if supersededAt.Valid {
		t := parseTime(supersededAt.String)
		e.SupersededAt = &t
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// parseTime parses a stored timestamp, falling back to the zero time.
// Stored timestamps are always written by us, so a parse failure means a
// corrupted row.
func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullID(id *core.EntityID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func idPtr(s sql.NullString) *core.EntityID {
	if !s.Valid {
		return nil
	}
	id := core.EntityID(s.String)
	return &id
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
