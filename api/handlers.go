/*
handlers.go - HTTP handlers over the core engine

PURPOSE:
  Exposes the entity registry and versioned record store via REST. Handles
  HTTP request/response, JSON serialization, and delegates everything else
  to the core. No business logic lives here.

ENDPOINTS:
  Transactions:
    POST   /api/v1/transactions             Create transaction
    GET    /api/v1/transactions             List with filtering
    GET    /api/v1/transactions/accounts    Distinct account labels
    GET    /api/v1/transactions/categories  Distinct category labels
    GET    /api/v1/transactions/{id}        Get single transaction
    PUT    /api/v1/transactions/{id}        Update (optimistic locking)
    DELETE /api/v1/transactions/{id}        Soft delete via tombstone

  Recurrences:
    POST   /api/v1/recurrences              Create recurrence template
    GET    /api/v1/recurrences              List with filtering
    GET    /api/v1/recurrences/{id}         Get single recurrence
    PUT    /api/v1/recurrences/{id}         Update (optimistic locking)
    DELETE /api/v1/recurrences/{id}         Soft delete via tombstone

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Open a unit of work, call the core, commit
  4. Re-read the joined view and serialize it
  5. Map core errors onto HTTP statuses

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 404: Unknown id
  - 409: Conflict (precondition/lost race), immutable record, repeat delete
  - 500: Storage failures

SECURITY NOTE:
  Authentication is an external collaborator and not wired here; the
  author of a write is taken from the X-Author header when present.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/memogarden/core-engine/core"
	"github.com/memogarden/core-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Registry   *sqlite.Registry
	Records    *sqlite.RecordStore
	Tombstones *core.TombstoneManager

	log zerolog.Logger
}

// NewHandler wires a handler over the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	registry := sqlite.NewRegistry(store)
	records := sqlite.NewRecordStore(store, registry)
	return &Handler{
		Store:      store,
		Registry:   registry,
		Records:    records,
		Tombstones: core.NewTombstoneManager(registry, store),
		log:        log,
	}
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction handles POST /api/v1/transactions.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Amount == nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "amount is required"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = core.DefaultCurrency
	}

	fields := core.TransactionFields{
		Amount:      decimal.NewFromFloat(*req.Amount),
		Currency:    currency,
		Date:        req.TransactionDate,
		Description: req.Description,
		Account:     req.Account,
		Category:    req.Category,
		Notes:       req.Notes,
		Author:      r.Header.Get("X-Author"),
	}

	id, err := h.create(r, fields)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.Records.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, transactionDTO(rec))
}

// GetTransaction handles GET /api/v1/transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := stripCorePrefix(chi.URLParam(r, "id"))

	rec, err := h.getOfKind(r, id, core.KindTransaction)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transactionDTO(rec))
}

// ListTransactions handles GET /api/v1/transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.RecordFilter{
		IncludeSuperseded: q.Get("include_superseded") == "true",
		Limit:             intParam(q.Get("limit"), core.DefaultListLimit),
		Offset:            intParam(q.Get("offset"), 0),
		Account:           q.Get("account"),
		Category:          q.Get("category"),
		DateFrom:          q.Get("start_date"),
		DateTo:            q.Get("end_date"),
	}

	records, err := h.Records.List(r.Context(), core.KindTransaction, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, transactionDTO(rec))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// UpdateTransaction handles PUT /api/v1/transactions/{id}.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := stripCorePrefix(chi.URLParam(r, "id"))

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	patch := core.TransactionPatch{
		Currency:    req.Currency,
		Date:        req.TransactionDate,
		Description: req.Description,
		Account:     req.Account,
		Category:    req.Category,
		Notes:       req.Notes,
	}
	if req.Amount != nil {
		amount := decimal.NewFromFloat(*req.Amount)
		patch.Amount = &amount
	}

	rec, err := h.update(r, id, patch, precondition(req.BasedOnHash, req.BasedOnVersion))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transactionDTO(rec))
}

// DeleteTransaction handles DELETE /api/v1/transactions/{id}.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := stripCorePrefix(chi.URLParam(r, "id"))

	if err := h.deleteOfKind(r, id, core.KindTransaction); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAccounts handles GET /api/v1/transactions/accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	labels, err := h.Records.Accounts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if labels == nil {
		labels = []string{}
	}
	h.writeJSON(w, http.StatusOK, labels)
}

// ListCategories handles GET /api/v1/transactions/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	labels, err := h.Records.Categories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if labels == nil {
		labels = []string{}
	}
	h.writeJSON(w, http.StatusOK, labels)
}

// =============================================================================
// RECURRENCE HANDLERS
// =============================================================================

// CreateRecurrence handles POST /api/v1/recurrences.
func (h *Handler) CreateRecurrence(w http.ResponseWriter, r *http.Request) {
	var req CreateRecurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if req.ValidFrom == nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "valid_from is required"})
		return
	}

	fields := core.RecurrenceFields{
		RRule:      req.RRule,
		Entities:   req.Entities,
		ValidFrom:  *req.ValidFrom,
		ValidUntil: req.ValidUntil,
	}

	id, err := h.create(r, fields)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.Records.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, recurrenceDTO(rec))
}

// GetRecurrence handles GET /api/v1/recurrences/{id}.
func (h *Handler) GetRecurrence(w http.ResponseWriter, r *http.Request) {
	id := core.EntityID(chi.URLParam(r, "id"))

	rec, err := h.getOfKind(r, id, core.KindRecurrence)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, recurrenceDTO(rec))
}

// ListRecurrences handles GET /api/v1/recurrences.
func (h *Handler) ListRecurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.RecordFilter{
		IncludeSuperseded: q.Get("include_superseded") == "true",
		Limit:             intParam(q.Get("limit"), core.DefaultListLimit),
		Offset:            intParam(q.Get("offset"), 0),
	}

	records, err := h.Records.List(r.Context(), core.KindRecurrence, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]RecurrenceDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, recurrenceDTO(rec))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// UpdateRecurrence handles PUT /api/v1/recurrences/{id}.
func (h *Handler) UpdateRecurrence(w http.ResponseWriter, r *http.Request) {
	id := core.EntityID(chi.URLParam(r, "id"))

	var req UpdateRecurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	patch := core.RecurrencePatch{
		RRule:      req.RRule,
		Entities:   req.Entities,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	}

	rec, err := h.update(r, id, patch, precondition(req.BasedOnHash, req.BasedOnVersion))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, recurrenceDTO(rec))
}

// DeleteRecurrence handles DELETE /api/v1/recurrences/{id}.
func (h *Handler) DeleteRecurrence(w http.ResponseWriter, r *http.Request) {
	id := core.EntityID(chi.URLParam(r, "id"))

	if err := h.deleteOfKind(r, id, core.KindRecurrence); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SHARED PLUMBING
// =============================================================================

// create runs a record creation in its own unit of work.
func (h *Handler) create(r *http.Request, fields core.Fields) (core.EntityID, error) {
	var id core.EntityID
	err := core.WithUnitOfWork(r.Context(), h.Store, func(uow core.UnitOfWork) error {
		var err error
		id, err = h.Records.Create(r.Context(), uow, fields, core.CreateOptions{})
		return err
	})
	return id, err
}

// getOfKind fetches the joined record view for one endpoint's kind. Each
// endpoint serves its own kind's view, so an id owned by another kind is
// simply absent here, not a type error.
func (h *Handler) getOfKind(r *http.Request, id core.EntityID, kind core.Kind) (core.Record, error) {
	rec, err := h.Records.Get(r.Context(), id)
	if err != nil {
		return core.Record{}, err
	}
	if rec.Entity.Kind != kind {
		return core.Record{}, core.ErrNotFound
	}
	return rec, nil
}

// deleteOfKind soft-deletes an id after confirming it belongs to this
// endpoint's kind.
func (h *Handler) deleteOfKind(r *http.Request, id core.EntityID, kind core.Kind) error {
	entity, err := h.Registry.Get(r.Context(), id)
	if err != nil {
		return err
	}
	if entity.Kind != kind {
		return core.ErrNotFound
	}
	_, err = h.Tombstones.Delete(r.Context(), id)
	return err
}

// update runs a record update in its own unit of work.
func (h *Handler) update(r *http.Request, id core.EntityID, patch core.Patch, pre core.Precondition) (core.Record, error) {
	var rec core.Record
	err := core.WithUnitOfWork(r.Context(), h.Store, func(uow core.UnitOfWork) error {
		var err error
		rec, err = h.Records.Update(r.Context(), uow, id, patch, pre)
		return err
	})
	return rec, err
}

func precondition(hash *string, version *int64) core.Precondition {
	switch {
	case hash != nil:
		return core.ExpectHash(*hash)
	case version != nil:
		return core.ExpectVersion(*version)
	default:
		return core.NoPrecondition()
	}
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps core errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var conflict *core.ConflictError
	switch {
	case errors.As(err, &conflict):
		h.writeJSON(w, http.StatusConflict, ConflictResponse{
			Message:        conflict.Message,
			CurrentHash:    conflict.CurrentHash,
			CurrentVersion: conflict.CurrentVersion,
			ClientHash:     conflict.ClientHash,
			ClientVersion:  conflict.ClientVersion,
		})
	case core.IsNotFound(err):
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, core.ErrImmutableRecord):
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: "record is superseded and immutable"})
	case errors.Is(err, core.ErrAlreadySuperseded):
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: "already deleted"})
	case errors.Is(err, core.ErrInvalidFields):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
