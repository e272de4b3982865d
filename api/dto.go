/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the core model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

UUID PREFIX:
  Transaction ids carry a "core_" prefix on the wire to distinguish core
  entities from other item namespaces; recurrence ids are plain. Inbound
  ids are accepted with or without the prefix.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - core/fields.go: The payloads these map onto
*/
package api

import (
	"strings"
	"time"

	"github.com/memogarden/core-engine/core"
)

const corePrefix = "core_"

func addCorePrefix(id core.EntityID) string {
	return corePrefix + string(id)
}

func stripCorePrefix(id string) core.EntityID {
	return core.EntityID(strings.TrimPrefix(id, corePrefix))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO is the joined-view shape for a transaction: business
// fields, hash chain state, and entity metadata.
type TransactionDTO struct {
	UUID string `json:"uuid"`
	ID   string `json:"id"` // legacy alias of uuid

	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	TransactionDate string  `json:"transaction_date"`
	Description     string  `json:"description"`
	Account         string  `json:"account"`
	Category        *string `json:"category"`
	Notes           *string `json:"notes"`
	Author          string  `json:"author"`
	RecurrenceID    *string `json:"recurrence_id"`

	Hash         string  `json:"hash"`
	PreviousHash *string `json:"previous_hash"`
	Version      int64   `json:"version"`

	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	SupersededBy *string `json:"superseded_by"`
	SupersededAt *string `json:"superseded_at"`
	GroupID      *string `json:"group_id"`
	DerivedFrom  *string `json:"derived_from"`
}

// CreateTransactionRequest is the request to create a transaction.
// Amount is a pointer so a missing amount is distinguishable from zero.
type CreateTransactionRequest struct {
	Amount          *float64 `json:"amount"`
	Currency        string   `json:"currency"`
	TransactionDate string   `json:"transaction_date"`
	Description     string   `json:"description"`
	Account         string   `json:"account"`
	Category        *string  `json:"category"`
	Notes           *string  `json:"notes"`
}

// UpdateTransactionRequest is a partial update plus an optional
// optimistic-locking precondition taken from a previous GET.
type UpdateTransactionRequest struct {
	Amount          *float64 `json:"amount"`
	Currency        *string  `json:"currency"`
	TransactionDate *string  `json:"transaction_date"`
	Description     *string  `json:"description"`
	Account         *string  `json:"account"`
	Category        *string  `json:"category"`
	Notes           *string  `json:"notes"`

	BasedOnHash    *string `json:"based_on_hash"`
	BasedOnVersion *int64  `json:"based_on_version"`
}

// =============================================================================
// RECURRENCES
// =============================================================================

// RecurrenceDTO is the joined-view shape for a recurrence template.
type RecurrenceDTO struct {
	ID string `json:"id"`

	RRule      string  `json:"rrule"`
	Entities   string  `json:"entities"`
	ValidFrom  string  `json:"valid_from"`
	ValidUntil *string `json:"valid_until"`

	Hash         string  `json:"hash"`
	PreviousHash *string `json:"previous_hash"`
	Version      int64   `json:"version"`

	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	SupersededBy *string `json:"superseded_by"`
	SupersededAt *string `json:"superseded_at"`
	GroupID      *string `json:"group_id"`
	DerivedFrom  *string `json:"derived_from"`
}

// CreateRecurrenceRequest is the request to create a recurrence template.
type CreateRecurrenceRequest struct {
	RRule      string     `json:"rrule"`
	Entities   string     `json:"entities"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

// UpdateRecurrenceRequest is a partial update for a recurrence.
type UpdateRecurrenceRequest struct {
	RRule      *string    `json:"rrule"`
	Entities   *string    `json:"entities"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`

	BasedOnHash    *string `json:"based_on_hash"`
	BasedOnVersion *int64  `json:"based_on_version"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConflictResponse is the structured 409 body: always enough state for the
// client to refetch and retry.
type ConflictResponse struct {
	Message        string  `json:"message"`
	CurrentHash    string  `json:"current_hash"`
	CurrentVersion int64   `json:"current_version"`
	ClientHash     *string `json:"client_hash,omitempty"`
	ClientVersion  *int64  `json:"client_version,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

func transactionDTO(rec core.Record) TransactionDTO {
	f := rec.Fields.(core.TransactionFields)
	e := rec.Entity

	amount, _ := f.Amount.Float64()
	id := addCorePrefix(e.ID)

	return TransactionDTO{
		UUID:            id,
		ID:              id,
		Amount:          amount,
		Currency:        f.Currency,
		TransactionDate: f.Date,
		Description:     f.Description,
		Account:         f.Account,
		Category:        f.Category,
		Notes:           f.Notes,
		Author:          f.Author,
		RecurrenceID:    prefixedID(f.RecurrenceID),
		Hash:            rec.Hash,
		PreviousHash:    optString(rec.PreviousHash),
		Version:         rec.Version,
		CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		SupersededBy:    prefixedID(e.SupersededBy),
		SupersededAt:    optTime(e.SupersededAt),
		GroupID:         prefixedID(e.GroupID),
		DerivedFrom:     prefixedID(e.DerivedFrom),
	}
}

func recurrenceDTO(rec core.Record) RecurrenceDTO {
	f := rec.Fields.(core.RecurrenceFields)
	e := rec.Entity

	return RecurrenceDTO{
		ID:           string(e.ID),
		RRule:        f.RRule,
		Entities:     f.Entities,
		ValidFrom:    f.ValidFrom.UTC().Format(time.RFC3339Nano),
		ValidUntil:   optTime(f.ValidUntil),
		Hash:         rec.Hash,
		PreviousHash: optString(rec.PreviousHash),
		Version:      rec.Version,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		SupersededBy: plainID(e.SupersededBy),
		SupersededAt: optTime(e.SupersededAt),
		GroupID:      plainID(e.GroupID),
		DerivedFrom:  plainID(e.DerivedFrom),
	}
}

func prefixedID(id *core.EntityID) *string {
	if id == nil {
		return nil
	}
	s := addCorePrefix(*id)
	return &s
}

func plainID(id *core.EntityID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
