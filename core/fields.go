/*
fields.go - Kind-specific payload shapes

PURPOSE:
  The closed set of record payloads. Each Kind maps statically to exactly
  one Fields shape and one Patch shape, so the hasher and the record store
  are generic over compile-time-known types rather than runtime-typed maps.

KINDS:
  transaction: A financial ledger line (amount, account, date, ...).
  recurrence:  A template for generating recurring transactions
               (iCal RRULE plus a JSON transaction template).

PARTIAL UPDATES:
  Patches carry pointer fields: nil means "keep the prior value". Applying
  a patch never touches version/hash bookkeeping - that is the record
  store's job.

SEALING:
  Fields and Patch carry unexported methods, so no package outside core can
  introduce a new kind. This is deliberate: the set of kinds is part of the
  storage schema.

SEE ALSO:
  - hash.go: Canonical hashing over these payloads
  - store.go: RecordStore operating on Fields/Patch
*/
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when a transaction omits its currency code.
const DefaultCurrency = "SGD"

// DateLayout is the wire format for transaction dates.
const DateLayout = "2006-01-02"

// =============================================================================
// FIELDS - One payload shape per kind
// =============================================================================

// Fields is a kind-specific record payload. Implementations live in this
// package only; the unexported method seals the set.
type Fields interface {
	Kind() Kind

	// Validate checks business-field integrity before storage.
	Validate() error

	// canonical returns the field set as a flat map for hashing. Every key
	// is always present (optional fields appear as nil) so two encodings
	// of the same logical payload always canonicalize identically.
	canonical() map[string]any
}

// Patch is a partial update for one kind. nil members keep prior values.
type Patch interface {
	Kind() Kind

	// apply merges the patch over the current payload.
	apply(Fields) (Fields, error)
}

// ApplyPatch merges a patch over current fields, validating the result.
// Fails with ErrInvalidFields when the patch targets a different kind or
// the merged payload is invalid.
func ApplyPatch(current Fields, p Patch) (Fields, error) {
	if current.Kind() != p.Kind() {
		return nil, fmt.Errorf("%w: patch kind %q does not match record kind %q",
			ErrInvalidFields, p.Kind(), current.Kind())
	}
	merged, err := p.apply(current)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// =============================================================================
// TRANSACTION - Financial ledger line
// =============================================================================

// TransactionFields is the business payload of a transaction record.
type TransactionFields struct {
	Amount      decimal.Decimal
	Currency    string
	Date        string // DateLayout
	Description string
	Account     string
	Category    *string
	Notes       *string
	Author      string

	// RecurrenceID links a generated transaction back to the recurrence
	// template that produced it.
	RecurrenceID *EntityID
}

func (TransactionFields) Kind() Kind { return KindTransaction }

func (f TransactionFields) Validate() error {
	if f.Account == "" {
		return fmt.Errorf("%w: account is required", ErrInvalidFields)
	}
	if f.Date == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidFields)
	}
	if _, err := time.Parse(DateLayout, f.Date); err != nil {
		return fmt.Errorf("%w: date %q is not %s", ErrInvalidFields, f.Date, DateLayout)
	}
	if f.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidFields)
	}
	return nil
}

func (f TransactionFields) canonical() map[string]any {
	return map[string]any{
		"amount":        canonicalAmount(f.Amount),
		"currency":      f.Currency,
		"date":          f.Date,
		"description":   f.Description,
		"account":       f.Account,
		"category":      stringOrNil(f.Category),
		"notes":         stringOrNil(f.Notes),
		"author":        f.Author,
		"recurrence_id": idOrNil(f.RecurrenceID),
	}
}

// TransactionPatch is a partial update for a transaction.
type TransactionPatch struct {
	Amount      *decimal.Decimal
	Currency    *string
	Date        *string
	Description *string
	Account     *string
	Category    *string
	Notes       *string
}

func (TransactionPatch) Kind() Kind { return KindTransaction }

func (p TransactionPatch) apply(current Fields) (Fields, error) {
	f := current.(TransactionFields)
	if p.Amount != nil {
		f.Amount = *p.Amount
	}
	if p.Currency != nil {
		f.Currency = *p.Currency
	}
	if p.Date != nil {
		f.Date = *p.Date
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Account != nil {
		f.Account = *p.Account
	}
	if p.Category != nil {
		f.Category = p.Category
	}
	if p.Notes != nil {
		f.Notes = p.Notes
	}
	return f, nil
}

// =============================================================================
// RECURRENCE - Template for recurring transactions
// =============================================================================

// RecurrenceFields is the business payload of a recurrence record. The
// RRule string and the Entities template are stored opaquely; expansion
// into concrete transactions is a collaborator concern.
type RecurrenceFields struct {
	RRule      string // iCal RRULE, e.g. "FREQ=MONTHLY;BYDAY=2FR"
	Entities   string // JSON transaction template(s) generated per firing
	ValidFrom  time.Time
	ValidUntil *time.Time // nil = forever
}

func (RecurrenceFields) Kind() Kind { return KindRecurrence }

func (f RecurrenceFields) Validate() error {
	if f.RRule == "" {
		return fmt.Errorf("%w: rrule is required", ErrInvalidFields)
	}
	if f.Entities == "" {
		return fmt.Errorf("%w: entities template is required", ErrInvalidFields)
	}
	if f.ValidFrom.IsZero() {
		return fmt.Errorf("%w: valid_from is required", ErrInvalidFields)
	}
	if f.ValidUntil != nil && f.ValidUntil.Before(f.ValidFrom) {
		return fmt.Errorf("%w: valid_until precedes valid_from", ErrInvalidFields)
	}
	return nil
}

func (f RecurrenceFields) canonical() map[string]any {
	var until any
	if f.ValidUntil != nil {
		until = f.ValidUntil.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"rrule":       f.RRule,
		"entities":    f.Entities,
		"valid_from":  f.ValidFrom.UTC().Format(time.RFC3339),
		"valid_until": until,
	}
}

// RecurrencePatch is a partial update for a recurrence.
type RecurrencePatch struct {
	RRule      *string
	Entities   *string
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

func (RecurrencePatch) Kind() Kind { return KindRecurrence }

func (p RecurrencePatch) apply(current Fields) (Fields, error) {
	f := current.(RecurrenceFields)
	if p.RRule != nil {
		f.RRule = *p.RRule
	}
	if p.Entities != nil {
		f.Entities = *p.Entities
	}
	if p.ValidFrom != nil {
		f.ValidFrom = *p.ValidFrom
	}
	if p.ValidUntil != nil {
		f.ValidUntil = p.ValidUntil
	}
	return f, nil
}

// =============================================================================
// CANONICAL HELPERS
// =============================================================================

// MustParseDecimal parses a stored decimal string, falling back to zero.
// Stored amounts are always written by us, so a parse failure means a
// corrupted row.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// canonicalAmount renders a decimal without trailing fractional zeros, so
// -15.5 and -15.50 canonicalize (and therefore hash) identically.
func canonicalAmount(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func idOrNil(id *EntityID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}
