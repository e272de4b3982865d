/*
hash.go - Canonical content hashing for the version chain

PURPOSE:
  Computes the tamper-evident hash that links each record version to its
  predecessor. Any holder of a prior hash can detect whether intervening
  edits occurred; reordering or truncating the chain changes every later
  digest.

ALGORITHM:
  SHA-256 over a canonical JSON encoding of the business fields, with the
  predecessor hash (or a fixed genesis sentinel at version 1) mixed in.
  encoding/json marshals map keys in sorted order, which gives the
  field-order-independent canonical form. Clients rely on hash equality
  for optimistic locking, so the encoding is part of the wire contract:

    digest = hex(sha256(json(sorted fields) || "\n" || previous))

SEE ALSO:
  - fields.go: canonical() payload maps
  - store.go: Where chain links are written
*/
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// genesisSentinel stands in for the previous hash at version 1, so a chain
// cannot be truncated and restarted without changing the first digest.
const genesisSentinel = "genesis"

// HashFields computes the content hash of a payload at one chain position.
// previousHash is the record's hash at the prior version, or "" at version 1.
// Pure function; no side effects.
func HashFields(f Fields, previousHash string) (string, error) {
	payload, err := json.Marshal(f.canonical())
	if err != nil {
		// canonical() maps contain only strings, nils and nested strings;
		// a marshal failure means a fields implementation is broken.
		return "", fmt.Errorf("canonical encoding of %s fields: %w", f.Kind(), err)
	}

	prev := previousHash
	if prev == "" {
		prev = genesisSentinel
	}

	h := sha256.New()
	h.Write(payload)
	h.Write([]byte("\n"))
	h.Write([]byte(prev))
	return hex.EncodeToString(h.Sum(nil)), nil
}
