package kvstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/lifeplan/internal/schema"
)

var (
	// ErrUnavailable is returned by every entry point of a store that is nil,
	// closed or was never opened.
	ErrUnavailable = errors.New("kvstore: store unavailable")

	// ErrUnknownCollection is returned for a collection absent from the registry.
	ErrUnknownCollection = errors.New("kvstore: unknown collection")

	// ErrUnknownIndex is returned for an index the collection does not declare.
	ErrUnknownIndex = errors.New("kvstore: unknown index")

	// ErrOutOfScope is returned when a Tx touches a collection it did not declare.
	ErrOutOfScope = errors.New("kvstore: collection not in transaction scope")

	// ErrReadOnly is returned for writes inside a ReadOnly transaction.
	ErrReadOnly = errors.New("kvstore: write in read-only transaction")

	// ErrTxDone is returned when a Tx is used after WithTx returned.
	ErrTxDone = errors.New("kvstore: transaction already finished")

	// ErrMissingKey is returned when a document carries no primary key.
	ErrMissingKey = errors.New("kvstore: document has no key")

	// ErrKeyMismatch is returned by PutAt when the explicit key differs from
	// the document's inline key.
	ErrKeyMismatch = errors.New("kvstore: explicit key differs from document key")

	// ErrInvalidRange is returned for a key range wider than the index.
	ErrInvalidRange = errors.New("kvstore: invalid key range")

	// ErrConstraint matches every *ConstraintError via errors.Is.
	ErrConstraint = errors.New("kvstore: constraint violated")
)

// ConstraintError reports a write rejected by a unique index.
type ConstraintError struct {
	Collection schema.Collection
	Key        string
	Err        error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("put %s/%s: unique constraint violated: %v", e.Collection, e.Key, e.Err)
}

// Unwrap returns the driver error.
func (e *ConstraintError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConstraint.
func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// isUniqueViolation recognises unique-constraint failures from either
// registered driver. Both surface SQLite's own message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
