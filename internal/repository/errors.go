package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
)

// ErrorCode categorizes repository errors.
type ErrorCode string

const (
	// CodeNotFound indicates a required row is missing.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConflict indicates a write collides with an existing row.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeInvariant indicates the operation would break an entity invariant.
	CodeInvariant ErrorCode = "INVARIANT"

	// CodeInvalidArgument indicates malformed input.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error is raised deliberately by a repository operation.
//
// Op names the operation ("version.delete"), Entity the entity kind, and
// Meta carries identifiers for diagnostics.
type Error struct {
	Code    ErrorCode
	Op      string
	Entity  string
	Message string
	Meta    map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s", e.Op, e.Code, e.Message)
	if len(e.Meta) > 0 {
		keys := make([]string, 0, len(e.Meta))
		for k := range e.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, e.Meta[k])
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NotFoundError is the not-found specialization of Error: errors.As with a
// **Error target also matches it, with Code set to CodeNotFound.
type NotFoundError struct {
	Op     string
	Entity string
	Meta   map[string]any
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return e.base().Error()
}

// As lets errors.As view a NotFoundError as an *Error.
func (e *NotFoundError) As(target any) bool {
	if t, ok := target.(**Error); ok {
		*t = e.base()
		return true
	}
	return false
}

func (e *NotFoundError) base() *Error {
	return &Error{
		Code:    CodeNotFound,
		Op:      e.Op,
		Entity:  e.Entity,
		Message: e.Entity + " not found",
		Meta:    e.Meta,
	}
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsCode reports whether err is a repository error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func notFound(op, entity string, meta map[string]any) *NotFoundError {
	return &NotFoundError{Op: op, Entity: entity, Meta: meta}
}

func newError(code ErrorCode, op, entity, message string, meta map[string]any) *Error {
	return &Error{Code: code, Op: op, Entity: entity, Message: message, Meta: meta}
}

// invalidInput converts a validation or parse failure into INVALID_ARGUMENT.
func invalidInput(op, entity string, err error) *Error {
	e := &Error{Code: CodeInvalidArgument, Op: op, Entity: entity, Message: "invalid input", Err: err}
	if fields := domain.FieldErrors(err); fields != nil {
		e.Meta = make(map[string]any, len(fields))
		for k, v := range fields {
			e.Meta[k] = v
		}
	}
	return e
}

// storageErr annotates a storage failure with the operation. Unique index
// violations become CONFLICT errors; everything else is wrapped unchanged.
func storageErr(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	var ce *kvstore.ConstraintError
	if errors.As(err, &ce) {
		return &Error{
			Code:    CodeConflict,
			Op:      op,
			Entity:  entity,
			Message: "unique key already taken",
			Meta:    map[string]any{"collection": string(ce.Collection), "id": ce.Key},
			Err:     err,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
