package kvstore

import (
	"fmt"
	"strings"

	"github.com/roach88/lifeplan/internal/schema"
)

// Mode is the access mode of a transaction.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// String returns the metric label of the mode.
func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// Direction orders a scan.
type Direction int

const (
	// Next walks keys in ascending order.
	Next Direction = iota
	// Prev walks keys in descending order.
	Prev
)

func (d Direction) sql() string {
	if d == Prev {
		return "DESC"
	}
	return "ASC"
}

// Key is an index key: one component per key-path field. A Key shorter than
// the index addresses a prefix of a compound index.
type Key []any

// KeyRange bounds a scan. A nil bound is unbounded on that side.
type KeyRange struct {
	Lower     Key
	Upper     Key
	LowerOpen bool
	UpperOpen bool
}

// Only matches exactly the given key (or key prefix).
func Only(parts ...any) *KeyRange {
	k := Key(parts)
	return &KeyRange{Lower: k, Upper: k}
}

// Bound matches keys between lower and upper.
func Bound(lower, upper Key, lowerOpen, upperOpen bool) *KeyRange {
	return &KeyRange{Lower: lower, Upper: upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}
}

// LowerBound matches keys at or above (above, when open) lower.
func LowerBound(lower Key, open bool) *KeyRange {
	return &KeyRange{Lower: lower, LowerOpen: open}
}

// UpperBound matches keys at or below (below, when open) upper.
func UpperBound(upper Key, open bool) *KeyRange {
	return &KeyRange{Upper: upper, UpperOpen: open}
}

func (r *KeyRange) isOnly() bool {
	if r.LowerOpen || r.UpperOpen || len(r.Lower) == 0 || len(r.Lower) != len(r.Upper) {
		return false
	}
	for i := range r.Lower {
		if r.Lower[i] != r.Upper[i] {
			return false
		}
	}
	return true
}

// Query describes an ordered scan. Limit <= 0 is unbounded.
type Query struct {
	Range     *KeyRange
	Direction Direction
	Limit     int
}

// selectSQL renders the scan of a collection, or of one of its indexes when
// ix is non-nil. Documents missing an indexed field are not part of the index.
func selectSQL(st schema.Store, ix *schema.Index, q Query) (string, []any, error) {
	exprs := []string{"id"}
	if ix != nil {
		exprs = ix.Exprs()
	}

	var (
		where []string
		args  []any
	)
	if ix != nil {
		for _, e := range exprs {
			where = append(where, e+" IS NOT NULL")
		}
	}

	if r := q.Range; r != nil {
		if len(r.Lower) > len(exprs) || len(r.Upper) > len(exprs) {
			return "", nil, fmt.Errorf("%w: key has more parts than the index", ErrInvalidRange)
		}
		if r.isOnly() {
			where = append(where, compare(exprs[:len(r.Lower)], "=", len(r.Lower)))
			args = append(args, r.Lower...)
		} else {
			if len(r.Lower) > 0 {
				op := ">="
				if r.LowerOpen {
					op = ">"
				}
				where = append(where, compare(exprs[:len(r.Lower)], op, len(r.Lower)))
				args = append(args, r.Lower...)
			}
			if len(r.Upper) > 0 {
				op := "<="
				if r.UpperOpen {
					op = "<"
				}
				where = append(where, compare(exprs[:len(r.Upper)], op, len(r.Upper)))
				args = append(args, r.Upper...)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, doc FROM %s", st.Table())
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	dir := q.Direction.sql()
	order := make([]string, 0, len(exprs)+1)
	for _, e := range exprs {
		order = append(order, e+" "+dir)
	}
	if ix != nil {
		order = append(order, "id "+dir)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))
	return b.String(), args, nil
}

// compare renders a scalar or row-value comparison against n placeholders.
func compare(exprs []string, op string, n int) string {
	ph := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	if n == 1 {
		return fmt.Sprintf("%s %s %s", exprs[0], op, ph)
	}
	return fmt.Sprintf("(%s) %s (%s)", strings.Join(exprs, ", "), op, ph)
}
