package kvstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
)

// Record is one stored document with its primary key.
type Record struct {
	Key   string
	Value json.RawMessage
}

// Decode unmarshals the document into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", r.Key, err)
	}
	return nil
}

// Cursor lazily walks records in key order. Iteration stops at the first
// error, which is yielded with a zero Record.
type Cursor = iter.Seq2[Record, error]

// Take bounds c to at most n records and stops reading rows once the bound
// is reached. n <= 0 leaves c unbounded.
func Take(c Cursor, n int) Cursor {
	if n <= 0 {
		return c
	}
	return func(yield func(Record, error) bool) {
		seen := 0
		for rec, err := range c {
			if !yield(rec, err) || err != nil {
				return
			}
			seen++
			if seen >= n {
				return
			}
		}
	}
}

// Collect materialises a cursor. The result is never nil.
func Collect(c Cursor) ([]Record, error) {
	out := []Record{}
	for rec, err := range c {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeAll collects a cursor and decodes every record as T.
func DecodeAll[T any](c Cursor) ([]T, error) {
	out := []T{}
	for rec, err := range c {
		if err != nil {
			return nil, err
		}
		var v T
		if err := rec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func errCursor(err error) Cursor {
	return func(yield func(Record, error) bool) {
		yield(Record{}, err)
	}
}

func rowsCursor(open func() (*sql.Rows, error), onRow func()) Cursor {
	return func(yield func(Record, error) bool) {
		rows, err := open()
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var key, doc string
			if err := rows.Scan(&key, &doc); err != nil {
				yield(Record{}, fmt.Errorf("scan record: %w", err))
				return
			}
			onRow()
			if !yield(Record{Key: key, Value: json.RawMessage(doc)}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, fmt.Errorf("iterate records: %w", err))
		}
	}
}
