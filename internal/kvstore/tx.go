package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/lifeplan/internal/schema"
)

// Tx is one transaction over a declared set of collections.
// It is only valid inside the WithTx callback that received it.
type Tx struct {
	ctx   context.Context
	sqlTx *sql.Tx
	owner *Store
	scope map[schema.Collection]schema.Store
	mode  Mode
	done  bool
}

// WithTx runs fn in one transaction over collections. The transaction
// commits when fn returns nil and rolls back when fn returns an error or
// panics; the panic is re-raised after rollback.
//
// The sqlite drivers ignore sql.TxOptions.ReadOnly, so ReadOnly is enforced
// by Tx itself.
func (s *Store) WithTx(ctx context.Context, collections []schema.Collection, mode Mode, fn func(*Tx) error) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if len(collections) == 0 {
		return fmt.Errorf("with tx: no collections declared")
	}
	scope := make(map[schema.Collection]schema.Store, len(collections))
	for _, c := range collections {
		st, ok := s.registry.Lookup(c)
		if !ok {
			return fmt.Errorf("with tx: %w: %s", ErrUnknownCollection, c)
		}
		scope[c] = st
	}

	start := time.Now()
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{ctx: ctx, sqlTx: sqlTx, owner: s, scope: scope, mode: mode}

	defer func() {
		if p := recover(); p != nil {
			tx.done = true
			_ = sqlTx.Rollback()
			s.metrics.observeTx(mode, outcomePanicked, time.Since(start))
			s.logger.Error("transaction panicked", "collections", collections, "panic", p)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.done = true
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "collections", collections, "error", rbErr)
		}
		s.metrics.observeTx(mode, outcomeAborted, time.Since(start))
		s.logger.Debug("transaction aborted", "collections", collections, "error", err)
		return err
	}

	tx.done = true
	if err := sqlTx.Commit(); err != nil {
		s.metrics.observeTx(mode, outcomeFailed, time.Since(start))
		return fmt.Errorf("commit tx: %w", err)
	}
	s.metrics.observeTx(mode, outcomeCommitted, time.Since(start))
	return nil
}

// Mode returns the access mode of the transaction.
func (tx *Tx) Mode() Mode { return tx.mode }

// Context returns the context the transaction was started with.
func (tx *Tx) Context() context.Context { return tx.ctx }

// Covers reports whether every collection is in the transaction's scope.
func (tx *Tx) Covers(collections ...schema.Collection) bool {
	for _, c := range collections {
		if _, ok := tx.scope[c]; !ok {
			return false
		}
	}
	return true
}

func (tx *Tx) resolve(coll schema.Collection, write bool) (schema.Store, error) {
	if tx.done {
		return schema.Store{}, ErrTxDone
	}
	st, ok := tx.scope[coll]
	if !ok {
		return schema.Store{}, fmt.Errorf("%w: %s", ErrOutOfScope, coll)
	}
	if write && tx.mode == ReadOnly {
		return schema.Store{}, fmt.Errorf("%w: %s", ErrReadOnly, coll)
	}
	return st, nil
}

// Get reads one document by primary key. found is false when absent.
func (tx *Tx) Get(coll schema.Collection, key string) (rec Record, found bool, err error) {
	st, err := tx.resolve(coll, false)
	if err != nil {
		return Record{}, false, err
	}
	var doc string
	row := tx.sqlTx.QueryRowContext(tx.ctx, fmt.Sprintf("SELECT id, doc FROM %s WHERE id = ?", st.Table()), key)
	if err := row.Scan(&rec.Key, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("get %s/%s: %w", coll, key, err)
	}
	rec.Value = []byte(doc)
	tx.owner.metrics.op(coll, "get")
	return rec, true, nil
}

// Put upserts value keyed by its inline primary key and returns the key.
func (tx *Tx) Put(coll schema.Collection, value any) (string, error) {
	return tx.put(coll, "", value)
}

// PutAt upserts value under an explicit key. The document's inline key, when
// present, must match.
func (tx *Tx) PutAt(coll schema.Collection, key string, value any) (string, error) {
	if key == "" {
		return "", fmt.Errorf("put %s: %w", coll, ErrMissingKey)
	}
	return tx.put(coll, key, value)
}

func (tx *Tx) put(coll schema.Collection, key string, value any) (string, error) {
	st, err := tx.resolve(coll, true)
	if err != nil {
		return "", err
	}
	doc, err := encodeDoc(value)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", coll, err)
	}
	inline, err := keyFromDoc(doc, st.KeyPath)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", coll, err)
	}
	switch {
	case key == "" && inline == "":
		return "", fmt.Errorf("put %s: %w", coll, ErrMissingKey)
	case key == "":
		key = inline
	case inline != "" && inline != key:
		return "", fmt.Errorf("put %s/%s: %w", coll, key, ErrKeyMismatch)
	}

	_, err = tx.sqlTx.ExecContext(tx.ctx, fmt.Sprintf(
		"INSERT INTO %s (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc",
		st.Table()), key, doc)
	if err != nil {
		if isUniqueViolation(err) {
			return "", &ConstraintError{Collection: coll, Key: key, Err: err}
		}
		return "", fmt.Errorf("put %s/%s: %w", coll, key, err)
	}
	tx.owner.metrics.op(coll, "put")
	return key, nil
}

// Delete removes one document. Deleting an absent key is not an error.
func (tx *Tx) Delete(coll schema.Collection, key string) error {
	st, err := tx.resolve(coll, true)
	if err != nil {
		return err
	}
	if _, err := tx.sqlTx.ExecContext(tx.ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", st.Table()), key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, key, err)
	}
	tx.owner.metrics.op(coll, "delete")
	return nil
}

// Scan walks the collection in primary-key order.
func (tx *Tx) Scan(coll schema.Collection, q Query) Cursor {
	st, err := tx.resolve(coll, false)
	if err != nil {
		return errCursor(err)
	}
	return tx.scan(coll, st, nil, q)
}

// ScanIndex walks the named index in key order, ties broken by primary key.
func (tx *Tx) ScanIndex(coll schema.Collection, index string, q Query) Cursor {
	st, err := tx.resolve(coll, false)
	if err != nil {
		return errCursor(err)
	}
	ix, ok := st.Index(index)
	if !ok {
		return errCursor(fmt.Errorf("%w: %s.%s", ErrUnknownIndex, coll, index))
	}
	return tx.scan(coll, st, &ix, q)
}

func (tx *Tx) scan(coll schema.Collection, st schema.Store, ix *schema.Index, q Query) Cursor {
	query, args, err := selectSQL(st, ix, q)
	if err != nil {
		return errCursor(fmt.Errorf("scan %s: %w", coll, err))
	}
	open := func() (*sql.Rows, error) {
		if tx.done {
			return nil, ErrTxDone
		}
		rows, err := tx.sqlTx.QueryContext(tx.ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		return rows, nil
	}
	return Take(rowsCursor(open, func() { tx.owner.metrics.op(coll, "read") }), q.Limit)
}

// ListAll materialises a primary-key scan.
func (tx *Tx) ListAll(coll schema.Collection, q Query) ([]Record, error) {
	return Collect(tx.Scan(coll, q))
}

// ListByIndex materialises an index scan.
func (tx *Tx) ListByIndex(coll schema.Collection, index string, q Query) ([]Record, error) {
	return Collect(tx.ScanIndex(coll, index, q))
}

// GetByIndex returns the first document whose index key equals key.
func (tx *Tx) GetByIndex(coll schema.Collection, index string, key Key) (Record, bool, error) {
	for rec, err := range tx.ScanIndex(coll, index, Query{Range: Only(key...), Limit: 1}) {
		if err != nil {
			return Record{}, false, err
		}
		return rec, true, nil
	}
	return Record{}, false, nil
}
