package kvstore

import (
	"context"

	"github.com/roach88/lifeplan/internal/schema"
)

// The methods below run one primitive in its own single-collection
// transaction.

// Get reads one document by primary key.
func (s *Store) Get(ctx context.Context, coll schema.Collection, key string) (rec Record, found bool, err error) {
	err = s.WithTx(ctx, []schema.Collection{coll}, ReadOnly, func(tx *Tx) error {
		var e error
		rec, found, e = tx.Get(coll, key)
		return e
	})
	return rec, found, err
}

// Put upserts value keyed by its inline primary key.
func (s *Store) Put(ctx context.Context, coll schema.Collection, value any) (key string, err error) {
	err = s.WithTx(ctx, []schema.Collection{coll}, ReadWrite, func(tx *Tx) error {
		var e error
		key, e = tx.Put(coll, value)
		return e
	})
	return key, err
}

// PutAt upserts value under an explicit key.
func (s *Store) PutAt(ctx context.Context, coll schema.Collection, key string, value any) (string, error) {
	err := s.WithTx(ctx, []schema.Collection{coll}, ReadWrite, func(tx *Tx) error {
		_, e := tx.PutAt(coll, key, value)
		return e
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes one document.
func (s *Store) Delete(ctx context.Context, coll schema.Collection, key string) error {
	return s.WithTx(ctx, []schema.Collection{coll}, ReadWrite, func(tx *Tx) error {
		return tx.Delete(coll, key)
	})
}

// ListAll returns the collection's documents in primary-key order.
func (s *Store) ListAll(ctx context.Context, coll schema.Collection, q Query) (recs []Record, err error) {
	err = s.WithTx(ctx, []schema.Collection{coll}, ReadOnly, func(tx *Tx) error {
		var e error
		recs, e = tx.ListAll(coll, q)
		return e
	})
	return recs, err
}

// ListByIndex returns documents in index order.
func (s *Store) ListByIndex(ctx context.Context, coll schema.Collection, index string, q Query) (recs []Record, err error) {
	err = s.WithTx(ctx, []schema.Collection{coll}, ReadOnly, func(tx *Tx) error {
		var e error
		recs, e = tx.ListByIndex(coll, index, q)
		return e
	})
	return recs, err
}

// GetByIndex returns the first document whose index key equals key.
func (s *Store) GetByIndex(ctx context.Context, coll schema.Collection, index string, key Key) (rec Record, found bool, err error) {
	err = s.WithTx(ctx, []schema.Collection{coll}, ReadOnly, func(tx *Tx) error {
		var e error
		rec, found, e = tx.GetByIndex(coll, index, key)
		return e
	})
	return rec, found, err
}
