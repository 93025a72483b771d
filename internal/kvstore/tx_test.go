package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifeplan/internal/schema"
)

var planScope = []schema.Collection{schema.Plans, schema.PlanVersions}

func TestWithTx_CommitsAcrossCollections(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, planScope, ReadWrite, func(tx *Tx) error {
		if _, err := tx.Put(schema.Plans, map[string]any{"id": "p1"}); err != nil {
			return err
		}
		_, err := tx.Put(schema.PlanVersions, versionDoc{ID: "v1", PlanID: "p1", VersionNo: 1})
		return err
	})
	require.NoError(t, err)

	_, found, err := s.Get(ctx, schema.Plans, "p1")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = s.Get(ctx, schema.PlanVersions, "v1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestWithTx_ErrorRollsBackEverything(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, planScope, ReadWrite, func(tx *Tx) error {
		if _, err := tx.Put(schema.Plans, map[string]any{"id": "p1"}); err != nil {
			return err
		}
		if _, err := tx.Put(schema.PlanVersions, versionDoc{ID: "v1", PlanID: "p1", VersionNo: 1}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := s.ListAll(ctx, schema.Plans, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
	all, err = s.ListAll(ctx, schema.PlanVersions, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWithTx_PanicRollsBackAndRepanics(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.WithTx(ctx, planScope, ReadWrite, func(tx *Tx) error {
			_, _ = tx.Put(schema.Plans, map[string]any{"id": "p1"})
			panic("boom")
		})
	})

	_, found, err := s.Get(ctx, schema.Plans, "p1")
	require.NoError(t, err, "store stays usable after a panic")
	assert.False(t, found)
}

func TestWithTx_ConstraintAbortsWholeTransaction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putVersions(t, s, versionDoc{ID: "v1", PlanID: "p1", VersionNo: 1})

	err := s.WithTx(ctx, planScope, ReadWrite, func(tx *Tx) error {
		if _, err := tx.Put(schema.Plans, map[string]any{"id": "p9"}); err != nil {
			return err
		}
		_, err := tx.Put(schema.PlanVersions, versionDoc{ID: "v2", PlanID: "p1", VersionNo: 1})
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraint)
	var ce *ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, schema.PlanVersions, ce.Collection)
	assert.Equal(t, "v2", ce.Key)

	_, found, err := s.Get(ctx, schema.Plans, "p9")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTx_ScopeAndMode(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, []schema.Collection{schema.Plans}, ReadWrite, func(tx *Tx) error {
		_, _, err := tx.Get(schema.PlanVersions, "v1")
		assert.ErrorIs(t, err, ErrOutOfScope)
		for _, err := range tx.Scan(schema.LifeEvents, Query{}) {
			assert.ErrorIs(t, err, ErrOutOfScope)
		}
		assert.True(t, tx.Covers(schema.Plans))
		assert.False(t, tx.Covers(schema.Plans, schema.LifeEvents))
		return nil
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, []schema.Collection{schema.Plans}, ReadOnly, func(tx *Tx) error {
		_, err := tx.Put(schema.Plans, map[string]any{"id": "p1"})
		assert.ErrorIs(t, err, ErrReadOnly)
		assert.ErrorIs(t, tx.Delete(schema.Plans, "p1"), ErrReadOnly)
		assert.Equal(t, ReadOnly, tx.Mode())
		return nil
	})
	require.NoError(t, err)
}

func TestTx_UnusableAfterReturn(t *testing.T) {
	s := createTestStore(t)
	var leaked *Tx
	err := s.WithTx(context.Background(), []schema.Collection{schema.Plans}, ReadOnly, func(tx *Tx) error {
		leaked = tx
		return nil
	})
	require.NoError(t, err)

	_, _, err = leaked.Get(schema.Plans, "p1")
	assert.ErrorIs(t, err, ErrTxDone)
	_, err = leaked.ListAll(schema.Plans, Query{})
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestWithTx_RequiresCollections(t *testing.T) {
	s := createTestStore(t)
	err := s.WithTx(context.Background(), nil, ReadOnly, func(*Tx) error { return nil })
	assert.Error(t, err)
}

func TestWithTx_ConcurrentWritersSerialise(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Put(ctx, schema.Plans, map[string]any{"id": fmt.Sprintf("p%02d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.ListAll(ctx, schema.Plans, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestMetrics_RecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := createTestStore(t, WithMetrics(reg))
	ctx := context.Background()

	_, err := s.Put(ctx, schema.Plans, map[string]any{"id": "p1"})
	require.NoError(t, err)
	_ = s.WithTx(ctx, []schema.Collection{schema.Plans}, ReadWrite, func(*Tx) error {
		return errors.New("abort")
	})

	m := s.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("readwrite", outcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("readwrite", outcomeAborted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("plans", "put")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors register once per registry")
}
