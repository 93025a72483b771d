package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/schema"
	"github.com/roach88/lifeplan/internal/testutil"
)

type fixture struct {
	repos *Repositories
	store *kvstore.Store
	clock *testutil.StepClock
}

// setupRepos opens a fresh store with deterministic ids and time.
func setupRepos(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := kvstore.Open(filepath.Join(t.TempDir(), "lifeplan.db"), kvstore.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewStepClock()
	repos := New(s, Deps{
		IDs:    testutil.NewSequenceGenerator(""),
		Clock:  clock,
		Logger: logger,
	})
	return fixture{repos: repos, store: s, clock: clock}
}

// seedPlan creates a plan with an initial version.
func seedPlan(t *testing.T, f fixture, name string) (domain.Plan, domain.PlanVersion) {
	t.Helper()
	ctx := context.Background()
	p, err := f.repos.Plans.Create(ctx, NewPlan{Name: name})
	require.NoError(t, err)
	v, err := f.repos.Versions.CreateInitial(ctx, p.ID, NewVersion{})
	require.NoError(t, err)
	p, err = f.repos.Plans.Get(ctx, p.ID)
	require.NoError(t, err)
	return p, v
}

// count returns the number of documents in coll.
func count(t *testing.T, s *kvstore.Store, coll schema.Collection) int {
	t.Helper()
	recs, err := s.ListAll(context.Background(), coll, kvstore.Query{})
	require.NoError(t, err)
	return len(recs)
}

func ptr[T any](v T) *T { return &v }
