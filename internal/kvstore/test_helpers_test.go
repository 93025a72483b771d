package kvstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lifeplan/internal/schema"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type versionDoc struct {
	ID        string `json:"id"`
	PlanID    string `json:"planId,omitempty"`
	VersionNo int    `json:"versionNo,omitempty"`
	Title     string `json:"title,omitempty"`
}

func putVersions(t *testing.T, s *Store, docs ...versionDoc) {
	t.Helper()
	err := s.WithTx(context.Background(), []schema.Collection{schema.PlanVersions}, ReadWrite, func(tx *Tx) error {
		for _, d := range docs {
			if _, err := tx.Put(schema.PlanVersions, d); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func keys(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}
