package schema

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDDL_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "registry_ddl", []byte(Default.DDL()))
}

func TestDefault_NaturalKeysAreUnique(t *testing.T) {
	cases := []struct {
		coll  Collection
		index string
	}{
		{PlanVersions, "planId_versionNo"},
		{ScenarioAssumptions, "planVersionId_scenarioKey"},
		{MonthlyRecords, "planId_ym"},
		{HousingAssumptions, "planVersionId_housingType"},
	}
	for _, tc := range cases {
		st, ok := Default.Lookup(tc.coll)
		require.True(t, ok, tc.coll)
		ix, ok := st.Index(tc.index)
		require.True(t, ok, tc.index)
		assert.True(t, ix.Unique, "%s.%s must be unique", tc.coll, tc.index)
		assert.Len(t, ix.KeyPath, 2)
	}
}

func TestDefault_SevenCollectionsKeyedByID(t *testing.T) {
	colls := All()
	assert.Len(t, colls, 7)
	for _, st := range Default.Stores {
		assert.Equal(t, "id", st.KeyPath, st.Name)
	}
	_, ok := Default.Lookup("unknown")
	assert.False(t, ok)
}

func TestEnsure_CreatesTablesAndIndexes(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()

	require.NoError(t, Default.Ensure(ctx, db, quietLogger()))
	// Second run is a no-op.
	require.NoError(t, Default.Ensure(ctx, db, quietLogger()))

	for _, st := range Default.Stores {
		live, err := liveIndexes(ctx, db, st)
		require.NoError(t, err)
		for _, ix := range st.Indexes {
			unique, ok := live[IndexSQLName(st.Name, ix)]
			require.True(t, ok, "missing index %s.%s", st.Name, ix.Name)
			assert.Equal(t, ix.Unique, unique, "%s.%s", st.Name, ix.Name)
		}
	}
}

func TestEnsure_UniqueIndexEnforced(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()
	require.NoError(t, Default.Ensure(ctx, db, quietLogger()))

	_, err := db.Exec(`INSERT INTO "monthlyRecords"(id, doc) VALUES ('a', '{"id":"a","planId":"p1","ym":"2025-04"}')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO "monthlyRecords"(id, doc) VALUES ('b', '{"id":"b","planId":"p1","ym":"2025-04"}')`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")

	// Documents without the indexed fields never collide.
	_, err = db.Exec(`INSERT INTO "monthlyRecords"(id, doc) VALUES ('c', '{"id":"c"}')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO "monthlyRecords"(id, doc) VALUES ('d', '{"id":"d"}')`)
	require.NoError(t, err)
}

func TestEnsure_FailsOnUniquenessDrift(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()
	require.NoError(t, Default.Ensure(ctx, db, quietLogger()))

	st, _ := Default.Lookup(PlanVersions)
	ix, _ := st.Index("planId_versionNo")
	name := IndexSQLName(st.Name, ix)
	_, err := db.Exec(`DROP INDEX "` + name + `"`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE INDEX "` + name + `" ON "planVersions" (json_extract(doc, '$.planId'), json_extract(doc, '$.versionNo'))`)
	require.NoError(t, err)

	err = Default.Ensure(ctx, db, quietLogger())
	require.Error(t, err)
	var drift *DriftError
	require.True(t, errors.As(err, &drift))
	assert.Equal(t, PlanVersions, drift.Collection)
	assert.Equal(t, "planId_versionNo", drift.Index)
}

func TestEnsure_ToleratesStrongerLiveIndex(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()
	require.NoError(t, Default.Ensure(ctx, db, quietLogger()))

	st, _ := Default.Lookup(MonthlyItems)
	ix, _ := st.Index("monthlyRecordId")
	name := IndexSQLName(st.Name, ix)
	_, err := db.Exec(`DROP INDEX "` + name + `"`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE UNIQUE INDEX "` + name + `" ON "monthlyItems" (json_extract(doc, '$.monthlyRecordId'))`)
	require.NoError(t, err)

	assert.NoError(t, Default.Ensure(ctx, db, quietLogger()))
}
