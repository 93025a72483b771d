package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// DB is the subset of *sql.DB / *sql.Tx used to apply the registry.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DriftError reports a live index whose uniqueness is weaker than declared.
type DriftError struct {
	Collection Collection
	Index      string
}

// Error implements the error interface.
func (e *DriftError) Error() string {
	return fmt.Sprintf("schema drift: index %s on %s is declared unique but the live index is not", e.Index, e.Collection)
}

// Ensure creates every missing collection and index of the registry.
// It fails on the first *DriftError without creating anything further, so
// callers should run it inside a transaction.
func (r Registry) Ensure(ctx context.Context, db DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, st := range r.Stores {
		if _, err := db.ExecContext(ctx, st.CreateTableSQL()); err != nil {
			return fmt.Errorf("create collection %s: %w", st.Name, err)
		}
		live, err := liveIndexes(ctx, db, st)
		if err != nil {
			return err
		}
		for _, ix := range st.Indexes {
			name := IndexSQLName(st.Name, ix)
			unique, exists := live[name]
			if exists {
				if ix.Unique && !unique {
					return &DriftError{Collection: st.Name, Index: ix.Name}
				}
				if !ix.Unique && unique {
					logger.Warn("live index is unique but declared non-unique",
						"collection", st.Name, "index", ix.Name)
				}
				continue
			}
			if _, err := db.ExecContext(ctx, st.CreateIndexSQL(ix)); err != nil {
				return fmt.Errorf("create index %s on %s: %w", ix.Name, st.Name, err)
			}
			logger.Debug("index created", "collection", st.Name, "index", ix.Name, "unique", ix.Unique)
		}
	}
	return nil
}

// liveIndexes maps each existing index name of the table to its uniqueness.
func liveIndexes(ctx context.Context, db DB, st Store) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", st.Table()))
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", st.Name, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("scan index of %s: %w", st.Name, err)
		}
		out[name] = unique == 1
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes of %s: %w", st.Name, err)
	}
	return out, nil
}
