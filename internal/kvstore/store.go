package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"github.com/roach88/lifeplan/internal/schema"
)

// Registered database/sql driver names.
const (
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPure is modernc.org/sqlite, usable without cgo.
	DriverPure = "sqlite"
)

// Store provides durable storage for the lifeplan collections.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	path     string
	driver   string
	registry schema.Registry
	logger   *slog.Logger
	metrics  *Metrics
}

type options struct {
	driver     string
	registry   schema.Registry
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// Option configures Open.
type Option func(*options)

// WithDriver selects the database/sql driver (DriverCGO or DriverPure).
func WithDriver(name string) Option {
	return func(o *options) { o.driver = name }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics registers the store's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithRegistry overrides the declared schema. Defaults to schema.Default.
func WithRegistry(r schema.Registry) Option {
	return func(o *options) { o.registry = r }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the declared schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{driver: DriverCGO, registry: schema.Default}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("open store: empty path: %w", ErrUnavailable)
	}
	if o.driver != DriverCGO && o.driver != DriverPure {
		return nil, fmt.Errorf("open store: unsupported driver %q: %w", o.driver, ErrUnavailable)
	}

	db, err := sql.Open(o.driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, o.registry, o.logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:       db,
		path:     path,
		driver:   o.driver,
		registry: o.registry,
		logger:   o.logger,
	}
	if o.registerer != nil {
		m, err := NewMetrics(o.registerer)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		s.metrics = m
	}

	o.logger.Debug("store opened", "path", path, "driver", o.driver, "schema_version", o.registry.Version)
	return s, nil
}

// Close closes the database connection. Later calls on the store fail with
// ErrUnavailable.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying sql.DB for direct queries, or nil once closed.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Registry returns the schema the store was opened with.
func (s *Store) Registry() schema.Registry {
	return s.registry
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) conn() (*sql.DB, error) {
	if s == nil {
		return nil, ErrUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrUnavailable
	}
	return s.db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema brings the database up to the registry inside one transaction.
// A database written by a newer registry is refused. Existing databases are
// re-checked on every open so index drift is caught early.
func applySchema(db *sql.DB, reg schema.Registry, logger *slog.Logger) error {
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > reg.Version {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, reg.Version)
	}

	if err := reg.Ensure(ctx, tx, logger); err != nil {
		return err
	}

	if version < reg.Version {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", reg.Version)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
		logger.Info("schema upgraded", "from", version, "to", reg.Version)
	}

	return tx.Commit()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
