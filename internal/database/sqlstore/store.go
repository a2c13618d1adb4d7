// Package sqlstore implements the face cluster and similarity graph stores on
// database/sql. Statements are written with $N placeholders; a Dialect adapts
// them and supplies the backend specific locking and error classification.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/facegraph/internal/database"
)

// Dialect captures what differs between SQL backends.
type Dialect interface {
	// Name returns the driver name, e.g. "postgres".
	Name() string
	// Rebind rewrites $N placeholders for the backend and returns the matching args.
	Rebind(query string, args []any) (string, []any)
	// TxOptions returns the options used to begin write or read-only transactions.
	TxOptions(readOnly bool) *sql.TxOptions
	// LockKeys takes transaction scoped locks on keys, which are already sorted.
	LockKeys(ctx context.Context, tx *sql.Tx, keys []string) error
	// Classify maps a driver error to a database error kind.
	Classify(err error) (kind error, code string)
}

// Store is a database.Backend over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	locker  *database.KeyLocker
}

var _ database.Backend = (*Store)(nil)

// New wraps an opened database. The caller keeps ownership of migrations.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		locker:  database.NewKeyLocker(),
	}
}

// DB returns the underlying sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Name returns the driver name.
func (s *Store) Name() string {
	return s.dialect.Name()
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// NewCoordinator returns a coordinator sharing this store's in-process key locks.
func (s *Store) NewCoordinator(opts database.CoordinatorOptions) database.Coordinator {
	return &Coordinator{
		db:      s.db,
		dialect: s.dialect,
		locker:  s.locker,
		opts:    opts,
	}
}

func (s *Store) conn() conn {
	return conn{q: s.db, dialect: s.dialect}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q       querier
	dialect Dialect
}

func (c conn) classify(err error) error {
	return database.Classify(err, c.dialect.Classify)
}

// exec runs a statement and returns the number of affected rows.
func (c conn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	query, args = c.dialect.Rebind(query, args)
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, c.classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query, args = c.dialect.Rebind(query, args)
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.classify(err)
	}
	return rows, nil
}

// count runs a single-value COUNT query.
func (c conn) count(ctx context.Context, query string, args ...any) (int64, error) {
	query, args = c.dialect.Rebind(query, args)
	var n int64
	if err := c.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, c.classify(err)
	}
	return n, nil
}

// txStore is the database.Tx handed to coordinator callbacks.
type txStore struct {
	conn
}

var _ database.Tx = txStore{}
