package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
)

// SQLSTATE codes the coordinator cares about.
const (
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	classIntegrityViolation  = "23"
)

// Dialect adapts the shared statements to PostgreSQL.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

// Name returns the driver name.
func (Dialect) Name() string { return config.DriverPostgres }

// Rebind returns the statement unchanged; PostgreSQL speaks $N natively.
func (Dialect) Rebind(query string, args []any) (string, []any) { return query, args }

// TxOptions uses READ COMMITTED for writers, which rely on advisory locks,
// and a read-only REPEATABLE READ snapshot for previews and listings.
func (Dialect) TxOptions(readOnly bool) *sql.TxOptions {
	if readOnly {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

// LockKeys takes a transaction scoped advisory lock per key, in the given order.
// The locks are released by commit or rollback.
func (Dialect) LockKeys(ctx context.Context, tx *sql.Tx, keys []string) error {
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("advisory lock %s: %w", key, err)
		}
	}
	return nil
}

// Classify maps SQLSTATE codes to database error kinds.
func (Dialect) Classify(err error) (error, string) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil, ""
	}
	code := string(pqErr.Code)
	switch {
	case code == codeForeignKeyViolation:
		return database.ErrForeignKey, code
	case string(pqErr.Code.Class()) == classIntegrityViolation:
		return database.ErrConstraint, code
	case code == codeSerializationFailure, code == codeDeadlockDetected:
		return database.ErrConflict, code
	}
	return nil, code
}
