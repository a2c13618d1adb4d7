package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
)

// Dialect adapts the shared statements to SQLite.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

// Name returns the driver name.
func (Dialect) Name() string { return config.DriverSQLite }

// Rebind turns $N placeholders into positional ? placeholders, reordering
// and repeating args to match their occurrence in the statement.
func (Dialect) Rebind(query string, args []any) (string, []any) {
	if !strings.Contains(query, "$") {
		return query, args
	}

	var (
		b   strings.Builder
		out = make([]any, 0, len(args))
	)
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch != '$' {
			b.WriteByte(ch)
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('?')
		out = append(out, args[n-1])
		i = j - 1
	}
	return b.String(), out
}

// TxOptions returns nil: the single connection already serializes writers.
func (Dialect) TxOptions(bool) *sql.TxOptions { return nil }

// LockKeys is a no-op. Only one connection exists, so the in-process
// key locks are sufficient.
func (Dialect) LockKeys(context.Context, *sql.Tx, []string) error { return nil }

// Classify maps SQLite result codes to database error kinds.
func (Dialect) Classify(err error) (error, string) {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return nil, ""
	}
	code := serr.Code()
	label := strconv.Itoa(code)
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return database.ErrForeignKey, label
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		return database.ErrConstraint, label
	case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
		return database.ErrConflict, label
	}
	return nil, label
}
