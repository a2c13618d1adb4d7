package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		args      []any
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "no placeholders",
			query:     "SELECT 1",
			wantQuery: "SELECT 1",
		},
		{
			name:      "in order",
			query:     "SELECT * FROM t WHERE a = $1 AND b = $2",
			args:      []any{"x", "y"},
			wantQuery: "SELECT * FROM t WHERE a = ? AND b = ?",
			wantArgs:  []any{"x", "y"},
		},
		{
			name:      "reordered",
			query:     "UPDATE faces SET cluster_id = $2 WHERE cluster_id = $1",
			args:      []any{"src", "dst"},
			wantQuery: "UPDATE faces SET cluster_id = ? WHERE cluster_id = ?",
			wantArgs:  []any{"dst", "src"},
		},
		{
			name:      "repeated",
			query:     "a IN ($1, $2) OR b IN ($1, $2)",
			args:      []any{"A", "B"},
			wantQuery: "a IN (?, ?) OR b IN (?, ?)",
			wantArgs:  []any{"A", "B", "A", "B"},
		},
		{
			name:      "two digit index",
			query:     "$10 $1",
			args:      []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantQuery: "? ?",
			wantArgs:  []any{10, 1},
		},
		{
			name:      "out of range is left alone",
			query:     "SELECT '$' || $3",
			args:      []any{"only"},
			wantQuery: "SELECT '$' || $3",
			wantArgs:  []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := Dialect{}.Rebind(tt.query, tt.args)
			assert.Equal(t, tt.wantQuery, q)
			if tt.wantArgs == nil {
				assert.Nil(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	got := dsn("sqlite:///tmp/facegraph.db")
	assert.Contains(t, got, "/tmp/facegraph.db?")
	assert.Contains(t, got, "_time_format=sqlite")
	assert.Contains(t, got, "_pragma=foreign_keys%281%29")

	withQuery := dsn("data.db?mode=rwc")
	assert.Contains(t, withQuery, "data.db?mode=rwc&")
}

func TestOpen_RegistersBackend(t *testing.T) {
	assert.Contains(t, database.Drivers(), config.DriverSQLite)

	backend, err := database.Open(context.Background(), &config.DatabaseConfig{
		Driver: config.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "registry.db"),
	})
	require.NoError(t, err)
	defer backend.Close()

	assert.Equal(t, config.DriverSQLite, backend.Name())
	require.NoError(t, backend.Ping(context.Background()))
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "classify.db"))
	require.NoError(t, err)
	defer store.Close()

	db := store.DB()
	_, err = db.ExecContext(ctx, `
		CREATE TABLE parent (id INTEGER PRIMARY KEY);
		CREATE TABLE child (parent_id INTEGER NOT NULL REFERENCES parent (id));
		INSERT INTO parent (id) VALUES (1);`)
	require.NoError(t, err)

	t.Run("unique", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `INSERT INTO parent (id) VALUES (1)`)
		require.Error(t, err)
		kind, code := Dialect{}.Classify(err)
		assert.Equal(t, database.ErrConstraint, kind)
		assert.NotEmpty(t, code)
	})

	t.Run("foreign key", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `INSERT INTO child (parent_id) VALUES (42)`)
		require.Error(t, err)
		kind, _ := Dialect{}.Classify(err)
		require.NotNil(t, kind)
		assert.True(t, errors.Is(kind, database.ErrConstraint))
	})

	t.Run("not a driver error", func(t *testing.T) {
		kind, code := Dialect{}.Classify(errors.New("plain"))
		assert.Nil(t, kind)
		assert.Empty(t, code)
	})
}
