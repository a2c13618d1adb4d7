//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/postgres"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore/sqlstoretest"
)

func setupTestContainer(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return &config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
}

func openStore(t *testing.T, cfg *config.DatabaseConfig) *sqlstore.Store {
	t.Helper()
	store, err := postgres.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newService(store *sqlstore.Store) *consolidation.Service {
	coord := store.NewCoordinator(database.CoordinatorOptions{Timeout: 10 * time.Second, MaxRetries: 3})
	return consolidation.NewService(coord, consolidation.SweepGlobal, zerolog.Nop())
}

func TestPostgres(t *testing.T) {
	cfg := setupTestContainer(t)
	ctx := context.Background()

	t.Run("OpenThroughRegistry", func(t *testing.T) {
		backend, err := database.Open(ctx, cfg)
		require.NoError(t, err)
		defer backend.Close()
		assert.Equal(t, "postgres", backend.Name())
		require.NoError(t, backend.Ping(ctx))
	})

	store := openStore(t, cfg)
	reset := func(t *testing.T) {
		sqlstoretest.Exec(t, store, `TRUNCATE faces, similar_faces, cluster_merges RESTART IDENTITY`)
		sqlstoretest.Exec(t, store, `DROP TRIGGER IF EXISTS block_neighbor_delete ON similar_faces`)
	}

	t.Run("MigrationsIdempotent", func(t *testing.T) {
		applied, err := store.Migrate(ctx, postgres.Migrations())
		require.NoError(t, err)
		assert.Empty(t, applied)

		versions, err := store.MigrationsApplied(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_initial.sql", "002_cluster_merges.sql"}, versions)
	})

	t.Run("MergeRepairsGraph", func(t *testing.T) {
		reset(t)
		svc := newService(store)
		for _, id := range []string{"A", "B", "C", "D"} {
			sqlstoretest.AddFaces(t, store, id, 1)
		}
		for _, pair := range [][2]string{
			{"A", "B"}, {"A", "C"}, {"C", "A"}, {"B", "B"},
			{"C", "D"}, {"C", "D"}, {"D", "C"}, {"B", "C"}, {"D", "D"},
		} {
			sqlstoretest.AddEdge(t, store, pair[0], pair[1])
		}

		sum, err := svc.Merge(ctx, "A", "B")
		require.NoError(t, err)
		assert.Equal(t, int64(1), sum.FacesUpdated)
		assert.Equal(t, int64(2), sum.RemovedAsPrincipal)
		assert.Equal(t, int64(1), sum.RemovedAsNeighbor)
		assert.Equal(t, int64(1), sum.DuplicatesRemoved)
		assert.Equal(t, int64(2), sum.SelfRefsRemoved)

		st := sqlstoretest.Snapshot(t, store)
		assert.Equal(t, [][2]string{{"C", "D"}, {"D", "C"}, {"B", "C"}}, st.Pairs())
		assert.Equal(t, 1, st.Merges)

		merges, err := store.ListMerges(ctx, 10)
		require.NoError(t, err)
		require.Len(t, merges, 1)
		assert.Equal(t, sum.MergeID, merges[0].ID)
	})

	t.Run("TriggerFailureRollsBack", func(t *testing.T) {
		reset(t)
		svc := newService(store)
		sqlstoretest.AddFaces(t, store, "A", 3)
		sqlstoretest.AddFaces(t, store, "B", 2)
		sqlstoretest.AddEdge(t, store, "A", "C")
		sqlstoretest.AddEdge(t, store, "C", "A")
		sqlstoretest.Exec(t, store, `
			CREATE OR REPLACE FUNCTION block_neighbor_delete() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION 'blocked' USING ERRCODE = 'check_violation';
			END;
			$$ LANGUAGE plpgsql`)
		sqlstoretest.Exec(t, store, `
			CREATE TRIGGER block_neighbor_delete BEFORE DELETE ON similar_faces
			FOR EACH ROW WHEN (OLD.similar_cluster_id = 'A')
			EXECUTE FUNCTION block_neighbor_delete()`)
		before := sqlstoretest.Snapshot(t, store)

		_, err := svc.Merge(ctx, "A", "B")
		require.Error(t, err)
		assert.ErrorIs(t, err, consolidation.ErrConstraintViolation)
		assert.Equal(t, before, sqlstoretest.Snapshot(t, store))
	})

	t.Run("ForeignKeyViolation", func(t *testing.T) {
		reset(t)
		svc := newService(store)
		sqlstoretest.AddFaces(t, store, "A", 1)
		sqlstoretest.AddFaces(t, store, "B", 1)
		sqlstoretest.Exec(t, store, `
			CREATE OR REPLACE FUNCTION block_neighbor_delete() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION 'fk' USING ERRCODE = 'foreign_key_violation';
			END;
			$$ LANGUAGE plpgsql`)
		sqlstoretest.Exec(t, store, `
			CREATE TRIGGER block_neighbor_delete BEFORE UPDATE ON faces
			FOR EACH ROW EXECUTE FUNCTION block_neighbor_delete()`)
		defer sqlstoretest.Exec(t, store, `DROP TRIGGER IF EXISTS block_neighbor_delete ON faces`)

		_, err := svc.Merge(ctx, "A", "B")
		var merr *consolidation.Error
		require.True(t, errors.As(err, &merr), "got %v", err)
		assert.Equal(t, consolidation.KindConstraintViolation, merr.Kind)
		assert.Equal(t, "foreign key constraint violation", merr.Message)
	})

	t.Run("ConcurrentMergesAcrossInstances", func(t *testing.T) {
		reset(t)
		// Separate pools and in-process lockers, so only the advisory locks serialize.
		svc1 := newService(store)
		svc2 := newService(openStore(t, cfg))
		sqlstoretest.AddFaces(t, store, "A", 2)
		sqlstoretest.AddFaces(t, store, "B", 3)
		sqlstoretest.AddFaces(t, store, "C", 1)
		sqlstoretest.AddEdge(t, store, "A", "C")
		sqlstoretest.AddEdge(t, store, "C", "B")

		var errAB, errBC error
		var g errgroup.Group
		g.Go(func() error {
			_, errAB = svc1.Merge(ctx, "A", "B")
			return nil
		})
		g.Go(func() error {
			_, errBC = svc2.Merge(ctx, "B", "C")
			return nil
		})
		require.NoError(t, g.Wait())

		require.NoError(t, errBC)
		st := sqlstoretest.Snapshot(t, store)
		counts := make(map[string]int)
		for _, f := range st.Faces {
			counts[f.ClusterID]++
		}
		if errAB == nil {
			assert.Equal(t, map[string]int{"C": 6}, counts)
		} else {
			assert.ErrorIs(t, errAB, consolidation.ErrNotFound)
			assert.Equal(t, map[string]int{"A": 2, "C": 4}, counts)
		}
		for _, e := range st.Edges {
			assert.False(t, e.Touches("B"), "edge %d references merged cluster B", e.ID)
			assert.False(t, e.IsSelfLoop(), "edge %d is a self-loop", e.ID)
		}
	})

	t.Run("PreviewReadOnly", func(t *testing.T) {
		reset(t)
		svc := newService(store)
		sqlstoretest.AddFaces(t, store, "A", 3)
		sqlstoretest.AddFaces(t, store, "B", 2)
		sqlstoretest.AddEdge(t, store, "A", "B")
		sqlstoretest.AddEdge(t, store, "C", "A")
		before := sqlstoretest.Snapshot(t, store)

		res, err := svc.Preview(ctx, "A", "B")
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.SourceFaces)
		assert.Equal(t, int64(1), res.SourceAsNeighbor)
		assert.Equal(t, before, sqlstoretest.Snapshot(t, store))
	})
}
