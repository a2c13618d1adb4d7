// Package sqlstoretest seeds and inspects SQL stores in tests.
package sqlstoretest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/sqlite"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
)

// NewSQLite opens a migrated SQLite store in a temporary directory.
// It is closed when the test ends.
func NewSQLite(t testing.TB) *sqlstore.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "facegraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func queryRow(store *sqlstore.Store, query string, args ...any) *sql.Row {
	query, args = store.Dialect().Rebind(query, args)
	return store.DB().QueryRowContext(context.Background(), query, args...)
}

func exec(t testing.TB, store *sqlstore.Store, query string, args ...any) {
	t.Helper()
	query, args = store.Dialect().Rebind(query, args)
	_, err := store.DB().ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

// AddFace inserts a face and returns its ID. An empty clusterID leaves it unassigned.
func AddFace(t testing.TB, store *sqlstore.Store, clusterID, imageID string, quality *float64, thumbnail []byte) int64 {
	t.Helper()
	var cluster, thumb any
	if clusterID != "" {
		cluster = clusterID
	}
	if thumbnail != nil {
		thumb = thumbnail
	}
	var id int64
	err := queryRow(store, `
		INSERT INTO faces (image_id, cluster_id, quality_score, face_thumb_bytes)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, imageID, cluster, quality, thumb).Scan(&id)
	require.NoError(t, err)
	return id
}

// AddFaces inserts n faces into clusterID.
func AddFaces(t testing.TB, store *sqlstore.Store, clusterID string, n int) {
	t.Helper()
	for range n {
		AddFace(t, store, clusterID, "img-"+clusterID, nil, nil)
	}
}

// AddEdge inserts a similarity edge and returns its ID.
func AddEdge(t testing.TB, store *sqlstore.Store, clusterID, similarClusterID string) int64 {
	t.Helper()
	var id int64
	err := queryRow(store, `
		INSERT INTO similar_faces (cluster_id, similar_cluster_id)
		VALUES ($1, $2)
		RETURNING id`, clusterID, similarClusterID).Scan(&id)
	require.NoError(t, err)
	return id
}

// Exec runs a raw statement, e.g. to install a trigger.
func Exec(t testing.TB, store *sqlstore.Store, query string, args ...any) {
	t.Helper()
	exec(t, store, query, args...)
}

// FaceRow is the part of a face a merge can change.
type FaceRow struct {
	ID        int64
	ClusterID string
}

// State is a comparable dump of the tables a merge writes.
type State struct {
	Faces  []FaceRow
	Edges  []database.SimilarityEdge
	Merges int
}

// Snapshot reads the current state of store.
func Snapshot(t testing.TB, store *sqlstore.Store) State {
	t.Helper()
	ctx := context.Background()
	var st State

	rows, err := store.DB().QueryContext(ctx, `SELECT id, cluster_id FROM faces ORDER BY id`)
	require.NoError(t, err)
	for rows.Next() {
		var (
			f       FaceRow
			cluster sql.NullString
		)
		require.NoError(t, rows.Scan(&f.ID, &cluster))
		f.ClusterID = cluster.String
		st.Faces = append(st.Faces, f)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())

	rows, err = store.DB().QueryContext(ctx, `SELECT id, cluster_id, similar_cluster_id FROM similar_faces ORDER BY id`)
	require.NoError(t, err)
	for rows.Next() {
		var e database.SimilarityEdge
		require.NoError(t, rows.Scan(&e.ID, &e.ClusterID, &e.SimilarClusterID))
		st.Edges = append(st.Edges, e)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())

	require.NoError(t, store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM cluster_merges`).Scan(&st.Merges))
	return st
}

// Pairs returns the (cluster_id, similar_cluster_id) pairs of edges in order.
func (s State) Pairs() [][2]string {
	pairs := make([][2]string, 0, len(s.Edges))
	for _, e := range s.Edges {
		pairs = append(pairs, [2]string{e.ClusterID, e.SimilarClusterID})
	}
	return pairs
}
