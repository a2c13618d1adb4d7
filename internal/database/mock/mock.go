// Package mock provides an in-memory implementation of the database interfaces for testing.
package mock

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facegraph/internal/database"
)

type state struct {
	faces      []database.Face
	edges      []database.SimilarityEdge
	merges     []database.MergeRecord
	nextFaceID int64
	nextEdgeID int64
}

func (s *state) clone() *state {
	c := *s
	c.faces = slices.Clone(s.faces)
	c.edges = slices.Clone(s.edges)
	c.merges = slices.Clone(s.merges)
	return &c
}

// MockStore is an in-memory database.Backend that is also its own Coordinator.
// Write transactions run one at a time against a copy of the state, which
// replaces the committed state only when the callback succeeds.
type MockStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state

	failMu sync.Mutex
	failOn map[string]error

	// Error injection
	PingError error
	ListError error
}

var (
	_ database.Backend     = (*MockStore)(nil)
	_ database.Coordinator = (*MockStore)(nil)
)

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{
		st:     &state{},
		failOn: make(map[string]error),
	}
}

// FailOn makes every later call of the named operation, e.g. "DeleteEdgesTo", return err.
// A nil err clears the injection.
func (m *MockStore) FailOn(op string, err error) {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	if err == nil {
		delete(m.failOn, op)
		return
	}
	m.failOn[op] = err
}

func (m *MockStore) failure(op string) error {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	return m.failOn[op]
}

// AddFace inserts a face and returns its ID. An empty clusterID leaves it unassigned.
func (m *MockStore) AddFace(clusterID, imageID string, quality *float64, thumbnail []byte) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.nextFaceID++
	m.st.faces = append(m.st.faces, database.Face{
		ID:           m.st.nextFaceID,
		ImageID:      imageID,
		ClusterID:    clusterID,
		QualityScore: quality,
		Thumbnail:    thumbnail,
		CreatedAt:    time.Now().UTC(),
	})
	return m.st.nextFaceID
}

// AddEdge inserts a similarity edge and returns its ID. Duplicates and self-loops are accepted.
func (m *MockStore) AddEdge(clusterID, similarClusterID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.nextEdgeID++
	m.st.edges = append(m.st.edges, database.SimilarityEdge{
		ID:               m.st.nextEdgeID,
		ClusterID:        clusterID,
		SimilarClusterID: similarClusterID,
	})
	return m.st.nextEdgeID
}

// Faces returns a copy of all faces ordered by ID.
func (m *MockStore) Faces() []database.Face {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.st.faces)
}

// Edges returns a copy of all edges ordered by ID.
func (m *MockStore) Edges() []database.SimilarityEdge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.st.edges)
}

// Merges returns a copy of the merge records in insertion order.
func (m *MockStore) Merges() []database.MergeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.st.merges)
}

// Name returns "mock".
func (m *MockStore) Name() string { return "mock" }

// Ping returns PingError.
func (m *MockStore) Ping(ctx context.Context) error { return m.PingError }

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

// NewCoordinator returns the store itself.
func (m *MockStore) NewCoordinator(database.CoordinatorOptions) database.Coordinator { return m }

// RunInTx runs fn against a private copy of the state and commits it if fn succeeds
// and ctx is still live.
func (m *MockStore) RunInTx(ctx context.Context, keys []string, fn func(ctx context.Context, tx database.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	working := m.st.clone()
	m.mu.RUnlock()

	if err := fn(ctx, &mockTx{store: m, st: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.st = working
	m.mu.Unlock()
	return nil
}

// View runs fn against a snapshot of the committed state.
func (m *MockStore) View(ctx context.Context, fn func(ctx context.Context, tx database.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	snapshot := m.st.clone()
	m.mu.RUnlock()
	return fn(ctx, &mockTx{store: m, st: snapshot})
}

// ListClusters mirrors the SQL ranking: thumbnail present, quality desc with nil last, then ID.
func (m *MockStore) ListClusters(ctx context.Context) ([]database.ClusterSummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return summarize(m.st.faces), nil
}

// GetClusterFaces returns the faces of clusterID ordered by ID.
func (m *MockStore) GetClusterFaces(ctx context.Context, clusterID string) ([]database.Face, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	faces := make([]database.Face, 0)
	for _, f := range m.st.faces {
		if f.ClusterID == clusterID {
			faces = append(faces, f)
		}
	}
	return faces, nil
}

// ListSuggestions returns distinct edges between different live clusters.
func (m *MockStore) ListSuggestions(ctx context.Context) ([]database.Suggestion, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := make(map[string]database.ClusterSummary)
	for _, c := range summarize(m.st.faces) {
		live[c.ClusterID] = c
	}

	pairs := make(map[[2]string]struct{})
	for _, e := range m.st.edges {
		_, okFrom := live[e.ClusterID]
		_, okTo := live[e.SimilarClusterID]
		if okFrom && okTo && !e.IsSelfLoop() {
			pairs[[2]string{e.ClusterID, e.SimilarClusterID}] = struct{}{}
		}
	}
	keys := make([][2]string, 0, len(pairs))
	for p := range pairs {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	suggestions := make([]database.Suggestion, 0)
	for _, p := range keys {
		if n := len(suggestions); n == 0 || suggestions[n-1].ClusterID != p[0] {
			suggestions = append(suggestions, database.Suggestion{ClusterID: p[0]})
		}
		last := &suggestions[len(suggestions)-1]
		last.Similar = append(last.Similar, live[p[1]])
	}
	return suggestions, nil
}

// ListMerges returns up to limit merge records, newest first.
func (m *MockStore) ListMerges(ctx context.Context, limit int) ([]database.MergeRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	merges := slices.Clone(m.st.merges)
	slices.Reverse(merges)
	limit = database.ClampMergeHistoryLimit(limit)
	if len(merges) > limit {
		merges = merges[:limit]
	}
	return merges, nil
}

func summarize(faces []database.Face) []database.ClusterSummary {
	best := make(map[string]database.Face)
	counts := make(map[string]int64)
	for _, f := range faces {
		if f.ClusterID == "" {
			continue
		}
		counts[f.ClusterID]++
		if cur, ok := best[f.ClusterID]; !ok || betterRepresentative(f, cur) {
			best[f.ClusterID] = f
		}
	}
	clusters := make([]database.ClusterSummary, 0, len(best))
	for id, f := range best {
		clusters = append(clusters, database.ClusterSummary{ClusterID: id, FaceCount: counts[id], Thumbnail: f.Thumbnail})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ClusterID < clusters[j].ClusterID })
	return clusters
}

func betterRepresentative(a, b database.Face) bool {
	if (a.Thumbnail != nil) != (b.Thumbnail != nil) {
		return a.Thumbnail != nil
	}
	if (a.QualityScore != nil) != (b.QualityScore != nil) {
		return a.QualityScore != nil
	}
	if a.QualityScore != nil && *a.QualityScore != *b.QualityScore {
		return *a.QualityScore > *b.QualityScore
	}
	return a.ID < b.ID
}

// mockTx operates on a working copy of the state.
type mockTx struct {
	store *MockStore
	st    *state
}

var errMissingMergeID = errors.New("mock: merge record without id")

func (t *mockTx) CountFaces(ctx context.Context, clusterID string) (int64, error) {
	if err := t.store.failure("CountFaces"); err != nil {
		return 0, err
	}
	var n int64
	for _, f := range t.st.faces {
		if f.ClusterID == clusterID {
			n++
		}
	}
	return n, nil
}

func (t *mockTx) ReassignCluster(ctx context.Context, source, target string) (int64, error) {
	if err := t.store.failure("ReassignCluster"); err != nil {
		return 0, err
	}
	var n int64
	for i := range t.st.faces {
		if t.st.faces[i].ClusterID == source {
			t.st.faces[i].ClusterID = target
			n++
		}
	}
	return n, nil
}

func (t *mockTx) CountEdgesFrom(ctx context.Context, clusterID string) (int64, error) {
	if err := t.store.failure("CountEdgesFrom"); err != nil {
		return 0, err
	}
	return t.countEdges(func(e database.SimilarityEdge) bool { return e.ClusterID == clusterID }), nil
}

func (t *mockTx) CountEdgesTo(ctx context.Context, clusterID string) (int64, error) {
	if err := t.store.failure("CountEdgesTo"); err != nil {
		return 0, err
	}
	return t.countEdges(func(e database.SimilarityEdge) bool { return e.SimilarClusterID == clusterID }), nil
}

func (t *mockTx) DeleteEdgesFrom(ctx context.Context, clusterID string) (int64, error) {
	if err := t.store.failure("DeleteEdgesFrom"); err != nil {
		return 0, err
	}
	return t.deleteEdges(func(e database.SimilarityEdge) bool { return e.ClusterID == clusterID }), nil
}

func (t *mockTx) DeleteEdgesTo(ctx context.Context, clusterID string) (int64, error) {
	if err := t.store.failure("DeleteEdgesTo"); err != nil {
		return 0, err
	}
	return t.deleteEdges(func(e database.SimilarityEdge) bool { return e.SimilarClusterID == clusterID }), nil
}

func (t *mockTx) DeleteDuplicateEdges(ctx context.Context, scope []string) (int64, error) {
	if err := t.store.failure("DeleteDuplicateEdges"); err != nil {
		return 0, err
	}
	seen := make(map[[2]string]struct{})
	return t.deleteEdges(func(e database.SimilarityEdge) bool {
		pair := [2]string{e.ClusterID, e.SimilarClusterID}
		if _, dup := seen[pair]; dup {
			return inScope(e, scope)
		}
		seen[pair] = struct{}{}
		return false
	}), nil
}

func (t *mockTx) DeleteSelfLoops(ctx context.Context, scope []string) (int64, error) {
	if err := t.store.failure("DeleteSelfLoops"); err != nil {
		return 0, err
	}
	return t.deleteEdges(func(e database.SimilarityEdge) bool {
		return e.IsSelfLoop() && inScope(e, scope)
	}), nil
}

func (t *mockTx) RecordMerge(ctx context.Context, record database.MergeRecord) error {
	if err := t.store.failure("RecordMerge"); err != nil {
		return err
	}
	if record.ID == "" {
		return errMissingMergeID
	}
	t.st.merges = append(t.st.merges, record)
	return nil
}

func (t *mockTx) countEdges(match func(database.SimilarityEdge) bool) int64 {
	var n int64
	for _, e := range t.st.edges {
		if match(e) {
			n++
		}
	}
	return n
}

// deleteEdges visits edges in ID order and drops those matching.
func (t *mockTx) deleteEdges(match func(database.SimilarityEdge) bool) int64 {
	kept := t.st.edges[:0]
	var n int64
	for _, e := range t.st.edges {
		if match(e) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	t.st.edges = kept
	return n
}

func inScope(e database.SimilarityEdge, scope []string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, id := range scope {
		if e.Touches(id) {
			return true
		}
	}
	return false
}
