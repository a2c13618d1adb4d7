package database

import (
	"context"
)

// FaceClusterReader provides read-only access to face-to-cluster assignments
type FaceClusterReader interface {
	// CountFaces returns the number of faces assigned to a cluster
	CountFaces(ctx context.Context, clusterID string) (int64, error)
}

// FaceClusterStore rewrites face-to-cluster assignments
type FaceClusterStore interface {
	FaceClusterReader

	// ReassignCluster moves every face of source to target and returns the number of faces moved
	ReassignCluster(ctx context.Context, source, target string) (int64, error)
}

// SimilarityGraphReader provides read-only access to the similarity edge set
type SimilarityGraphReader interface {
	// CountEdgesFrom counts edges whose principal endpoint is clusterID
	CountEdgesFrom(ctx context.Context, clusterID string) (int64, error)
	// CountEdgesTo counts edges whose neighbor endpoint is clusterID
	CountEdgesTo(ctx context.Context, clusterID string) (int64, error)
}

// SimilarityGraphStore repairs the similarity edge set.
// Every delete returns the number of rows removed.
type SimilarityGraphStore interface {
	SimilarityGraphReader

	// DeleteEdgesFrom removes edges whose principal endpoint is clusterID
	DeleteEdgesFrom(ctx context.Context, clusterID string) (int64, error)
	// DeleteEdgesTo removes edges whose neighbor endpoint is clusterID
	DeleteEdgesTo(ctx context.Context, clusterID string) (int64, error)
	// DeleteDuplicateEdges keeps only the lowest-ID edge of each (cluster, similar) pair.
	// An empty scope sweeps the whole graph, otherwise only edges with an endpoint in scope.
	DeleteDuplicateEdges(ctx context.Context, scope []string) (int64, error)
	// DeleteSelfLoops removes edges whose endpoints are equal, scoped like DeleteDuplicateEdges.
	DeleteSelfLoops(ctx context.Context, scope []string) (int64, error)
}

// MergeLog records committed merges
type MergeLog interface {
	RecordMerge(ctx context.Context, record MergeRecord) error
}

// ReadTx is the view handed to Coordinator.View callbacks
type ReadTx interface {
	FaceClusterReader
	SimilarityGraphReader
}

// Tx is the view handed to Coordinator.RunInTx callbacks.
// All calls share one store transaction.
type Tx interface {
	FaceClusterStore
	SimilarityGraphStore
	MergeLog
}

// Coordinator runs store work as all-or-nothing units.
type Coordinator interface {
	// RunInTx holds an exclusive lock on every key for the duration of fn and
	// commits only if fn returns nil. fn may be invoked again after a
	// transient conflict, so it must not have side effects outside tx.
	RunInTx(ctx context.Context, keys []string, fn func(ctx context.Context, tx Tx) error) error
	// View runs fn in a read-only transaction without taking key locks.
	View(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error
}

// ClusterReader serves the listing endpoints
type ClusterReader interface {
	// ListClusters returns every live cluster ordered by cluster ID
	ListClusters(ctx context.Context) ([]ClusterSummary, error)
	// GetClusterFaces returns the faces of one cluster ordered by face ID
	GetClusterFaces(ctx context.Context, clusterID string) ([]Face, error)
	// ListSuggestions returns edges between live clusters grouped by principal cluster
	ListSuggestions(ctx context.Context) ([]Suggestion, error)
	// ListMerges returns the most recent merge records first
	ListMerges(ctx context.Context, limit int) ([]MergeRecord, error)
}

// Backend is an opened store
type Backend interface {
	ClusterReader

	// Name returns the driver name the backend was opened with
	Name() string
	// Ping checks connectivity
	Ping(ctx context.Context) error
	// NewCoordinator returns a transaction coordinator bound to this backend
	NewCoordinator(opts CoordinatorOptions) Coordinator
	// Close releases the underlying connection pool
	Close() error
}
