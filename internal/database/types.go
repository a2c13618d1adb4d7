package database

import (
	"time"
)

// Face is a detected face as persisted by the clustering pipeline.
// Only ClusterID is ever rewritten by this module.
type Face struct {
	ID           int64
	ImageID      string
	ClusterID    string   // empty while unassigned
	QualityScore *float64 // nil when the detector did not score the face
	Thumbnail    []byte
	CreatedAt    time.Time
}

// SimilarityEdge is a directed merge suggestion from ClusterID to SimilarClusterID.
// ID reflects insertion order and is the tie-break when duplicates are removed.
type SimilarityEdge struct {
	ID               int64
	ClusterID        string
	SimilarClusterID string
}

// ClusterSummary describes a live cluster with its representative thumbnail.
type ClusterSummary struct {
	ClusterID string
	FaceCount int64
	Thumbnail []byte
}

// Suggestion groups the live clusters a principal cluster is suggested to match.
type Suggestion struct {
	ClusterID string
	Similar   []ClusterSummary
}

// MergeRecord is the audit row written by every committed merge.
type MergeRecord struct {
	ID                 string
	SourceClusterID    string
	TargetClusterID    string
	FacesUpdated       int64
	RemovedAsPrincipal int64
	RemovedAsNeighbor  int64
	DuplicatesRemoved  int64
	SelfRefsRemoved    int64
	CreatedAt          time.Time
}

// CoordinatorOptions tunes a transaction coordinator.
type CoordinatorOptions struct {
	Timeout    time.Duration // per attempt, zero disables the deadline
	MaxRetries int           // retries after ErrConflict
}

// IsSelfLoop reports whether the edge points back at its own cluster.
func (e SimilarityEdge) IsSelfLoop() bool {
	return e.ClusterID == e.SimilarClusterID
}

// Touches reports whether either endpoint of the edge is clusterID.
func (e SimilarityEdge) Touches(clusterID string) bool {
	return e.ClusterID == clusterID || e.SimilarClusterID == clusterID
}
