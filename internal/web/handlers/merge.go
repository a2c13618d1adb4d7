package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
)

// Consolidator is the part of consolidation.Service the HTTP layer needs.
type Consolidator interface {
	Merge(ctx context.Context, source, target string) (*consolidation.MergeSummary, error)
	Preview(ctx context.Context, source, target string) (*consolidation.PreviewResult, error)
}

// MergeHandler serves cluster merges and their previews.
type MergeHandler struct {
	svc    Consolidator
	dev    bool
	logger zerolog.Logger
}

// NewMergeHandler creates a new merge handler.
func NewMergeHandler(cfg *config.Config, svc Consolidator, logger zerolog.Logger) *MergeHandler {
	return &MergeHandler{
		svc:    svc,
		dev:    cfg.IsDevelopment(),
		logger: logger,
	}
}

// MergeRequest is the body of POST /merge_clusters.
type MergeRequest struct {
	SourceClusterID string `json:"source_cluster_id"`
	TargetClusterID string `json:"target_cluster_id"`
}

// MergeDetails lists what a committed merge changed.
type MergeDetails struct {
	SourceClusterID         string `json:"source_cluster_id"`
	TargetClusterID         string `json:"target_cluster_id"`
	MergeID                 string `json:"merge_id"`
	FacesUpdated            int64  `json:"faces_updated"`
	SimilarAsMainDeleted    int64  `json:"similar_as_main_deleted"`
	SimilarAsSimilarDeleted int64  `json:"similar_as_similar_deleted"`
	DuplicatesRemoved       int64  `json:"duplicates_removed"`
	SelfRefsRemoved         int64  `json:"self_refs_removed"`
}

// MergeResponse is the success body of POST /merge_clusters.
type MergeResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Details MergeDetails `json:"details"`
}

// PreviewRow is one typed count of a merge preview.
type PreviewRow struct {
	Type      string `json:"type"`
	ClusterID string `json:"cluster_id"`
	FaceCount int64  `json:"face_count"`
}

// PreviewResponse is the success body of GET /merge_clusters.
type PreviewResponse struct {
	SourceClusterID string       `json:"source_cluster_id"`
	TargetClusterID string       `json:"target_cluster_id"`
	Preview         []PreviewRow `json:"preview"`
}

// Merge merges the source cluster into the target cluster.
func (h *MergeHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	sum, err := h.svc.Merge(r.Context(), req.SourceClusterID, req.TargetClusterID)
	if err != nil {
		h.logger.Debug().Err(err).
			Str("source", sanitizeForLog(req.SourceClusterID)).
			Str("target", sanitizeForLog(req.TargetClusterID)).
			Msg("merge request failed")
		respondConsolidationError(w, err, h.dev)
		return
	}

	respondJSON(w, http.StatusOK, MergeResponse{
		Success: true,
		Message: "Clusters merged successfully",
		Details: MergeDetails{
			SourceClusterID:         sum.Source,
			TargetClusterID:         sum.Target,
			MergeID:                 sum.MergeID,
			FacesUpdated:            sum.FacesUpdated,
			SimilarAsMainDeleted:    sum.RemovedAsPrincipal,
			SimilarAsSimilarDeleted: sum.RemovedAsNeighbor,
			DuplicatesRemoved:       sum.DuplicatesRemoved,
			SelfRefsRemoved:         sum.SelfRefsRemoved,
		},
	})
}

// Preview reports what merging source_cluster_id into target_cluster_id would touch.
func (h *MergeHandler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Preview(r.Context(), q.Get("source_cluster_id"), q.Get("target_cluster_id"))
	if err != nil {
		respondConsolidationError(w, err, h.dev)
		return
	}

	rows := res.Rows()
	preview := make([]PreviewRow, 0, len(rows))
	for _, row := range rows {
		preview = append(preview, PreviewRow{Type: row.Type, ClusterID: row.ClusterID, FaceCount: row.FaceCount})
	}

	respondJSON(w, http.StatusOK, PreviewResponse{
		SourceClusterID: res.Source,
		TargetClusterID: res.Target,
		Preview:         preview,
	})
}
