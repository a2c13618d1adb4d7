package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/facegraph/internal/database"
)

// ClustersHandler serves the read-only cluster listings.
type ClustersHandler struct {
	reader database.ClusterReader
	logger zerolog.Logger
}

// NewClustersHandler creates a new clusters handler.
func NewClustersHandler(reader database.ClusterReader, logger zerolog.Logger) *ClustersHandler {
	return &ClustersHandler{reader: reader, logger: logger}
}

// ClusterResponse represents a cluster with its representative thumbnail.
type ClusterResponse struct {
	ClusterID string `json:"cluster_id"`
	FaceCount int64  `json:"face_count"`
	Thumbnail string `json:"thumbnail,omitempty"` // base64
}

// FaceResponse represents a face of a cluster.
type FaceResponse struct {
	ID           int64     `json:"id"`
	ImageID      string    `json:"image_id"`
	ClusterID    string    `json:"cluster_id"`
	QualityScore *float64  `json:"quality_score"`
	Thumbnail    string    `json:"thumbnail,omitempty"` // base64
	CreatedAt    time.Time `json:"created_at"`
}

// SuggestionResponse groups the clusters suggested as matches of one cluster.
type SuggestionResponse struct {
	ClusterID string            `json:"cluster_id"`
	Similar   []ClusterResponse `json:"similar"`
}

// MergeRecordResponse is one entry of the merge history.
type MergeRecordResponse struct {
	ID                      string    `json:"id"`
	SourceClusterID         string    `json:"source_cluster_id"`
	TargetClusterID         string    `json:"target_cluster_id"`
	FacesUpdated            int64     `json:"faces_updated"`
	SimilarAsMainDeleted    int64     `json:"similar_as_main_deleted"`
	SimilarAsSimilarDeleted int64     `json:"similar_as_similar_deleted"`
	DuplicatesRemoved       int64     `json:"duplicates_removed"`
	SelfRefsRemoved         int64     `json:"self_refs_removed"`
	CreatedAt               time.Time `json:"created_at"`
}

func encodeThumbnail(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

func clusterResponse(c database.ClusterSummary) ClusterResponse {
	return ClusterResponse{ClusterID: c.ClusterID, FaceCount: c.FaceCount, Thumbnail: encodeThumbnail(c.Thumbnail)}
}

// List returns every live cluster.
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.reader.ListClusters(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("listing clusters")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	result := make([]ClusterResponse, 0, len(clusters))
	for _, c := range clusters {
		result = append(result, clusterResponse(c))
	}
	respondJSON(w, http.StatusOK, result)
}

// Faces returns the faces of one cluster.
func (h *ClustersHandler) Faces(w http.ResponseWriter, r *http.Request) {
	clusterID := strings.TrimSpace(chi.URLParam(r, "id"))
	if clusterID == "" {
		respondError(w, http.StatusBadRequest, "cluster id is required")
		return
	}

	faces, err := h.reader.GetClusterFaces(r.Context(), clusterID)
	if err != nil {
		h.logger.Error().Err(err).Str("cluster", sanitizeForLog(clusterID)).Msg("listing cluster faces")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if len(faces) == 0 {
		respondError(w, http.StatusNotFound, "cluster ("+clusterID+") not found")
		return
	}

	result := make([]FaceResponse, 0, len(faces))
	for _, f := range faces {
		result = append(result, FaceResponse{
			ID:           f.ID,
			ImageID:      f.ImageID,
			ClusterID:    f.ClusterID,
			QualityScore: f.QualityScore,
			Thumbnail:    encodeThumbnail(f.Thumbnail),
			CreatedAt:    f.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, result)
}

// Suggestions returns the similarity suggestions between live clusters.
func (h *ClustersHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.reader.ListSuggestions(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("listing suggestions")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	result := make([]SuggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		similar := make([]ClusterResponse, 0, len(s.Similar))
		for _, c := range s.Similar {
			similar = append(similar, clusterResponse(c))
		}
		result = append(result, SuggestionResponse{ClusterID: s.ClusterID, Similar: similar})
	}
	respondJSON(w, http.StatusOK, result)
}

// Merges returns the most recent merges. The optional limit query parameter is clamped.
func (h *ClustersHandler) Merges(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	merges, err := h.reader.ListMerges(r.Context(), database.ClampMergeHistoryLimit(limit))
	if err != nil {
		h.logger.Error().Err(err).Msg("listing merges")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	result := make([]MergeRecordResponse, 0, len(merges))
	for _, m := range merges {
		result = append(result, MergeRecordResponse{
			ID:                      m.ID,
			SourceClusterID:         m.SourceClusterID,
			TargetClusterID:         m.TargetClusterID,
			FacesUpdated:            m.FacesUpdated,
			SimilarAsMainDeleted:    m.RemovedAsPrincipal,
			SimilarAsSimilarDeleted: m.RemovedAsNeighbor,
			DuplicatesRemoved:       m.DuplicatesRemoved,
			SelfRefsRemoved:         m.SelfRefsRemoved,
			CreatedAt:               m.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, result)
}
