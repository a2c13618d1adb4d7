package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/mock"
)

func ptr(f float64) *float64 { return &f }

func newTestClustersHandler() (*ClustersHandler, *mock.MockStore) {
	store := mock.NewMockStore()
	return NewClustersHandler(store, zerolog.Nop()), store
}

func TestClustersHandler_List(t *testing.T) {
	h, store := newTestClustersHandler()
	store.AddFace("B", "img-1", ptr(0.4), []byte("low"))
	store.AddFace("B", "img-2", ptr(0.9), []byte("best"))
	store.AddFace("B", "img-3", ptr(0.99), nil)
	store.AddFace("A", "img-4", nil, nil)
	store.AddFace("", "img-5", nil, []byte("unassigned"))

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/clusters", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var result []ClusterResponse
	parseJSONResponse(t, recorder, &result)
	want := []ClusterResponse{
		{ClusterID: "A", FaceCount: 1},
		{ClusterID: "B", FaceCount: 3, Thumbnail: base64.StdEncoding.EncodeToString([]byte("best"))},
	}
	if len(result) != len(want) {
		t.Fatalf("expected %d clusters, got %+v", len(want), result)
	}
	for i := range want {
		if result[i] != want[i] {
			t.Errorf("cluster %d = %+v, want %+v", i, result[i], want[i])
		}
	}
}

func TestClustersHandler_List_Empty(t *testing.T) {
	h, _ := newTestClustersHandler()

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/clusters", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	if got := recorder.Body.String(); got != "[]\n" {
		t.Errorf("expected empty array, got %q", got)
	}
}

func TestClustersHandler_StoreErrors(t *testing.T) {
	h, store := newTestClustersHandler()
	store.ListError = errors.New("database is locked")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		req     *http.Request
	}{
		{"list", h.List, httptest.NewRequest(http.MethodGet, "/api/v1/clusters", nil)},
		{"faces", h.Faces, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/clusters/A/faces", nil), map[string]string{"id": "A"})},
		{"suggestions", h.Suggestions, httptest.NewRequest(http.MethodGet, "/api/v1/similar_clusters", nil)},
		{"merges", h.Merges, httptest.NewRequest(http.MethodGet, "/api/v1/merges", nil)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			tc.handler(recorder, tc.req)

			assertStatusCode(t, recorder, http.StatusInternalServerError)
			assertJSONError(t, recorder, errInternal)
		})
	}
}

func TestClustersHandler_Faces(t *testing.T) {
	h, store := newTestClustersHandler()
	id := store.AddFace("A", "img-1", ptr(0.5), []byte("thumb"))
	store.AddFace("B", "img-2", nil, nil)

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/clusters/A/faces", nil), map[string]string{"id": "A"})
	h.Faces(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result []FaceResponse
	parseJSONResponse(t, recorder, &result)
	if len(result) != 1 {
		t.Fatalf("expected 1 face, got %d", len(result))
	}
	got := result[0]
	if got.ID != id || got.ImageID != "img-1" || got.ClusterID != "A" {
		t.Errorf("unexpected face %+v", got)
	}
	if got.QualityScore == nil || *got.QualityScore != 0.5 {
		t.Errorf("unexpected quality score %v", got.QualityScore)
	}
	if got.Thumbnail != base64.StdEncoding.EncodeToString([]byte("thumb")) {
		t.Errorf("unexpected thumbnail %q", got.Thumbnail)
	}
}

func TestClustersHandler_Faces_Errors(t *testing.T) {
	h, _ := newTestClustersHandler()

	recorder := httptest.NewRecorder()
	h.Faces(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/clusters/Z/faces", nil), map[string]string{"id": "Z"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "cluster (Z) not found")

	recorder = httptest.NewRecorder()
	h.Faces(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/clusters/%20/faces", nil), map[string]string{"id": " "}))
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "cluster id is required")
}

func TestClustersHandler_Suggestions(t *testing.T) {
	h, store := newTestClustersHandler()
	store.AddFace("A", "img-1", nil, nil)
	store.AddFace("B", "img-2", nil, []byte("b"))
	store.AddFace("C", "img-3", nil, nil)
	store.AddEdge("A", "B")
	store.AddEdge("A", "B")
	store.AddEdge("A", "C")
	store.AddEdge("A", "A")
	store.AddEdge("B", "GONE")

	recorder := httptest.NewRecorder()
	h.Suggestions(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/similar_clusters", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result []SuggestionResponse
	parseJSONResponse(t, recorder, &result)
	if len(result) != 1 || result[0].ClusterID != "A" {
		t.Fatalf("expected suggestions for A only, got %+v", result)
	}
	similar := result[0].Similar
	if len(similar) != 2 || similar[0].ClusterID != "B" || similar[1].ClusterID != "C" {
		t.Fatalf("unexpected similar clusters %+v", similar)
	}
	if similar[0].Thumbnail != base64.StdEncoding.EncodeToString([]byte("b")) {
		t.Errorf("unexpected thumbnail %q", similar[0].Thumbnail)
	}
}

func TestClustersHandler_Merges(t *testing.T) {
	h, store := newTestClustersHandler()
	coord := store.NewCoordinator(database.CoordinatorOptions{})
	for i, id := range []string{"m1", "m2", "m3"} {
		err := coord.RunInTx(t.Context(), nil, func(ctx context.Context, tx database.Tx) error {
			return tx.RecordMerge(ctx, database.MergeRecord{
				ID:              id,
				SourceClusterID: "S",
				TargetClusterID: "T",
				FacesUpdated:    int64(i + 1),
				CreatedAt:       time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
			})
		})
		if err != nil {
			t.Fatalf("RecordMerge() error = %v", err)
		}
	}

	recorder := httptest.NewRecorder()
	h.Merges(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/merges?limit=2", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result []MergeRecordResponse
	parseJSONResponse(t, recorder, &result)
	if len(result) != 2 {
		t.Fatalf("expected 2 merges, got %d", len(result))
	}
	if result[0].ID != "m3" || result[1].ID != "m2" {
		t.Errorf("expected newest first, got %s, %s", result[0].ID, result[1].ID)
	}
	if result[0].FacesUpdated != 3 {
		t.Errorf("expected faces_updated 3, got %d", result[0].FacesUpdated)
	}
}

func TestClustersHandler_Merges_InvalidLimit(t *testing.T) {
	h, _ := newTestClustersHandler()

	for _, limit := range []string{"abc", "0", "-5"} {
		t.Run(limit, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.Merges(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/merges?limit="+limit, nil))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, "limit must be a positive integer")
		})
	}
}
