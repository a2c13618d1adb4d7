package consolidation

// SweepScope selects which edges the duplicate and self-loop repair visits.
type SweepScope string

const (
	// SweepGlobal repairs the whole similarity graph on every merge.
	SweepGlobal SweepScope = "global"
	// SweepScoped repairs only edges touching the merged clusters.
	SweepScoped SweepScope = "scoped"
)

// Preview row types, in the order Rows returns them.
const (
	RowMergePerson      = "merge_person"
	RowTargetPerson     = "target_person"
	RowSimilarAsMain    = "similar_as_main"
	RowSimilarAsSimilar = "similar_as_similar"
)

// MergeSummary reports what a committed merge changed.
type MergeSummary struct {
	Source             string
	Target             string
	MergeID            string
	FacesUpdated       int64
	RemovedAsPrincipal int64
	RemovedAsNeighbor  int64
	DuplicatesRemoved  int64
	SelfRefsRemoved    int64
}

// rowCounts labels the counters for metrics.
func (s MergeSummary) rowCounts() map[string]int64 {
	return map[string]int64{
		"faces_updated":              s.FacesUpdated,
		"similar_as_main_deleted":    s.RemovedAsPrincipal,
		"similar_as_similar_deleted": s.RemovedAsNeighbor,
		"duplicates_removed":         s.DuplicatesRemoved,
		"self_refs_removed":          s.SelfRefsRemoved,
	}
}

// PreviewResult is a point-in-time estimate of what Merge would touch.
type PreviewResult struct {
	Source            string
	Target            string
	SourceFaces       int64
	TargetFaces       int64
	SourceAsPrincipal int64
	SourceAsNeighbor  int64
}

// PreviewRow is one typed count of a preview.
type PreviewRow struct {
	Type      string
	ClusterID string
	FaceCount int64
}

// Rows returns the preview as typed rows. Zero counts are omitted.
func (p PreviewResult) Rows() []PreviewRow {
	all := []PreviewRow{
		{Type: RowMergePerson, ClusterID: p.Source, FaceCount: p.SourceFaces},
		{Type: RowTargetPerson, ClusterID: p.Target, FaceCount: p.TargetFaces},
		{Type: RowSimilarAsMain, ClusterID: p.Source, FaceCount: p.SourceAsPrincipal},
		{Type: RowSimilarAsSimilar, ClusterID: p.Source, FaceCount: p.SourceAsNeighbor},
	}
	rows := make([]PreviewRow, 0, len(all))
	for _, r := range all {
		if r.FaceCount > 0 {
			rows = append(rows, r)
		}
	}
	return rows
}
