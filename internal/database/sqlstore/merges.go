package sqlstore

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facegraph/internal/database"
)

// RecordMerge inserts the audit row of a merge.
func (c conn) RecordMerge(ctx context.Context, r database.MergeRecord) error {
	_, err := c.exec(ctx, `
		INSERT INTO cluster_merges (
			id, source_cluster_id, target_cluster_id, faces_updated,
			similar_as_main_deleted, similar_as_similar_deleted,
			duplicates_removed, self_refs_removed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.SourceClusterID, r.TargetClusterID, r.FacesUpdated,
		r.RemovedAsPrincipal, r.RemovedAsNeighbor,
		r.DuplicatesRemoved, r.SelfRefsRemoved, r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert merge record: %w", err)
	}
	return nil
}

// ListMerges returns up to limit merge records, newest first.
func (s *Store) ListMerges(ctx context.Context, limit int) ([]database.MergeRecord, error) {
	rows, err := s.conn().query(ctx, `
		SELECT id, source_cluster_id, target_cluster_id, faces_updated,
		       similar_as_main_deleted, similar_as_similar_deleted,
		       duplicates_removed, self_refs_removed, created_at
		FROM cluster_merges
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, database.ClampMergeHistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query merges: %w", err)
	}
	defer rows.Close()

	merges := make([]database.MergeRecord, 0)
	for rows.Next() {
		var r database.MergeRecord
		if err := rows.Scan(
			&r.ID, &r.SourceClusterID, &r.TargetClusterID, &r.FacesUpdated,
			&r.RemovedAsPrincipal, &r.RemovedAsNeighbor,
			&r.DuplicatesRemoved, &r.SelfRefsRemoved, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan merge: %w", err)
		}
		merges = append(merges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate merges: %w", err)
	}
	return merges, nil
}
