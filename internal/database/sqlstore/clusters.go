package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/facegraph/internal/database"
)

// representativeFaces ranks the faces of every cluster and keeps the best one:
// faces with a thumbnail first, then highest quality score with NULLs last, then lowest ID.
const representativeFaces = `
	SELECT cluster_id, face_count, face_thumb_bytes FROM (
		SELECT cluster_id, face_thumb_bytes,
		       COUNT(*) OVER (PARTITION BY cluster_id) AS face_count,
		       ROW_NUMBER() OVER (
		           PARTITION BY cluster_id
		           ORDER BY CASE WHEN face_thumb_bytes IS NULL THEN 1 ELSE 0 END,
		                    CASE WHEN quality_score IS NULL THEN 1 ELSE 0 END,
		                    quality_score DESC,
		                    id
		       ) AS rn
		FROM faces
		WHERE cluster_id IS NOT NULL
	) ranked
	WHERE rn = 1`

// ListClusters returns every live cluster ordered by cluster ID.
func (s *Store) ListClusters(ctx context.Context) ([]database.ClusterSummary, error) {
	rows, err := s.conn().query(ctx, representativeFaces+"\n\tORDER BY cluster_id")
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	clusters := make([]database.ClusterSummary, 0)
	for rows.Next() {
		var c database.ClusterSummary
		if err := rows.Scan(&c.ClusterID, &c.FaceCount, &c.Thumbnail); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return clusters, nil
}

// GetClusterFaces returns the faces of one cluster ordered by face ID.
func (s *Store) GetClusterFaces(ctx context.Context, clusterID string) ([]database.Face, error) {
	rows, err := s.conn().query(ctx, `
		SELECT id, image_id, cluster_id, quality_score, face_thumb_bytes, created_at
		FROM faces
		WHERE cluster_id = $1
		ORDER BY id`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query faces of %s: %w", clusterID, err)
	}
	defer rows.Close()

	faces := make([]database.Face, 0)
	for rows.Next() {
		var (
			f       database.Face
			cluster sql.NullString
			quality sql.NullFloat64
		)
		if err := rows.Scan(&f.ID, &f.ImageID, &cluster, &quality, &f.Thumbnail, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.ClusterID = cluster.String
		if quality.Valid {
			q := quality.Float64
			f.QualityScore = &q
		}
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// ListSuggestions returns distinct edges between two different live clusters,
// grouped by principal cluster. Both groups and members are ordered by cluster ID.
func (s *Store) ListSuggestions(ctx context.Context) ([]database.Suggestion, error) {
	rows, err := s.conn().query(ctx, `
		WITH summary AS (`+representativeFaces+`
		)
		SELECT e.cluster_id, n.cluster_id, n.face_count, n.face_thumb_bytes
		FROM (
			SELECT DISTINCT cluster_id, similar_cluster_id
			FROM similar_faces
			WHERE cluster_id <> similar_cluster_id
		) e
		JOIN summary p ON p.cluster_id = e.cluster_id
		JOIN summary n ON n.cluster_id = e.similar_cluster_id
		ORDER BY e.cluster_id, n.cluster_id`)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]database.Suggestion, 0)
	for rows.Next() {
		var (
			principal string
			neighbor  database.ClusterSummary
		)
		if err := rows.Scan(&principal, &neighbor.ClusterID, &neighbor.FaceCount, &neighbor.Thumbnail); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		if n := len(suggestions); n == 0 || suggestions[n-1].ClusterID != principal {
			suggestions = append(suggestions, database.Suggestion{ClusterID: principal})
		}
		last := &suggestions[len(suggestions)-1]
		last.Similar = append(last.Similar, neighbor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, nil
}
