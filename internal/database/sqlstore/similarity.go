package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// CountEdgesFrom counts edges whose principal endpoint is clusterID.
func (c conn) CountEdgesFrom(ctx context.Context, clusterID string) (int64, error) {
	n, err := c.count(ctx, `SELECT COUNT(*) FROM similar_faces WHERE cluster_id = $1`, clusterID)
	if err != nil {
		return 0, fmt.Errorf("count edges from %s: %w", clusterID, err)
	}
	return n, nil
}

// CountEdgesTo counts edges whose neighbor endpoint is clusterID.
func (c conn) CountEdgesTo(ctx context.Context, clusterID string) (int64, error) {
	n, err := c.count(ctx, `SELECT COUNT(*) FROM similar_faces WHERE similar_cluster_id = $1`, clusterID)
	if err != nil {
		return 0, fmt.Errorf("count edges to %s: %w", clusterID, err)
	}
	return n, nil
}

// DeleteEdgesFrom removes edges whose principal endpoint is clusterID.
func (c conn) DeleteEdgesFrom(ctx context.Context, clusterID string) (int64, error) {
	n, err := c.exec(ctx, `DELETE FROM similar_faces WHERE cluster_id = $1`, clusterID)
	if err != nil {
		return 0, fmt.Errorf("delete edges from %s: %w", clusterID, err)
	}
	return n, nil
}

// DeleteEdgesTo removes edges whose neighbor endpoint is clusterID.
func (c conn) DeleteEdgesTo(ctx context.Context, clusterID string) (int64, error) {
	n, err := c.exec(ctx, `DELETE FROM similar_faces WHERE similar_cluster_id = $1`, clusterID)
	if err != nil {
		return 0, fmt.Errorf("delete edges to %s: %w", clusterID, err)
	}
	return n, nil
}

// DeleteDuplicateEdges keeps the lowest-ID row of every (cluster_id, similar_cluster_id) pair.
func (c conn) DeleteDuplicateEdges(ctx context.Context, scope []string) (int64, error) {
	query := `
		DELETE FROM similar_faces
		WHERE EXISTS (
			SELECT 1 FROM similar_faces AS keep
			WHERE keep.cluster_id = similar_faces.cluster_id
			  AND keep.similar_cluster_id = similar_faces.similar_cluster_id
			  AND keep.id < similar_faces.id
		)`
	clause, args := scopeClause(scope)
	n, err := c.exec(ctx, query+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("delete duplicate edges: %w", err)
	}
	return n, nil
}

// DeleteSelfLoops removes edges pointing back at their own cluster.
func (c conn) DeleteSelfLoops(ctx context.Context, scope []string) (int64, error) {
	query := `DELETE FROM similar_faces WHERE cluster_id = similar_cluster_id`
	clause, args := scopeClause(scope)
	n, err := c.exec(ctx, query+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("delete self-referencing edges: %w", err)
	}
	return n, nil
}

// scopeClause restricts a similar_faces statement to edges touching scope.
// An empty scope yields no restriction.
func scopeClause(scope []string) (string, []any) {
	if len(scope) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(scope))
	args := make([]any, len(scope))
	for i, id := range scope {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	in := strings.Join(placeholders, ", ")
	return fmt.Sprintf(
		"\n\t\t  AND (similar_faces.cluster_id IN (%s) OR similar_faces.similar_cluster_id IN (%s))",
		in, in,
	), args
}
