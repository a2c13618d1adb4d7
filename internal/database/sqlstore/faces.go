package sqlstore

import (
	"context"
	"fmt"
)

// CountFaces returns the number of faces assigned to a cluster.
func (c conn) CountFaces(ctx context.Context, clusterID string) (int64, error) {
	n, err := c.count(ctx, `SELECT COUNT(*) FROM faces WHERE cluster_id = $1`, clusterID)
	if err != nil {
		return 0, fmt.Errorf("count faces of %s: %w", clusterID, err)
	}
	return n, nil
}

// ReassignCluster moves every face of source to target.
func (c conn) ReassignCluster(ctx context.Context, source, target string) (int64, error) {
	n, err := c.exec(ctx, `UPDATE faces SET cluster_id = $2 WHERE cluster_id = $1`, source, target)
	if err != nil {
		return 0, fmt.Errorf("reassign faces %s to %s: %w", source, target, err)
	}
	return n, nil
}
