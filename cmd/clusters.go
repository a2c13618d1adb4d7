package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
	"github.com/kozaktomas/facegraph/internal/database"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List face clusters",
	Long: `List every cluster that owns at least one face, with its face count.

Examples:
  facegraph clusters
  facegraph clusters --min-faces 5
  facegraph clusters faces 17`,
	Args: cobra.NoArgs,
	RunE: runClusters,
}

var clusterFacesCmd = &cobra.Command{
	Use:   "faces <cluster>",
	Short: "List the faces of one cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterFaces,
}

func init() {
	rootCmd.AddCommand(clustersCmd)
	clustersCmd.AddCommand(clusterFacesCmd)

	clustersCmd.Flags().Int("min-faces", 1, "Only list clusters with at least this many faces")
	clustersCmd.Flags().Bool("json", false, "Output as JSON")
	clusterFacesCmd.Flags().Bool("json", false, "Output as JSON")
}

// ClusterOutput is one cluster of the JSON output.
type ClusterOutput struct {
	ClusterID    string `json:"cluster_id"`
	FaceCount    int64  `json:"face_count"`
	HasThumbnail bool   `json:"has_thumbnail"`
}

// FaceOutput is one face of the JSON output.
type FaceOutput struct {
	ID           int64    `json:"id"`
	ImageID      string   `json:"image_id"`
	QualityScore *float64 `json:"quality_score"`
	HasThumbnail bool     `json:"has_thumbnail"`
}

func runClusters(cmd *cobra.Command, args []string) error {
	minFaces := int64(mustGetInt(cmd, "min-faces"))
	jsonOutput := mustGetBool(cmd, "json")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withService(ctx, func(_ *config.Config, backend database.Backend, _ *consolidation.Service) error {
		clusters, err := backend.ListClusters(ctx)
		if err != nil {
			return fmt.Errorf("listing clusters: %w", err)
		}

		out := make([]ClusterOutput, 0, len(clusters))
		for _, c := range clusters {
			if c.FaceCount < minFaces {
				continue
			}
			out = append(out, ClusterOutput{ClusterID: c.ClusterID, FaceCount: c.FaceCount, HasThumbnail: len(c.Thumbnail) > 0})
		}
		if jsonOutput {
			return outputJSON(out)
		}

		fmt.Printf("%-24s %s\n", "CLUSTER", "FACES")
		for _, c := range out {
			fmt.Printf("%-24s %d\n", c.ClusterID, c.FaceCount)
		}
		fmt.Printf("\n%d clusters\n", len(out))
		return nil
	})
}

func runClusterFaces(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withService(ctx, func(_ *config.Config, backend database.Backend, _ *consolidation.Service) error {
		faces, err := backend.GetClusterFaces(ctx, args[0])
		if err != nil {
			return fmt.Errorf("listing faces of cluster %s: %w", args[0], err)
		}
		if len(faces) == 0 {
			return fmt.Errorf("cluster (%s) not found", args[0])
		}
		if jsonOutput {
			out := make([]FaceOutput, 0, len(faces))
			for _, f := range faces {
				out = append(out, FaceOutput{ID: f.ID, ImageID: f.ImageID, QualityScore: f.QualityScore, HasThumbnail: len(f.Thumbnail) > 0})
			}
			return outputJSON(out)
		}

		fmt.Printf("%-10s %-32s %s\n", "FACE", "IMAGE", "QUALITY")
		for _, f := range faces {
			quality := "-"
			if f.QualityScore != nil {
				quality = fmt.Sprintf("%.3f", *f.QualityScore)
			}
			fmt.Printf("%-10d %-32s %s\n", f.ID, f.ImageID, quality)
		}
		return nil
	})
}
