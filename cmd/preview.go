package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
	"github.com/kozaktomas/facegraph/internal/database"
)

var previewCmd = &cobra.Command{
	Use:   "preview <source-cluster> <target-cluster>",
	Short: "Show what merging two clusters would touch",
	Long: `Report the face and edge counts a merge would rewrite, read from one
consistent snapshot. Nothing is written. Zero counts are omitted.`,
	Args: cobra.ExactArgs(2),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().Bool("json", false, "Output as JSON")
}

// PreviewOutput is the JSON output of a preview.
type PreviewOutput struct {
	SourceClusterID string             `json:"source_cluster_id"`
	TargetClusterID string             `json:"target_cluster_id"`
	Preview         []PreviewOutputRow `json:"preview"`
}

// PreviewOutputRow is one typed count of a preview.
type PreviewOutputRow struct {
	Type      string `json:"type"`
	ClusterID string `json:"cluster_id"`
	FaceCount int64  `json:"face_count"`
}

func newPreviewOutput(res *consolidation.PreviewResult) PreviewOutput {
	out := PreviewOutput{
		SourceClusterID: res.Source,
		TargetClusterID: res.Target,
		Preview:         []PreviewOutputRow{},
	}
	for _, row := range res.Rows() {
		out.Preview = append(out.Preview, PreviewOutputRow{Type: row.Type, ClusterID: row.ClusterID, FaceCount: row.FaceCount})
	}
	return out
}

func printPreview(res *consolidation.PreviewResult) {
	fmt.Printf("Merge preview: %s -> %s\n", res.Source, res.Target)
	rows := res.Rows()
	if len(rows) == 0 {
		fmt.Println("  Nothing to merge")
		return
	}
	for _, row := range rows {
		fmt.Printf("  %-20s %-12s %d\n", row.Type, row.ClusterID, row.FaceCount)
	}
}

func runPreview(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withService(ctx, func(_ *config.Config, _ database.Backend, svc *consolidation.Service) error {
		res, err := svc.Preview(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(newPreviewOutput(res))
		}
		printPreview(res)
		return nil
	})
}
