package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
	"github.com/kozaktomas/facegraph/internal/database"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source-cluster> <target-cluster>",
	Short: "Merge one face cluster into another",
	Long: `Move every face of the source cluster into the target cluster and repair
the similarity graph in a single transaction.

Examples:
  # Merge cluster 17 into cluster 4
  facegraph merge 17 4

  # Show what the merge would touch without writing
  facegraph merge 17 4 --dry-run

  # JSON output for scripting
  facegraph merge 17 4 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().Bool("dry-run", false, "Preview the merge without writing")
	mergeCmd.Flags().Bool("json", false, "Output as JSON")
}

// MergeResult is the JSON output of a committed merge.
type MergeResult struct {
	Success                 bool   `json:"success"`
	SourceClusterID         string `json:"source_cluster_id"`
	TargetClusterID         string `json:"target_cluster_id"`
	MergeID                 string `json:"merge_id"`
	FacesUpdated            int64  `json:"faces_updated"`
	SimilarAsMainDeleted    int64  `json:"similar_as_main_deleted"`
	SimilarAsSimilarDeleted int64  `json:"similar_as_similar_deleted"`
	DuplicatesRemoved       int64  `json:"duplicates_removed"`
	SelfRefsRemoved         int64  `json:"self_refs_removed"`
	DurationMs              int64  `json:"duration_ms"`
}

func newMergeResult(sum *consolidation.MergeSummary, d time.Duration) MergeResult {
	return MergeResult{
		Success:                 true,
		SourceClusterID:         sum.Source,
		TargetClusterID:         sum.Target,
		MergeID:                 sum.MergeID,
		FacesUpdated:            sum.FacesUpdated,
		SimilarAsMainDeleted:    sum.RemovedAsPrincipal,
		SimilarAsSimilarDeleted: sum.RemovedAsNeighbor,
		DuplicatesRemoved:       sum.DuplicatesRemoved,
		SelfRefsRemoved:         sum.SelfRefsRemoved,
		DurationMs:              d.Milliseconds(),
	}
}

func runMerge(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withService(ctx, func(_ *config.Config, _ database.Backend, svc *consolidation.Service) error {
		if dryRun {
			res, err := svc.Preview(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(newPreviewOutput(res))
			}
			printPreview(res)
			return nil
		}

		start := time.Now()
		sum, err := svc.Merge(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		result := newMergeResult(sum, time.Since(start))
		if jsonOutput {
			return outputJSON(result)
		}

		fmt.Printf("Merged cluster %s into %s\n", sum.Source, sum.Target)
		fmt.Printf("  Merge ID:                  %s\n", sum.MergeID)
		fmt.Printf("  Faces updated:             %d\n", sum.FacesUpdated)
		fmt.Printf("  Edges removed (principal): %d\n", sum.RemovedAsPrincipal)
		fmt.Printf("  Edges removed (neighbor):  %d\n", sum.RemovedAsNeighbor)
		fmt.Printf("  Duplicates removed:        %d\n", sum.DuplicatesRemoved)
		fmt.Printf("  Self-references removed:   %d\n", sum.SelfRefsRemoved)
		fmt.Printf("  Duration:                  %s\n", formatDuration(time.Since(start)))
		return nil
	})
}
