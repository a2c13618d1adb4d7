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

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent merges",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", database.DefaultMergeHistoryLimit, "Number of merges to show")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

// HistoryOutput is one merge record of the JSON output.
type HistoryOutput struct {
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

func runHistory(cmd *cobra.Command, args []string) error {
	limit := database.ClampMergeHistoryLimit(mustGetInt(cmd, "limit"))
	jsonOutput := mustGetBool(cmd, "json")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withService(ctx, func(_ *config.Config, backend database.Backend, _ *consolidation.Service) error {
		merges, err := backend.ListMerges(ctx, limit)
		if err != nil {
			return fmt.Errorf("listing merges: %w", err)
		}

		out := make([]HistoryOutput, 0, len(merges))
		for _, m := range merges {
			out = append(out, HistoryOutput{
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
		if jsonOutput {
			return outputJSON(out)
		}

		if len(out) == 0 {
			fmt.Println("No merges yet")
			return nil
		}
		for _, m := range out {
			fmt.Printf("%s  %s -> %s  faces=%d edges=%d dups=%d self=%d  (%s)\n",
				m.CreatedAt.Local().Format(time.DateTime), m.SourceClusterID, m.TargetClusterID,
				m.FacesUpdated, m.SimilarAsMainDeleted+m.SimilarAsSimilarDeleted,
				m.DuplicatesRemoved, m.SelfRefsRemoved, m.ID)
		}
		return nil
	})
}
