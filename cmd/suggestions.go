package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
	"github.com/kozaktomas/facegraph/internal/database"
)

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "List clusters the similarity graph links together",
	Long: `List, for each cluster, the other live clusters it has a similarity edge to.
These are the merge candidates. Self-references and edges to clusters without
faces are not listed.`,
	Args: cobra.NoArgs,
	RunE: runSuggestions,
}

func init() {
	rootCmd.AddCommand(suggestionsCmd)

	suggestionsCmd.Flags().Bool("json", false, "Output as JSON")
}

// SuggestionOutput is one cluster and its merge candidates.
type SuggestionOutput struct {
	ClusterID string          `json:"cluster_id"`
	Similar   []ClusterOutput `json:"similar"`
}

func runSuggestions(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withService(ctx, func(_ *config.Config, backend database.Backend, _ *consolidation.Service) error {
		suggestions, err := backend.ListSuggestions(ctx)
		if err != nil {
			return fmt.Errorf("listing suggestions: %w", err)
		}

		out := make([]SuggestionOutput, 0, len(suggestions))
		for _, s := range suggestions {
			item := SuggestionOutput{ClusterID: s.ClusterID, Similar: make([]ClusterOutput, 0, len(s.Similar))}
			for _, c := range s.Similar {
				item.Similar = append(item.Similar, ClusterOutput{ClusterID: c.ClusterID, FaceCount: c.FaceCount, HasThumbnail: len(c.Thumbnail) > 0})
			}
			out = append(out, item)
		}
		if jsonOutput {
			return outputJSON(out)
		}

		if len(out) == 0 {
			fmt.Println("No suggestions")
			return nil
		}
		for _, s := range out {
			ids := make([]string, 0, len(s.Similar))
			for _, c := range s.Similar {
				ids = append(ids, fmt.Sprintf("%s (%d faces)", c.ClusterID, c.FaceCount))
			}
			fmt.Printf("%s: %s\n", s.ClusterID, strings.Join(ids, ", "))
		}
		return nil
	})
}
