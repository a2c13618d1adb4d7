package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
	"github.com/kozaktomas/facegraph/internal/database"
)

var mergeBatchCmd = &cobra.Command{
	Use:   "merge-batch <plan.yaml>",
	Short: "Apply a list of cluster merges from a YAML plan",
	Long: `Apply every merge listed in a YAML plan. Each merge is its own transaction;
a failed merge does not undo the others.

Plan format:
  merges:
    - source: "17"
      target: "4"
    - source: "23"
      target: "4"

Merges run in parallel only when no cluster appears in more than one entry.
Plans that chain clusters (A into B, then B into C) run in file order.

Examples:
  facegraph merge-batch plan.yaml
  facegraph merge-batch plan.yaml --concurrency 8
  facegraph merge-batch plan.yaml --dry-run --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMergeBatch,
}

func init() {
	rootCmd.AddCommand(mergeBatchCmd)

	mergeBatchCmd.Flags().Int("concurrency", 4, "Number of merges to run in parallel")
	mergeBatchCmd.Flags().Bool("dry-run", false, "Preview every merge without writing")
	mergeBatchCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// MergePlan is a YAML list of merges.
type MergePlan struct {
	Merges []PlannedMerge `yaml:"merges"`
}

// PlannedMerge is one entry of a merge plan.
type PlannedMerge struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// BatchItemResult is the outcome of one planned merge.
type BatchItemResult struct {
	Source  string         `json:"source_cluster_id"`
	Target  string         `json:"target_cluster_id"`
	Merge   *MergeResult   `json:"merge,omitempty"`
	Preview *PreviewOutput `json:"preview,omitempty"`
	Kind    string         `json:"error_kind,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// BatchResult is the output of merge-batch.
type BatchResult struct {
	Success    bool              `json:"success"`
	DryRun     bool              `json:"dry_run"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	DurationMs int64             `json:"duration_ms"`
	Results    []BatchItemResult `json:"results"`
}

// parseMergePlan decodes and validates a plan. Unknown keys are rejected.
func parseMergePlan(data []byte) (*MergePlan, error) {
	var plan MergePlan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("parsing merge plan: %w", err)
	}
	if len(plan.Merges) == 0 {
		return nil, errors.New("merge plan has no merges")
	}
	for i, m := range plan.Merges {
		if strings.TrimSpace(m.Source) == "" || strings.TrimSpace(m.Target) == "" {
			return nil, fmt.Errorf("merge %d: source and target are required", i+1)
		}
	}
	return &plan, nil
}

// independent reports whether no cluster appears in more than one planned merge.
func (p *MergePlan) independent() bool {
	seen := make(map[string]struct{}, 2*len(p.Merges))
	for _, m := range p.Merges {
		for _, id := range []string{strings.TrimSpace(m.Source), strings.TrimSpace(m.Target)} {
			if _, ok := seen[id]; ok {
				return false
			}
			seen[id] = struct{}{}
		}
	}
	return true
}

// Consolidator runs merges and previews.
type Consolidator interface {
	Merge(ctx context.Context, source, target string) (*consolidation.MergeSummary, error)
	Preview(ctx context.Context, source, target string) (*consolidation.PreviewResult, error)
}

// applyPlan runs every planned merge and records each outcome in plan order.
// onDone is called after each merge.
func applyPlan(ctx context.Context, svc Consolidator, plan *MergePlan, concurrency int, dryRun bool, onDone func()) []BatchItemResult {
	if concurrency < 1 || !plan.independent() {
		concurrency = 1
	}

	results := make([]BatchItemResult, len(plan.Merges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, m := range plan.Merges {
		g.Go(func() error {
			item := BatchItemResult{Source: m.Source, Target: m.Target}
			start := time.Now()
			if dryRun {
				res, err := svc.Preview(gctx, m.Source, m.Target)
				if err == nil {
					out := newPreviewOutput(res)
					item.Preview = &out
				}
				item.setError(err)
			} else {
				sum, err := svc.Merge(gctx, m.Source, m.Target)
				if err == nil {
					out := newMergeResult(sum, time.Since(start))
					item.Merge = &out
				}
				item.setError(err)
			}

			results[i] = item
			if onDone != nil {
				onDone()
			}
			// Failures are reported per item, not by cancelling the batch.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *BatchItemResult) setError(err error) {
	if err == nil {
		return
	}
	r.Kind = consolidation.KindOf(err).String()
	r.Error = err.Error()
}

func runMergeBatch(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading merge plan: %w", err)
	}
	plan, err := parseMergePlan(data)
	if err != nil {
		return err
	}

	return withService(ctx, func(_ *config.Config, _ database.Backend, svc *consolidation.Service) error {
		var bar *progressbar.ProgressBar
		if !jsonOutput {
			desc := "Merging clusters"
			if dryRun {
				desc = "Previewing merges"
			}
			bar = progressbar.NewOptions(len(plan.Merges),
				progressbar.OptionSetDescription(desc),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("merges"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		if !plan.independent() {
			logger.Info().Msg("plan chains clusters, merging sequentially")
		}

		startTime := time.Now()
		items := applyPlan(ctx, svc, plan, concurrency, dryRun, func() {
			if bar != nil {
				_ = bar.Add(1)
			}
		})
		if bar != nil {
			fmt.Println()
		}

		result := BatchResult{
			DryRun:     dryRun,
			Total:      len(items),
			DurationMs: time.Since(startTime).Milliseconds(),
			Results:    items,
		}
		for _, item := range items {
			if item.Error != "" {
				result.Failed++
			} else {
				result.Succeeded++
			}
		}
		result.Success = result.Failed == 0

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else {
			printBatchResult(result, time.Since(startTime))
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d merges failed", result.Failed, result.Total)
		}
		return nil
	})
}

func printBatchResult(result BatchResult, d time.Duration) {
	for _, item := range result.Results {
		if item.Error != "" {
			fmt.Printf("  FAILED %s -> %s: %s\n", item.Source, item.Target, item.Error)
		}
	}
	fmt.Println("\nBatch complete!")
	fmt.Printf("  Merges:    %d\n", result.Total)
	fmt.Printf("  Succeeded: %d\n", result.Succeeded)
	if result.Failed > 0 {
		fmt.Printf("  Failed:    %d\n", result.Failed)
	}
	fmt.Printf("  Duration:  %s\n", formatDuration(d))
}
