// Package consolidation merges identity clusters and keeps the similarity
// graph repaired while doing so.
package consolidation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/observability"
)

// Service runs Merge and Preview over a transaction coordinator.
// It holds no state between calls.
type Service struct {
	coord  database.Coordinator
	sweep  SweepScope
	logger zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a service. An unknown sweep scope falls back to SweepGlobal.
func NewService(coord database.Coordinator, sweep SweepScope, logger zerolog.Logger) *Service {
	if sweep != SweepScoped {
		sweep = SweepGlobal
	}
	return &Service{
		coord:  coord,
		sweep:  sweep,
		logger: logger.With().Str("component", "consolidation").Logger(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Sweep returns the configured sweep scope.
func (s *Service) Sweep() SweepScope {
	return s.sweep
}

func normalizePair(source, target string) (string, string, error) {
	source, target = strings.TrimSpace(source), strings.TrimSpace(target)
	if source == "" || target == "" {
		return "", "", invalidInput("both source_cluster_id and target_cluster_id are required")
	}
	return source, target, nil
}

// Preview reports the counts a merge of source into target would touch,
// read from one consistent snapshot. It never writes.
func (s *Service) Preview(ctx context.Context, source, target string) (*PreviewResult, error) {
	source, target, err := normalizePair(source, target)
	if err != nil {
		return nil, err
	}

	var res PreviewResult
	err = s.coord.View(ctx, func(ctx context.Context, tx database.ReadTx) error {
		res = PreviewResult{Source: source, Target: target}
		var err error
		if res.SourceFaces, err = tx.CountFaces(ctx, source); err != nil {
			return err
		}
		if res.TargetFaces, err = tx.CountFaces(ctx, target); err != nil {
			return err
		}
		if res.SourceAsPrincipal, err = tx.CountEdgesFrom(ctx, source); err != nil {
			return err
		}
		res.SourceAsNeighbor, err = tx.CountEdgesTo(ctx, source)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("source", source).Str("target", target).Msg("merge preview failed")
		return nil, &Error{Kind: KindInternal, Message: "failed to preview merge", Err: err}
	}
	return &res, nil
}

// Merge moves every face of source into target and repairs the similarity
// graph, all in one transaction. Nothing is written unless every step succeeds.
func (s *Service) Merge(ctx context.Context, source, target string) (*MergeSummary, error) {
	start := time.Now()

	source, target, err := normalizePair(source, target)
	if err != nil {
		return nil, s.mergeFailed(err, source, target, start)
	}
	if source == target {
		return nil, s.mergeFailed(invalidInput("cannot merge a cluster into itself"), source, target, start)
	}

	var summary MergeSummary
	err = s.coord.RunInTx(ctx, []string{source, target}, func(ctx context.Context, tx database.Tx) error {
		summary = MergeSummary{Source: source, Target: target}
		return s.merge(ctx, tx, &summary)
	})
	if err != nil {
		return nil, s.mergeFailed(err, source, target, start)
	}

	elapsed := time.Since(start)
	observability.RecordMerge(observability.ResultSuccess, elapsed, summary.rowCounts())
	s.logger.Info().
		Str("merge_id", summary.MergeID).
		Str("source", source).
		Str("target", target).
		Int64("faces_updated", summary.FacesUpdated).
		Int64("similar_as_main_deleted", summary.RemovedAsPrincipal).
		Int64("similar_as_similar_deleted", summary.RemovedAsNeighbor).
		Int64("duplicates_removed", summary.DuplicatesRemoved).
		Int64("self_refs_removed", summary.SelfRefsRemoved).
		Dur("duration", elapsed).
		Msg("clusters merged")
	return &summary, nil
}

// merge runs inside the transaction with both cluster locks held.
func (s *Service) merge(ctx context.Context, tx database.Tx, sum *MergeSummary) error {
	n, err := tx.CountFaces(ctx, sum.Source)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("cluster to merge (%s) not found", sum.Source)
	}
	if n, err = tx.CountFaces(ctx, sum.Target); err != nil {
		return err
	}
	if n == 0 {
		return notFound("target cluster (%s) not found", sum.Target)
	}

	if sum.FacesUpdated, err = tx.ReassignCluster(ctx, sum.Source, sum.Target); err != nil {
		return err
	}
	if sum.RemovedAsPrincipal, err = tx.DeleteEdgesFrom(ctx, sum.Source); err != nil {
		return err
	}
	if sum.RemovedAsNeighbor, err = tx.DeleteEdgesTo(ctx, sum.Source); err != nil {
		return err
	}

	scope := s.sweepScope(sum.Source, sum.Target)
	if sum.DuplicatesRemoved, err = tx.DeleteDuplicateEdges(ctx, scope); err != nil {
		return err
	}
	if sum.SelfRefsRemoved, err = tx.DeleteSelfLoops(ctx, scope); err != nil {
		return err
	}

	sum.MergeID = s.newID()
	return tx.RecordMerge(ctx, database.MergeRecord{
		ID:                 sum.MergeID,
		SourceClusterID:    sum.Source,
		TargetClusterID:    sum.Target,
		FacesUpdated:       sum.FacesUpdated,
		RemovedAsPrincipal: sum.RemovedAsPrincipal,
		RemovedAsNeighbor:  sum.RemovedAsNeighbor,
		DuplicatesRemoved:  sum.DuplicatesRemoved,
		SelfRefsRemoved:    sum.SelfRefsRemoved,
		CreatedAt:          s.now().UTC(),
	})
}

func (s *Service) sweepScope(source, target string) []string {
	if s.sweep == SweepScoped {
		return []string{source, target}
	}
	return nil
}

// mergeFailed classifies err, then records and logs the failure.
func (s *Service) mergeFailed(err error, source, target string, start time.Time) error {
	merr := classifyMergeError(err)
	observability.RecordMerge(merr.Kind.String(), time.Since(start), nil)

	event := s.logger.Warn()
	if merr.Kind == KindInternal {
		event = s.logger.Error()
	}
	event.Err(err).
		Str("source", source).
		Str("target", target).
		Str("kind", merr.Kind.String()).
		Msg("merge failed")
	return merr
}

func classifyMergeError(err error) *Error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, database.ErrForeignKey):
		return &Error{Kind: KindConstraintViolation, Message: "foreign key constraint violation", Err: err}
	case errors.Is(err, database.ErrConstraint):
		return &Error{Kind: KindConstraintViolation, Message: "constraint violation during merge operation", Err: err}
	default:
		return &Error{Kind: KindInternal, Message: "failed to merge clusters", Err: err}
	}
}
