package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
	platformstrings "matchflow/pkg/platform/strings"
	"matchflow/pkg/requestcontext"
)

// BulkTransition moves a uniform cohort to one target. The whole batch is
// refused when it is empty, when the loaded matches do not share one current
// status, or when that status cannot reach the target. Past those checks each
// match is transitioned on its own and the result lists every outcome in
// input order.
func (s *Service) BulkTransition(ctx context.Context, req models.BulkTransitionRequest) (*models.BulkResult, error) {
	start := time.Now()
	ids := platformstrings.Dedupe(req.MatchIDs)
	ctx, span := s.tracer.Start(ctx, "pipeline.BulkTransition", trace.WithAttributes(
		attribute.Int("bulk.size", len(ids)),
		attribute.String("match.target", string(req.Target)),
	))
	defer span.End()

	result, err := s.bulkTransition(ctx, ids, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.logger.WarnContext(ctx, "bulk_transition_rejected",
			"size", len(ids),
			"to", req.Target,
			"actor_id", req.Actor,
			"code", dErrors.CodeOf(err),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "bulk_transition_completed",
		"size", len(ids),
		"from", result.From,
		"to", result.Target,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"actor_id", req.Actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.ObserveBulk(start, len(ids), len(result.Succeeded), len(result.Failed))
	}
	return result, nil
}

func (s *Service) bulkTransition(ctx context.Context, ids []id.MatchID, req models.BulkTransitionRequest) (*models.BulkResult, error) {
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "match_ids must not be empty")
	}
	if req.Actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if !req.Target.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+string(req.Target))
	}
	if req.EventDateTime != nil && !req.Target.CarriesEventDate() {
		return nil, dErrors.New(dErrors.CodeValidation, "event date only applies to interview and offer_accepted")
	}

	loaded := make([]*models.Match, len(ids))
	failures := make([]error, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(s.bulkConcurrency)
	for i, matchID := range ids {
		g.Go(func() error {
			m, err := s.matches.FindByID(ctx, matchID)
			if err != nil {
				failures[i] = translateStoreError(err, "match")
				return nil
			}
			loaded[i] = m
			return nil
		})
	}
	_ = g.Wait()

	var (
		cohort   []int
		statuses []status.Status
	)
	seen := make(map[status.Status]struct{})
	for i, m := range loaded {
		if m == nil {
			continue
		}
		cohort = append(cohort, i)
		if _, ok := seen[m.Status]; !ok {
			seen[m.Status] = struct{}{}
			statuses = append(statuses, m.Status)
		}
	}
	if len(cohort) == 0 {
		return nil, failures[0]
	}
	if len(statuses) > 1 {
		mixed := &models.MixedStatusError{Statuses: statuses}
		return nil, dErrors.Wrap(mixed, dErrors.CodeMixedStatuses, "bulk transition requires a uniform current status")
	}
	from := statuses[0]
	if !status.Admissible(from, req.Target) {
		return nil, dErrors.Wrap(&models.InvalidTransitionError{From: from, To: req.Target},
			dErrors.CodeInvalidTransition, "status transition not allowed")
	}

	g = new(errgroup.Group)
	g.SetLimit(s.bulkConcurrency)
	for _, i := range cohort {
		g.Go(func() error {
			_, err := s.Transition(ctx, models.TransitionRequest{
				MatchID:       ids[i],
				Target:        req.Target,
				Actor:         req.Actor,
				Notes:         req.Notes,
				EventDateTime: req.EventDateTime,
			})
			failures[i] = err
			return nil
		})
	}
	_ = g.Wait()

	result := &models.BulkResult{
		Target:    req.Target,
		From:      from,
		Succeeded: []id.MatchID{},
		Failed:    []models.BulkFailure{},
	}
	for i, matchID := range ids {
		if err := failures[i]; err != nil {
			result.Failed = append(result.Failed, models.BulkFailure{
				MatchID: matchID,
				Reason:  err.Error(),
				Code:    string(dErrors.CodeOf(err)),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, matchID)
	}
	return result, nil
}
