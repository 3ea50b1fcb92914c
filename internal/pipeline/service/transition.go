package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"matchflow/internal/pipeline/models"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
	"matchflow/pkg/platform/sentinel"
	"matchflow/pkg/requestcontext"
)

// Transition moves one match to req.Target. The read, validation, ledger
// append and status update commit together or not at all; a lost race is
// re-read and re-validated against the fresh status. Exactly one notification
// request follows each accepted transition and none follow a rejected one.
func (s *Service) Transition(ctx context.Context, req models.TransitionRequest) (*models.Match, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "pipeline.Transition", trace.WithAttributes(
		attribute.String("match.id", req.MatchID.String()),
		attribute.String("match.target", string(req.Target)),
	))
	defer span.End()

	m, entry, err := s.commitTransition(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.transitionRejected(ctx, req, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("match.from", string(entry.PreviousStatus)),
		attribute.Bool("match.correction", entry.Correction),
	)

	s.logger.InfoContext(ctx, "match_transitioned",
		"match_id", m.ID,
		"from", entry.PreviousStatus,
		"to", entry.Status,
		"correction", entry.Correction,
		"actor_id", entry.CreatedBy,
		"version", m.Version,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(entry.PreviousStatus), string(entry.Status), entry.Correction)
		s.metrics.ObserveTransition(start)
	}

	s.emitNotification(ctx, m, entry)
	return m, nil
}

func (s *Service) commitTransition(ctx context.Context, req models.TransitionRequest) (*models.Match, models.TimelineEntry, error) {
	if req.Actor.IsNil() {
		return nil, models.TimelineEntry{}, dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if !req.Target.IsValid() {
		return nil, models.TimelineEntry{}, dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+string(req.Target))
	}
	t := models.Transition{
		Target:        req.Target,
		Actor:         req.Actor,
		Notes:         req.Notes,
		EventDateTime: req.EventDateTime,
		EndDate:       req.EndDate,
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, models.TimelineEntry{}, dErrors.Wrap(err, dErrors.CodeTimeout, "transition cancelled")
		}
		current, err := s.matches.FindByID(ctx, req.MatchID)
		if err != nil {
			return nil, models.TimelineEntry{}, translateStoreError(err, "match")
		}

		next := current.Clone()
		entry, err := next.ApplyTransition(t, id.EntryID(uuid.New()), requestcontext.Now(ctx))
		if err != nil {
			return nil, models.TimelineEntry{}, err
		}

		err = s.matches.CommitTransition(ctx, next, current.Version, entry)
		switch {
		case err == nil:
			next.Version = current.Version + 1
			return next, entry, nil
		case errors.Is(err, sentinel.ErrConflict):
			if s.metrics != nil {
				s.metrics.IncrementConflict()
			}
			if attempt >= s.maxAttempts {
				return nil, models.TimelineEntry{}, dErrors.Wrap(err, dErrors.CodeConflict,
					"match was modified concurrently, retry the transition")
			}
			s.logger.DebugContext(ctx, "transition lost concurrent write, retrying",
				"match_id", req.MatchID,
				"attempt", attempt,
				"expected_version", current.Version,
			)
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, models.TimelineEntry{}, dErrors.New(dErrors.CodeNotFound, "match not found")
		default:
			return nil, models.TimelineEntry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transition")
		}
	}
}

func (s *Service) transitionRejected(ctx context.Context, req models.TransitionRequest, err error) {
	code := dErrors.CodeOf(err)
	s.logger.WarnContext(ctx, "match_transition_rejected",
		"match_id", req.MatchID,
		"to", req.Target,
		"actor_id", req.Actor,
		"code", code,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementRejected(string(code))
	}
}
