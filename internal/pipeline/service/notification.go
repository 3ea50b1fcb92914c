package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"matchflow/internal/directory"
	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/notify"
	id "matchflow/pkg/domain"
	platformstrings "matchflow/pkg/platform/strings"
	"matchflow/pkg/requestcontext"
)

// emitNotification hands one request to the sink after a committed
// transition. Failures are logged and counted, never returned.
func (s *Service) emitNotification(ctx context.Context, m *models.Match, entry models.TimelineEntry) {
	// The transition is committed; caller cancellation must not drop the request.
	ctx = context.WithoutCancel(ctx)
	req := s.buildNotification(ctx, m, entry)

	if err := s.sink.Notify(ctx, req); err != nil {
		outcome := "failed"
		if errors.Is(err, notify.ErrBufferFull) {
			outcome = "dropped"
		}
		s.logger.WarnContext(ctx, "notification_failed",
			"match_id", m.ID,
			"new_status", entry.Status,
			"outcome", outcome,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementNotification(outcome)
		}
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementNotification("requested")
	}
}

// buildNotification fills display fields from the directory. Any lookup that
// fails leaves its fields empty.
func (s *Service) buildNotification(ctx context.Context, m *models.Match, entry models.TimelineEntry) models.NotificationRequest {
	req := models.NotificationRequest{
		MatchID:            m.ID,
		PreviousStatus:     entry.PreviousStatus,
		NewStatus:          entry.Status,
		DetailLinkID:       m.ID.String(),
		ScheduledEventDate: entry.ScheduledEventDate,
		Notes:              entry.Notes,
		Correction:         entry.Correction,
		ActorID:            entry.CreatedBy,
		OccurredAt:         entry.Timestamp,
	}
	if s.directory == nil {
		return req
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var (
		candidate *directory.Candidate
		job       *directory.Job
		company   *directory.Company
		g         errgroup.Group
	)
	g.Go(func() error {
		candidate = lookup(lookupCtx, s, "candidate", m.ID, func() (*directory.Candidate, error) {
			return s.directory.Candidate(lookupCtx, m.CandidateID)
		})
		return nil
	})
	g.Go(func() error {
		job = lookup(lookupCtx, s, "job", m.ID, func() (*directory.Job, error) {
			return s.directory.Job(lookupCtx, m.JobID)
		})
		return nil
	})
	if !m.CompanyID.IsNil() {
		g.Go(func() error {
			company = lookup(lookupCtx, s, "company", m.ID, func() (*directory.Company, error) {
				return s.directory.Company(lookupCtx, m.CompanyID)
			})
			return nil
		})
	}
	_ = g.Wait()

	var refs []string
	if candidate != nil {
		req.CandidateDisplayName = candidate.DisplayName
		refs = append(refs, candidate.AssigneeRef)
	}
	if job != nil {
		req.JobTitle = job.Title
	}
	if company != nil {
		req.CompanyDisplayName = company.Name
		refs = append(refs, company.AssigneeRef)
	}
	req.RecipientRefs = platformstrings.DedupeAndTrim(refs)
	return req
}

func lookup[T any](ctx context.Context, s *Service, what string, matchID id.MatchID, load func() (*T, error)) *T {
	v, err := load()
	if err != nil {
		s.logger.DebugContext(ctx, "notification lookup degraded",
			"match_id", matchID,
			"lookup", what,
			"error", err,
		)
		return nil
	}
	return v
}
