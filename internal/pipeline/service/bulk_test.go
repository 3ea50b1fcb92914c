package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/status"
	matchstore "matchflow/internal/pipeline/store/match"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
)

// failingCommitStore refuses commits for one match and delegates the rest.
type failingCommitStore struct {
	*matchstore.InMemory
	failFor id.MatchID
}

func (f *failingCommitStore) CommitTransition(ctx context.Context, m *models.Match, expectedVersion int64, entry models.TimelineEntry) error {
	if m.ID == f.failFor {
		return errors.New("write rejected by storage")
	}
	return f.InMemory.CommitTransition(ctx, m, expectedVersion, entry)
}

func (s *ServiceSuite) TestBulkTransition_UniformCohort() {
	a := s.seed(status.Applied)
	b := s.seed(status.Applied)
	c := s.seed(status.Applied)

	result, err := s.service.BulkTransition(s.ctx, models.BulkTransitionRequest{
		MatchIDs: []id.MatchID{c.ID, a.ID, b.ID, a.ID},
		Target:   status.DocumentScreening,
		Actor:    s.actor,
		Notes:    "screening week 10",
	})
	s.Require().NoError(err)
	s.Equal(status.Applied, result.From)
	s.Equal(status.DocumentScreening, result.Target)
	s.Equal([]id.MatchID{c.ID, a.ID, b.ID}, result.Succeeded)
	s.Empty(result.Failed)

	for _, m := range []*models.Match{a, b, c} {
		stored := s.reload(m.ID)
		s.Equal(status.DocumentScreening, stored.Status)
		s.Require().Len(stored.Timeline, 1)
		s.Equal("screening week 10", stored.Timeline[0].Notes)
	}
	s.Equal(3, s.sink.Len())
	s.Equal(float64(3), testutil.ToFloat64(s.metrics.BulkOutcomes.WithLabelValues("succeeded")))
}

func (s *ServiceSuite) TestBulkTransition_MixedStatusesRefuseWholeBatch() {
	a := s.seed(status.Applied)
	b := s.seed(status.Applied)
	c := s.seed(status.Offer)

	result, err := s.service.BulkTransition(s.ctx, models.BulkTransitionRequest{
		MatchIDs: []id.MatchID{a.ID, b.ID, c.ID},
		Target:   status.Offer,
		Actor:    s.actor,
	})
	s.Nil(result)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeMixedStatuses))
	var mixed *models.MixedStatusError
	s.Require().True(errors.As(err, &mixed))
	s.Equal([]status.Status{status.Applied, status.Offer}, mixed.Statuses)

	for _, m := range []*models.Match{a, b, c} {
		stored := s.reload(m.ID)
		s.Equal(m.Status, stored.Status)
		s.Empty(stored.Timeline)
		s.Equal(m.Version, stored.Version)
	}
	s.Equal(0, s.sink.Len())
}

func (s *ServiceSuite) TestBulkTransition_UpFrontRefusals() {
	s.Run("empty batch", func() {
		_, err := s.service.BulkTransition(s.ctx, models.BulkTransitionRequest{Target: status.Offer, Actor: s.actor})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("target unreachable from the shared status", func() {
		a := s.seed(status.Interview)
		b := s.seed(status.Interview)
		_, err := s.service.BulkTransition(s.ctx, models.BulkTransitionRequest{
			MatchIDs: []id.MatchID{a.ID, b.ID},
			Target:   status.Applied,
			Actor:    s.actor,
		})
		var invalid *models.InvalidTransitionError
		s.Require().True(errors.As(err, &invalid))
		s.Equal(status.Interview, invalid.From)
		s.Empty(s.reload(a.ID).Timeline)
		s.Empty(s.reload(b.ID).Timeline)
	})

	s.Run("event date on a target without one", func() {
		a := s.seed(status.Applied)
		b := s.seed(status.Applied)
		when := s.now.Add(48 * time.Hour)
		result, err := s.service.BulkTransition(s.ctx, models.BulkTransitionRequest{
			MatchIDs:      []id.MatchID{a.ID, b.ID},
			Target:        status.Offer,
			Actor:         s.actor,
			EventDateTime: &when,
		})
		s.Nil(result)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(status.Applied, s.reload(a.ID).Status)
		s.Equal(status.Applied, s.reload(b.ID).Status)
	})

	s.Run("nothing could be loaded", func() {
		_, err := s.service.BulkTransition(s.ctx, models.BulkTransitionRequest{
			MatchIDs: []id.MatchID{id.MatchID(uuid.New()), id.MatchID(uuid.New())},
			Target:   status.Offer,
			Actor:    s.actor,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Equal(0, s.sink.Len())
}

func (s *ServiceSuite) TestBulkTransition_UnknownIDsAreReportedFailed() {
	a := s.seed(status.Offer)
	missing := id.MatchID(uuid.New())

	result, err := s.service.BulkTransition(s.ctx, models.BulkTransitionRequest{
		MatchIDs: []id.MatchID{missing, a.ID},
		Target:   status.Rejected,
		Actor:    s.actor,
	})
	s.Require().NoError(err)
	s.Equal([]id.MatchID{a.ID}, result.Succeeded)
	s.Require().Len(result.Failed, 1)
	s.Equal(missing, result.Failed[0].MatchID)
	s.Equal(string(dErrors.CodeNotFound), result.Failed[0].Code)
}

func (s *ServiceSuite) TestBulkTransition_PersistenceFailureIsIsolated() {
	a := s.seed(status.Interview)
	b := s.seed(status.Interview)
	store := &failingCommitStore{InMemory: s.matches, failFor: a.ID}
	svc := New(store, s.dir, WithLogger(discardLogger()), WithNotificationSink(s.sink), WithBulkConcurrency(1))

	result, err := svc.BulkTransition(s.ctx, models.BulkTransitionRequest{
		MatchIDs: []id.MatchID{a.ID, b.ID},
		Target:   status.InterviewPassed,
		Actor:    s.actor,
	})
	s.Require().NoError(err)
	s.Equal([]id.MatchID{b.ID}, result.Succeeded)
	s.Require().Len(result.Failed, 1)
	s.Equal(a.ID, result.Failed[0].MatchID)
	s.Equal(string(dErrors.CodeInternal), result.Failed[0].Code)
	s.Contains(result.Failed[0].Reason, "write rejected by storage")

	s.Equal(status.Interview, s.reload(a.ID).Status)
	s.Empty(s.reload(a.ID).Timeline)
	s.Equal(status.InterviewPassed, s.reload(b.ID).Status)
	s.Equal(1, s.sink.Len())
}

func (s *ServiceSuite) TestBulkTransition_TerminalCorrectionCohort() {
	a := s.seed(status.Rejected)
	b := s.seed(status.Rejected)

	result, err := s.service.BulkTransition(s.ctx, models.BulkTransitionRequest{
		MatchIDs: []id.MatchID{a.ID, b.ID},
		Target:   status.Rejected,
		Actor:    s.actor,
		Notes:    "position closed",
	})
	s.Require().NoError(err)
	s.Len(result.Succeeded, 2)
	for _, req := range s.sink.Requests() {
		s.True(req.Correction)
	}
}
