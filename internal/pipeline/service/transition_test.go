package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"matchflow/internal/directory"
	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/notify"
	"matchflow/internal/pipeline/service/mocks"
	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
	"matchflow/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestTransition_AdmissibleIffGraphAllows() {
	for _, from := range status.All() {
		for _, to := range status.All() {
			m := s.seed(from)
			before := s.sink.Len()

			got, err := s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: to, Actor: s.actor})
			stored := s.reload(m.ID)

			if status.Admissible(from, to) {
				s.Require().NoError(err, "%s -> %s", from, to)
				s.Equal(to, got.Status)
				s.Require().Len(stored.Timeline, 1, "%s -> %s", from, to)
				last, _ := stored.Timeline.Last()
				s.Equal(stored.Status, last.Status)
				s.Equal(from, last.PreviousStatus)
				s.Equal(from == to, last.Correction)
				s.Equal(m.Version+1, stored.Version)
				s.Equal(stored.Version, got.Version)
				s.Equal(before+1, s.sink.Len())
				continue
			}

			s.Require().Error(err, "%s -> %s", from, to)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "%s -> %s", from, to)
			var invalid *models.InvalidTransitionError
			s.Require().True(errors.As(err, &invalid))
			s.Equal(from, invalid.From)
			s.Equal(to, invalid.To)
			s.Equal(from, stored.Status)
			s.Empty(stored.Timeline)
			s.Equal(m.Version, stored.Version)
			s.Equal(before, s.sink.Len())
		}
	}
}

func (s *ServiceSuite) TestTransition_Scenarios() {
	s.Run("interview to interview_passed", func() {
		m := s.seed(status.Interview)
		got, err := s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.InterviewPassed, Actor: s.actor})
		s.Require().NoError(err)
		s.Equal(status.InterviewPassed, got.Status)
		s.Len(s.reload(m.ID).Timeline, 1)
	})

	s.Run("interview_passed back to interview for a second round", func() {
		m := s.seed(status.InterviewPassed)
		round2 := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
		got, err := s.service.Transition(s.ctx, models.TransitionRequest{
			MatchID:       m.ID,
			Target:        status.Interview,
			Actor:         s.actor,
			Notes:         "second round with area manager",
			EventDateTime: &round2,
		})
		s.Require().NoError(err)
		s.Equal(status.Interview, got.Status)
		s.Require().NotNil(got.ScheduledEventDate())
		s.Equal(round2, *got.ScheduledEventDate())
		s.Equal("second round with area manager", got.Notes())
		s.Nil(got.StartDate)
	})

	s.Run("offer_accepted cannot go back to applied", func() {
		m := s.seed(status.OfferAccepted)
		_, err := s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.Applied, Actor: s.actor})
		var invalid *models.InvalidTransitionError
		s.Require().True(errors.As(err, &invalid))
		stored := s.reload(m.ID)
		s.Equal(status.OfferAccepted, stored.Status)
		s.Empty(stored.Timeline)
	})

	s.Run("offer_accepted correction moves the start date", func() {
		m := s.seed(status.Offer)
		first := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		_, err := s.service.Transition(s.ctx, models.TransitionRequest{
			MatchID: m.ID, Target: status.OfferAccepted, Actor: s.actor, EventDateTime: &first,
		})
		s.Require().NoError(err)

		moved := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
		got, err := s.service.Transition(s.ctx, models.TransitionRequest{
			MatchID: m.ID, Target: status.OfferAccepted, Actor: s.actor, EventDateTime: &moved,
		})
		s.Require().NoError(err)
		s.Equal(status.OfferAccepted, got.Status)
		s.Require().NotNil(got.StartDate)
		s.Equal(moved, *got.StartDate)

		stored := s.reload(m.ID)
		s.Require().Len(stored.Timeline, 2)
		s.True(stored.Timeline[1].Correction)
		s.Equal(moved, *stored.StartDate)
	})

	s.Run("termination recorded as an end date on offer_accepted", func() {
		m := s.seed(status.Offer)
		start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		_, err := s.service.Transition(s.ctx, models.TransitionRequest{
			MatchID: m.ID, Target: status.OfferAccepted, Actor: s.actor, EventDateTime: &start,
		})
		s.Require().NoError(err)

		end := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
		got, err := s.service.Transition(s.ctx, models.TransitionRequest{
			MatchID: m.ID, Target: status.OfferAccepted, Actor: s.actor, EndDate: &end,
		})
		s.Require().NoError(err)
		s.Require().NotNil(got.EndDate)
		s.Equal(end, *got.EndDate)
		s.Equal(start, *got.StartDate)

		early := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		_, err = s.service.Transition(s.ctx, models.TransitionRequest{
			MatchID: m.ID, Target: status.OfferAccepted, Actor: s.actor, EndDate: &early,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Len(s.reload(m.ID).Timeline, 2)
	})
}

func (s *ServiceSuite) TestTransition_RequestValidation() {
	m := s.seed(status.Applied)

	_, err := s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.DocumentScreening})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: "hired", Actor: s.actor})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Transition(s.ctx, models.TransitionRequest{MatchID: id.MatchID(uuid.New()), Target: status.Offer, Actor: s.actor})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Empty(s.reload(m.ID).Timeline)
	s.Equal(0, s.sink.Len())
}

func (s *ServiceSuite) TestTransition_NotificationRequest() {
	m, err := s.service.CreateMatch(s.ctx, models.CreateMatchRequest{
		CandidateID: s.candidate.ID, JobID: s.job.ID, Actor: s.actor, InitialStatus: status.DocumentPassed,
	})
	s.Require().NoError(err)

	when := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	_, err = s.service.Transition(s.ctx, models.TransitionRequest{
		MatchID: m.ID, Target: status.Interview, Actor: s.actor, Notes: "bring work permit", EventDateTime: &when,
	})
	s.Require().NoError(err)

	reqs := s.sink.Requests()
	s.Require().Len(reqs, 1)
	req := reqs[0]
	s.Equal(m.ID, req.MatchID)
	s.Equal([]string{"U-CA-7", "U-SALES-1"}, req.RecipientRefs)
	s.Equal("Aiko Tanaka", req.CandidateDisplayName)
	s.Equal("Bistro Hanami", req.CompanyDisplayName)
	s.Equal("Line Cook", req.JobTitle)
	s.Equal(status.DocumentPassed, req.PreviousStatus)
	s.Equal(status.Interview, req.NewStatus)
	s.Equal(m.ID.String(), req.DetailLinkID)
	s.Require().NotNil(req.ScheduledEventDate)
	s.Equal(when, *req.ScheduledEventDate)
	s.Equal("bring work permit", req.Notes)
	s.False(req.Correction)
	s.Equal(s.actor, req.ActorID)
	s.Equal(s.now, req.OccurredAt)
}

func (s *ServiceSuite) TestTransition_SharedAssigneeIsNotifiedOnce() {
	shared := directory.Candidate{ID: id.CandidateID(uuid.New()), DisplayName: "Mei", AssigneeRef: "U-SALES-1"}
	s.dir.PutCandidate(shared)
	m, err := s.service.CreateMatch(s.ctx, models.CreateMatchRequest{CandidateID: shared.ID, JobID: s.job.ID, Actor: s.actor})
	s.Require().NoError(err)

	_, err = s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.Suggested, Actor: s.actor})
	s.Require().NoError(err)
	s.Equal([]string{"U-SALES-1"}, s.sink.Requests()[0].RecipientRefs)
}

func (s *ServiceSuite) TestTransition_DegradesWhenDirectoryMisses() {
	m := s.seed(status.Applied, func(m *models.Match) {
		m.CompanyID = id.CompanyID(uuid.New())
	})

	_, err := s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.DocumentScreening, Actor: s.actor})
	s.Require().NoError(err)

	req := s.sink.Requests()[0]
	s.Empty(req.CandidateDisplayName)
	s.Empty(req.RecipientRefs)
	s.Equal("Line Cook", req.JobTitle)
	s.Equal(status.DocumentScreening, req.NewStatus)
}

func (s *ServiceSuite) TestTransition_SinkFailureKeepsCommittedState() {
	failing := notify.SinkFunc(func(context.Context, models.NotificationRequest) error {
		return errors.New("chat api unavailable")
	})
	svc := New(s.matches, s.dir, WithLogger(discardLogger()), WithMetrics(s.metrics), WithNotificationSink(failing))
	m := s.seed(status.Offer)

	got, err := svc.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.OfferAccepted, Actor: s.actor})
	s.Require().NoError(err)
	s.Equal(status.OfferAccepted, got.Status)
	s.Equal(status.OfferAccepted, s.reload(m.ID).Status)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.NotificationsTotal.WithLabelValues("failed")))
}

func (s *ServiceSuite) TestTransition_CallerCancellationDoesNotReachSink() {
	var detached bool
	sink := notify.SinkFunc(func(ctx context.Context, _ models.NotificationRequest) error {
		detached = ctx.Done() == nil
		return nil
	})
	svc := New(s.matches, s.dir, WithLogger(discardLogger()), WithNotificationSink(sink))
	m := s.seed(status.Applied)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	got, err := svc.Transition(ctx, models.TransitionRequest{MatchID: m.ID, Target: status.Rejected, Actor: s.actor})
	s.Require().NoError(err)
	s.Equal(status.Rejected, got.Status)
	s.True(detached)
}

func (s *ServiceSuite) TestTransition_NotificationCountEqualsAcceptedCount() {
	m := s.seed(status.PendingProposal)
	sequence := []status.Status{
		status.Suggested, status.Suggested, status.Applied, status.Interview,
		status.DocumentScreening, status.DocumentPassed, status.Interview, status.InterviewPassed,
		status.Interview, status.InterviewPassed, status.PendingProposal, status.Offer,
		status.OfferAccepted, status.OfferAccepted, status.Withdrawn,
	}
	accepted := 0
	for _, target := range sequence {
		if _, err := s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: target, Actor: s.actor}); err == nil {
			accepted++
		}
	}
	s.Equal(11, accepted)
	s.Equal(accepted, s.sink.Len())
	s.Len(s.reload(m.ID).Timeline, accepted)
}

func (s *ServiceSuite) TestTransition_ConcurrentCallersProduceOneEntry() {
	m := s.seed(status.Applied)

	const callers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.DocumentScreening, Actor: s.actor})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	stored := s.reload(m.ID)
	s.Equal(status.DocumentScreening, stored.Status)
	s.Len(stored.Timeline, 1)
	s.Equal(1, s.sink.Len())
}

func (s *ServiceSuite) TestTransition_Metrics() {
	m := s.seed(status.Interview)
	_, err := s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.InterviewPassed, Actor: s.actor})
	s.Require().NoError(err)
	_, err = s.service.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.OfferAccepted, Actor: s.actor})
	s.Require().Error(err)

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.TransitionsTotal.WithLabelValues("interview", "interview_passed", "forward")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.TransitionsRejected.WithLabelValues("invalid_transition")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.NotificationsTotal.WithLabelValues("requested")))
}

func (s *ServiceSuite) TestTransition_RetriesLostRace() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockMatchStore(ctrl)
	sink := mocks.NewMockNotificationSink(ctrl)
	svc := New(store, nil, WithLogger(discardLogger()), WithMetrics(s.metrics), WithNotificationSink(sink))

	m := s.seed(status.Applied)
	moved := m.Clone()
	moved.Version = m.Version + 1

	gomock.InOrder(
		store.EXPECT().FindByID(gomock.Any(), m.ID).Return(m.Clone(), nil),
		store.EXPECT().CommitTransition(gomock.Any(), gomock.Any(), m.Version, gomock.Any()).Return(sentinel.ErrConflict),
		store.EXPECT().FindByID(gomock.Any(), m.ID).Return(moved, nil),
		store.EXPECT().CommitTransition(gomock.Any(), gomock.Any(), moved.Version, gomock.Any()).Return(nil),
		sink.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil),
	)

	got, err := svc.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.Offer, Actor: s.actor})
	s.Require().NoError(err)
	s.Equal(status.Offer, got.Status)
	s.Equal(moved.Version+1, got.Version)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.TransitionConflicts))
}

func (s *ServiceSuite) TestTransition_RevalidatesAfterLostRace() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockMatchStore(ctrl)
	sink := mocks.NewMockNotificationSink(ctrl)
	svc := New(store, nil, WithLogger(discardLogger()), WithNotificationSink(sink))

	m := s.seed(status.Offer)
	winner := m.Clone()
	winner.Status = status.Withdrawn
	winner.Version = m.Version + 1

	gomock.InOrder(
		store.EXPECT().FindByID(gomock.Any(), m.ID).Return(m.Clone(), nil),
		store.EXPECT().CommitTransition(gomock.Any(), gomock.Any(), m.Version, gomock.Any()).Return(sentinel.ErrConflict),
		store.EXPECT().FindByID(gomock.Any(), m.ID).Return(winner, nil),
	)
	sink.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.OfferAccepted, Actor: s.actor})
	var invalid *models.InvalidTransitionError
	s.Require().True(errors.As(err, &invalid))
	s.Equal(status.Withdrawn, invalid.From)
}

func (s *ServiceSuite) TestTransition_GivesUpAfterMaxAttempts() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockMatchStore(ctrl)
	svc := New(store, nil, WithLogger(discardLogger()), WithMaxAttempts(2), WithNotificationSink(notify.NewMemorySink()))

	m := s.seed(status.Applied)
	store.EXPECT().FindByID(gomock.Any(), m.ID).DoAndReturn(func(context.Context, id.MatchID) (*models.Match, error) {
		return m.Clone(), nil
	}).Times(2)
	store.EXPECT().CommitTransition(gomock.Any(), gomock.Any(), m.Version, gomock.Any()).Return(sentinel.ErrConflict).Times(2)

	_, err := svc.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.Offer, Actor: s.actor})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *ServiceSuite) TestTransition_PersistenceFailureIsInternal() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockMatchStore(ctrl)
	sink := mocks.NewMockNotificationSink(ctrl)
	svc := New(store, nil, WithLogger(discardLogger()), WithNotificationSink(sink))

	m := s.seed(status.Applied)
	store.EXPECT().FindByID(gomock.Any(), m.ID).Return(m.Clone(), nil)
	store.EXPECT().CommitTransition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
	sink.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.Offer, Actor: s.actor})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestTransition_DirectoryErrorsDegrade() {
	ctrl := gomock.NewController(s.T())
	dir := mocks.NewMockDirectory(ctrl)
	sink := notify.NewMemorySink()
	svc := New(s.matches, dir, WithLogger(discardLogger()), WithNotificationSink(sink))

	m := s.seed(status.Applied)
	dir.EXPECT().Candidate(gomock.Any(), m.CandidateID).Return(nil, errors.New("directory timeout"))
	dir.EXPECT().Job(gomock.Any(), m.JobID).Return(&directory.Job{ID: m.JobID, Title: "Barista"}, nil)
	dir.EXPECT().Company(gomock.Any(), m.CompanyID).Return(nil, sentinel.ErrNotFound)

	_, err := svc.Transition(s.ctx, models.TransitionRequest{MatchID: m.ID, Target: status.Withdrawn, Actor: s.actor})
	s.Require().NoError(err)
	req := sink.Requests()[0]
	s.Equal("Barista", req.JobTitle)
	s.Empty(req.CandidateDisplayName)
	s.Empty(req.CompanyDisplayName)
	s.Empty(req.RecipientRefs)
}
