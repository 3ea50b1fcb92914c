package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"matchflow/internal/directory"
	"matchflow/internal/pipeline/metrics"
	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/notify"
	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
	"matchflow/pkg/platform/sentinel"
	"matchflow/pkg/requestcontext"
)

const (
	defaultMaxAttempts     = 3
	defaultBulkConcurrency = 8
	lookupTimeout          = 2 * time.Second
	tracerName             = "matchflow/internal/pipeline/service"
)

// MatchStore persists matches. CommitTransition is the only path that writes
// the lifecycle fields or the timeline.
type MatchStore interface {
	Create(ctx context.Context, m *models.Match) error
	FindByID(ctx context.Context, matchID id.MatchID) (*models.Match, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Match, error)
	CommitTransition(ctx context.Context, m *models.Match, expectedVersion int64, entry models.TimelineEntry) error
	UpdateScore(ctx context.Context, matchID id.MatchID, score int, updatedAt time.Time) error
}

// Directory resolves the read-only records a match points at.
type Directory interface {
	Candidate(ctx context.Context, candidateID id.CandidateID) (*directory.Candidate, error)
	Job(ctx context.Context, jobID id.JobID) (*directory.Job, error)
	Company(ctx context.Context, companyID id.CompanyID) (*directory.Company, error)
}

// NotificationSink receives one request per accepted transition.
type NotificationSink interface {
	Notify(ctx context.Context, req models.NotificationRequest) error
}

// Service owns the match lifecycle: creation, validated transitions, bulk
// cohort moves and the read side used by operators.
type Service struct {
	matches         MatchStore
	directory       Directory
	sink            NotificationSink
	logger          *slog.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	maxAttempts     int
	bulkConcurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithNotificationSink sets where notification requests go. Without it they
// are written to the service logger.
func WithNotificationSink(sink NotificationSink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithMaxAttempts bounds how often a transition that lost a concurrent write
// is re-read and re-validated. Non-positive values are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBulkConcurrency bounds parallel per-match work in BulkTransition.
// Non-positive values are ignored.
func WithBulkConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.bulkConcurrency = n
		}
	}
}

// New constructs a Service.
func New(matches MatchStore, dir Directory, opts ...Option) *Service {
	s := &Service{
		matches:         matches,
		directory:       dir,
		maxAttempts:     defaultMaxAttempts,
		bulkConcurrency: defaultBulkConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.sink == nil {
		s.sink = notify.NewLogSink(s.logger)
	}
	return s
}

// CreateMatch pairs a candidate with a job. The job supplies the company and
// stores; no timeline entry is written at creation.
func (s *Service) CreateMatch(ctx context.Context, req models.CreateMatchRequest) (*models.Match, error) {
	if req.Actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if req.InitialStatus != "" && !req.InitialStatus.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown initial status: "+string(req.InitialStatus))
	}

	var job *directory.Job
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := s.directory.Candidate(gctx, req.CandidateID); err != nil {
			return translateStoreError(err, "candidate")
		}
		return nil
	})
	g.Go(func() error {
		j, err := s.directory.Job(gctx, req.JobID)
		if err != nil {
			return translateStoreError(err, "job")
		}
		job = j
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m, err := models.NewMatch(id.MatchID(uuid.New()), req.CandidateID, req.JobID, job.CompanyID,
		job.StoreIDs, req.InitialStatus, req.Score, req.Notes, req.Actor, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.matches.Create(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "a match already exists for this candidate and job")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create match")
	}

	s.logger.InfoContext(ctx, "match_created",
		"match_id", m.ID,
		"candidate_id", m.CandidateID,
		"job_id", m.JobID,
		"status", m.Status,
		"actor_id", req.Actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementMatchCreated()
	}
	return m, nil
}

// GetMatch returns the match with its full timeline.
func (s *Service) GetMatch(ctx context.Context, matchID id.MatchID) (*models.Match, error) {
	m, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, translateStoreError(err, "match")
	}
	return m, nil
}

// ListMatches returns matches most recently updated first.
func (s *Service) ListMatches(ctx context.Context, filter models.ListFilter) ([]*models.Match, error) {
	if filter.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must not be negative")
	}
	matches, err := s.matches.List(ctx, filter)
	if err != nil {
		return nil, translateStoreError(err, "matches")
	}
	return matches, nil
}

// UpdateScore changes the informational ranking. The lifecycle, the timeline
// and the version are left alone.
func (s *Service) UpdateScore(ctx context.Context, matchID id.MatchID, score int) (*models.Match, error) {
	m, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, translateStoreError(err, "match")
	}
	if err := m.SetScore(score, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.matches.UpdateScore(ctx, matchID, score, m.UpdatedAt); err != nil {
		return nil, translateStoreError(err, "match")
	}
	s.logger.InfoContext(ctx, "match_score_updated",
		"match_id", matchID,
		"score", score,
		"actor_id", requestcontext.ActorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return m, nil
}

// NextStatuses lists the targets an operator may pick for the match.
func (s *Service) NextStatuses(ctx context.Context, matchID id.MatchID) ([]status.Status, error) {
	m, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, translateStoreError(err, "match")
	}
	return m.NextStatuses(), nil
}

// Stats summarizes every match the filter selects. The limit is ignored.
func (s *Service) Stats(ctx context.Context, filter models.ListFilter) (models.Stats, error) {
	filter.Limit = 0
	matches, err := s.matches.List(ctx, filter)
	if err != nil {
		return models.Stats{}, translateStoreError(err, "matches")
	}
	return models.ComputeStats(matches, requestcontext.Now(ctx)), nil
}

func translateStoreError(err error, what string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, what+" store unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "timed out loading "+what)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
	}
}
