package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/status"
	"matchflow/internal/platform/middleware"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
	"matchflow/pkg/platform/httputil"
	"matchflow/pkg/requestcontext"
)

// Service defines the pipeline operations exposed over HTTP.
type Service interface {
	CreateMatch(ctx context.Context, req models.CreateMatchRequest) (*models.Match, error)
	GetMatch(ctx context.Context, matchID id.MatchID) (*models.Match, error)
	ListMatches(ctx context.Context, filter models.ListFilter) ([]*models.Match, error)
	UpdateScore(ctx context.Context, matchID id.MatchID, score int) (*models.Match, error)
	NextStatuses(ctx context.Context, matchID id.MatchID) ([]status.Status, error)
	Stats(ctx context.Context, filter models.ListFilter) (models.Stats, error)
	Transition(ctx context.Context, req models.TransitionRequest) (*models.Match, error)
	BulkTransition(ctx context.Context, req models.BulkTransitionRequest) (*models.BulkResult, error)
}

// Handler wires pipeline endpoints to the pipeline service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a pipeline handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts pipeline endpoints on the router. Writes require an actor.
func (h *Handler) Register(r chi.Router) {
	r.Get("/statuses", h.HandleListStatuses)
	r.Route("/matches", func(r chi.Router) {
		r.Get("/", h.HandleListMatches)
		r.Get("/stats", h.HandleStats)
		r.Get("/{id}", h.HandleGetMatch)
		r.Get("/{id}/next-statuses", h.HandleNextStatuses)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor(h.logger))
			r.Post("/", h.HandleCreateMatch)
			r.Post("/bulk-transitions", h.HandleBulkTransition)
			r.Patch("/{id}/score", h.HandleUpdateScore)
			r.Post("/{id}/transitions", h.HandleTransition)
		})
	})
}

// HandleListStatuses handles GET /statuses.
func (h *Handler) HandleListStatuses(w http.ResponseWriter, r *http.Request) {
	resp := StatusCatalogResponse{Statuses: make([]StatusResponse, 0, len(status.All()))}
	for _, s := range status.All() {
		resp.Statuses = append(resp.Statuses, toStatusResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleCreateMatch handles POST /matches.
func (h *Handler) HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateMatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.CreateMatch(ctx, req.ToModel(requestcontext.ActorID(ctx)))
	if err != nil {
		h.writeServiceError(ctx, w, err, "create match failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toMatchResponse(m))
}

// HandleListMatches handles GET /matches.
func (h *Handler) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	matches, err := h.service.ListMatches(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, err, "list matches failed")
		return
	}
	resp := ListMatchesResponse{Matches: make([]MatchResponse, 0, len(matches)), Count: len(matches)}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, toMatchResponse(m))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleStats handles GET /matches/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stats, err := h.service.Stats(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, err, "match stats failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleGetMatch handles GET /matches/{id}.
func (h *Handler) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matchID, ok := h.matchIDParam(w, r)
	if !ok {
		return
	}

	m, err := h.service.GetMatch(ctx, matchID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "get match failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMatchResponse(m))
}

// HandleNextStatuses handles GET /matches/{id}/next-statuses.
func (h *Handler) HandleNextStatuses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matchID, ok := h.matchIDParam(w, r)
	if !ok {
		return
	}

	next, err := h.service.NextStatuses(ctx, matchID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "next statuses failed")
		return
	}
	resp := NextStatusesResponse{MatchID: matchID.String(), NextStatuses: make([]StatusResponse, 0, len(next))}
	for _, s := range next {
		resp.NextStatuses = append(resp.NextStatuses, toStatusResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleUpdateScore handles PATCH /matches/{id}/score.
func (h *Handler) HandleUpdateScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	matchID, ok := h.matchIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateScoreRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.UpdateScore(ctx, matchID, *req.Score)
	if err != nil {
		h.writeServiceError(ctx, w, err, "update score failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMatchResponse(m))
}

// HandleTransition handles POST /matches/{id}/transitions.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	matchID, ok := h.matchIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.Transition(ctx, req.ToModel(matchID, requestcontext.ActorID(ctx)))
	if err != nil {
		h.writeServiceError(ctx, w, err, "transition failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMatchResponse(m))
}

// HandleBulkTransition handles POST /matches/bulk-transitions. Partial failure
// is a 200 with the failed ids listed.
func (h *Handler) HandleBulkTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[BulkTransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.BulkTransition(ctx, req.ToModel(requestcontext.ActorID(ctx)))
	if err != nil {
		h.writeServiceError(ctx, w, err, "bulk transition failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) matchIDParam(w http.ResponseWriter, r *http.Request) (id.MatchID, bool) {
	matchID, err := id.ParseMatchID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.MatchID{}, false
	}
	return matchID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", requestcontext.ActorID(ctx),
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}
