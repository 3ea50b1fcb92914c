package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
)

const (
	maxNotesLength = 2000
	maxBulkSize    = 200
	maxListLimit   = 500
	dateOnlyLayout = "2006-01-02"
)

// CreateMatchRequest is the HTTP request body for POST /matches.
type CreateMatchRequest struct {
	CandidateID   string `json:"candidate_id"`
	JobID         string `json:"job_id"`
	Score         *int   `json:"score,omitempty"`
	InitialStatus string `json:"initial_status,omitempty"`
	Notes         string `json:"notes,omitempty"`

	// Parsed values (populated by Validate)
	parsedCandidateID id.CandidateID
	parsedJobID       id.JobID
	parsedStatus      status.Status
}

// Validate validates and parses the request.
func (r *CreateMatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 2000 characters")
	}

	candidateID, err := id.ParseCandidateID(strings.TrimSpace(r.CandidateID))
	if err != nil {
		return err
	}
	r.parsedCandidateID = candidateID

	jobID, err := id.ParseJobID(strings.TrimSpace(r.JobID))
	if err != nil {
		return err
	}
	r.parsedJobID = jobID

	if strings.TrimSpace(r.InitialStatus) != "" {
		st, err := status.Parse(r.InitialStatus)
		if err != nil {
			return err
		}
		r.parsedStatus = st
	}
	if r.Score != nil && (*r.Score < 0 || *r.Score > models.MaxScore) {
		return dErrors.New(dErrors.CodeValidation, "score must be between 0 and 100")
	}
	return nil
}

// ToModel builds the service request for actor.
func (r *CreateMatchRequest) ToModel(actor id.UserID) models.CreateMatchRequest {
	score := 0
	if r.Score != nil {
		score = *r.Score
	}
	return models.CreateMatchRequest{
		CandidateID:   r.parsedCandidateID,
		JobID:         r.parsedJobID,
		Score:         score,
		InitialStatus: r.parsedStatus,
		Notes:         strings.TrimSpace(r.Notes),
		Actor:         actor,
	}
}

// TransitionRequest is the HTTP request body for POST /matches/{id}/transitions.
// Dates accept RFC 3339 or a bare YYYY-MM-DD.
type TransitionRequest struct {
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	EventDateTime string `json:"event_date_time,omitempty"`
	EndDate       string `json:"end_date,omitempty"`

	parsedStatus  status.Status
	parsedEventAt *time.Time
	parsedEndDate *time.Time
}

func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 2000 characters")
	}
	if strings.TrimSpace(r.Status) == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	st, err := status.Parse(r.Status)
	if err != nil {
		return err
	}
	r.parsedStatus = st

	if r.parsedEventAt, err = parseOptionalDate("event_date_time", r.EventDateTime); err != nil {
		return err
	}
	if r.parsedEndDate, err = parseOptionalDate("end_date", r.EndDate); err != nil {
		return err
	}
	return nil
}

func (r *TransitionRequest) ToModel(matchID id.MatchID, actor id.UserID) models.TransitionRequest {
	return models.TransitionRequest{
		MatchID:       matchID,
		Target:        r.parsedStatus,
		Actor:         actor,
		Notes:         strings.TrimSpace(r.Notes),
		EventDateTime: r.parsedEventAt,
		EndDate:       r.parsedEndDate,
	}
}

// BulkTransitionRequest is the HTTP request body for POST /matches/bulk-transitions.
type BulkTransitionRequest struct {
	MatchIDs      []string `json:"match_ids"`
	Status        string   `json:"status"`
	Notes         string   `json:"notes,omitempty"`
	EventDateTime string   `json:"event_date_time,omitempty"`

	parsedIDs     []id.MatchID
	parsedStatus  status.Status
	parsedEventAt *time.Time
}

func (r *BulkTransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.MatchIDs) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "match_ids must not be empty")
	}
	if len(r.MatchIDs) > maxBulkSize {
		return dErrors.New(dErrors.CodeValidation, "at most 200 matches per bulk transition")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 2000 characters")
	}
	if strings.TrimSpace(r.Status) == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	st, err := status.Parse(r.Status)
	if err != nil {
		return err
	}
	r.parsedStatus = st

	r.parsedIDs = make([]id.MatchID, 0, len(r.MatchIDs))
	for _, raw := range r.MatchIDs {
		matchID, err := id.ParseMatchID(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		r.parsedIDs = append(r.parsedIDs, matchID)
	}

	if r.parsedEventAt, err = parseOptionalDate("event_date_time", r.EventDateTime); err != nil {
		return err
	}
	return nil
}

func (r *BulkTransitionRequest) ToModel(actor id.UserID) models.BulkTransitionRequest {
	return models.BulkTransitionRequest{
		MatchIDs:      r.parsedIDs,
		Target:        r.parsedStatus,
		Actor:         actor,
		Notes:         strings.TrimSpace(r.Notes),
		EventDateTime: r.parsedEventAt,
	}
}

// UpdateScoreRequest is the HTTP request body for PATCH /matches/{id}/score.
type UpdateScoreRequest struct {
	Score *int `json:"score"`
}

func (r *UpdateScoreRequest) Validate() error {
	if r == nil || r.Score == nil {
		return dErrors.New(dErrors.CodeValidation, "score is required")
	}
	if *r.Score < 0 || *r.Score > models.MaxScore {
		return dErrors.New(dErrors.CodeValidation, "score must be between 0 and 100")
	}
	return nil
}

// parseListFilter reads the list and stats query parameters.
func parseListFilter(q url.Values) (models.ListFilter, error) {
	var (
		f   models.ListFilter
		err error
	)
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		if f.Status, err = status.Parse(raw); err != nil {
			return f, err
		}
	}
	if raw := strings.TrimSpace(q.Get("class")); raw != "" {
		if f.Class, err = status.ParseClass(raw); err != nil {
			return f, err
		}
	}
	if raw := strings.TrimSpace(q.Get("candidate_id")); raw != "" {
		if f.CandidateID, err = id.ParseCandidateID(raw); err != nil {
			return f, err
		}
	}
	if raw := strings.TrimSpace(q.Get("job_id")); raw != "" {
		if f.JobID, err = id.ParseJobID(raw); err != nil {
			return f, err
		}
	}
	if raw := strings.TrimSpace(q.Get("company_id")); raw != "" {
		if f.CompanyID, err = id.ParseCompanyID(raw); err != nil {
			return f, err
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 0 || limit > maxListLimit {
			return f, dErrors.New(dErrors.CodeValidation, "limit must be an integer between 0 and 500")
		}
		f.Limit = limit
	}
	return f, nil
}

func parseOptionalDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(dateOnlyLayout, raw); err == nil {
		return &t, nil
	}
	return nil, dErrors.New(dErrors.CodeValidation, field+" must be RFC 3339 or YYYY-MM-DD")
}
