package handler

import (
	"time"

	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/status"
)

// MatchResponse is the HTTP representation of a match with its timeline.
type MatchResponse struct {
	ID                 string                 `json:"id"`
	CandidateID        string                 `json:"candidate_id"`
	JobID              string                 `json:"job_id"`
	CompanyID          string                 `json:"company_id,omitempty"`
	StoreIDs           []string               `json:"store_ids"`
	Status             string                 `json:"status"`
	StatusLabel        string                 `json:"status_label"`
	Class              string                 `json:"class"`
	Score              int                    `json:"score"`
	StartDate          *time.Time             `json:"start_date,omitempty"`
	EndDate            *time.Time             `json:"end_date,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	ScheduledEventDate *time.Time             `json:"scheduled_event_date,omitempty"`
	NextStatuses       []string               `json:"next_statuses"`
	Version            int64                  `json:"version"`
	Timeline           []models.TimelineEntry `json:"timeline"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	CreatedBy          string                 `json:"created_by"`
}

// ListMatchesResponse is the HTTP response for GET /matches.
type ListMatchesResponse struct {
	Matches []MatchResponse `json:"matches"`
	Count   int             `json:"count"`
}

// NextStatusesResponse is the HTTP response for GET /matches/{id}/next-statuses.
type NextStatusesResponse struct {
	MatchID      string           `json:"match_id"`
	NextStatuses []StatusResponse `json:"next_statuses"`
}

// StatusResponse describes one catalog entry.
type StatusResponse struct {
	Value      string   `json:"value"`
	Label      string   `json:"label"`
	Emoji      string   `json:"emoji"`
	Class      string   `json:"class"`
	Terminal   bool     `json:"terminal"`
	Notifiable bool     `json:"notifiable"`
	Next       []string `json:"next"`
}

// StatusCatalogResponse is the HTTP response for GET /statuses.
type StatusCatalogResponse struct {
	Statuses []StatusResponse `json:"statuses"`
}

func toMatchResponse(m *models.Match) MatchResponse {
	resp := MatchResponse{
		ID:                 m.ID.String(),
		CandidateID:        m.CandidateID.String(),
		JobID:              m.JobID.String(),
		StoreIDs:           make([]string, 0, len(m.StoreIDs)),
		Status:             string(m.Status),
		StatusLabel:        m.Status.Label(),
		Class:              string(m.Class()),
		Score:              m.Score,
		StartDate:          m.StartDate,
		EndDate:            m.EndDate,
		Notes:              m.Notes(),
		ScheduledEventDate: m.ScheduledEventDate(),
		NextStatuses:       statusStrings(m.NextStatuses()),
		Version:            m.Version,
		Timeline:           m.Timeline,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		CreatedBy:          m.CreatedBy.String(),
	}
	if !m.CompanyID.IsNil() {
		resp.CompanyID = m.CompanyID.String()
	}
	for _, storeID := range m.StoreIDs {
		resp.StoreIDs = append(resp.StoreIDs, storeID.String())
	}
	if resp.Timeline == nil {
		resp.Timeline = []models.TimelineEntry{}
	}
	return resp
}

func toStatusResponse(s status.Status) StatusResponse {
	return StatusResponse{
		Value:      string(s),
		Label:      s.Label(),
		Emoji:      s.Emoji(),
		Class:      string(s.Class()),
		Terminal:   s.IsTerminal(),
		Notifiable: s.Notifiable(),
		Next:       statusStrings(status.NextStatuses(s)),
	}
}

func statusStrings(in []status.Status) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}
