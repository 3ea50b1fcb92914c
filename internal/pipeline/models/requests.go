package models

import (
	"time"

	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
)

// CreateMatchRequest pairs a candidate with a job.
type CreateMatchRequest struct {
	CandidateID   id.CandidateID
	JobID         id.JobID
	Score         int
	InitialStatus status.Status
	Notes         string
	Actor         id.UserID
}

// TransitionRequest moves one match to Target.
type TransitionRequest struct {
	MatchID       id.MatchID
	Target        status.Status
	Actor         id.UserID
	Notes         string
	EventDateTime *time.Time
	EndDate       *time.Time
}

// BulkTransitionRequest moves a uniform cohort of matches to Target.
type BulkTransitionRequest struct {
	MatchIDs      []id.MatchID
	Target        status.Status
	Actor         id.UserID
	Notes         string
	EventDateTime *time.Time
}

// BulkFailure names one match the coordinator could not transition.
type BulkFailure struct {
	MatchID id.MatchID `json:"match_id"`
	Reason  string     `json:"reason"`
	Code    string     `json:"code"`
}

// BulkResult reports per-match outcomes. Partial failure is not an error.
type BulkResult struct {
	Target    status.Status `json:"target"`
	From      status.Status `json:"from"`
	Succeeded []id.MatchID  `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// ListFilter narrows match listings and statistics. Zero fields match all.
type ListFilter struct {
	Status      status.Status
	Class       status.Class
	CandidateID id.CandidateID
	JobID       id.JobID
	CompanyID   id.CompanyID
	Limit       int
}

// Matches reports whether m passes every set field of f. Limit is ignored.
func (f ListFilter) Matches(m *Match) bool {
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.Class != "" && m.Class() != f.Class {
		return false
	}
	if !f.CandidateID.IsNil() && m.CandidateID != f.CandidateID {
		return false
	}
	if !f.JobID.IsNil() && m.JobID != f.JobID {
		return false
	}
	if !f.CompanyID.IsNil() && m.CompanyID != f.CompanyID {
		return false
	}
	return true
}

// Stats summarizes a set of matches.
//
// Reached counts forward transitions into each status across all timelines;
// corrections are excluded.
type Stats struct {
	Total             int                   `json:"total"`
	ByStatus          map[status.Status]int `json:"by_status"`
	ByClass           map[status.Class]int  `json:"by_class"`
	AverageScore      int                   `json:"average_score"`
	CreatedLast30Days int                   `json:"created_last_30_days"`
	Reached           map[status.Status]int `json:"reached"`
}

// StatsWindow is the lookback for CreatedLast30Days.
const StatsWindow = 30 * 24 * time.Hour

// ComputeStats folds matches into Stats relative to now.
func ComputeStats(matches []*Match, now time.Time) Stats {
	st := Stats{
		ByStatus: make(map[status.Status]int),
		ByClass:  make(map[status.Class]int),
		Reached:  make(map[status.Status]int),
	}
	for _, s := range status.All() {
		st.ByStatus[s] = 0
		st.Reached[s] = 0
	}
	for _, c := range status.Classes() {
		st.ByClass[c] = 0
	}

	scoreSum := 0
	cutoff := now.Add(-StatsWindow)
	for _, m := range matches {
		st.Total++
		st.ByStatus[m.Status]++
		st.ByClass[m.Class()]++
		scoreSum += m.Score
		if !m.CreatedAt.Before(cutoff) {
			st.CreatedLast30Days++
		}
		for _, e := range m.Timeline {
			if !e.Correction {
				st.Reached[e.Status]++
			}
		}
	}
	if st.Total > 0 {
		st.AverageScore = (scoreSum + st.Total/2) / st.Total
	}
	return st
}
