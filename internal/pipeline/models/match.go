package models

import (
	"time"

	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
)

// Match is the aggregate root for one candidate-job pairing.
//
// Invariants:
//   - Status is a catalog value
//   - once the timeline has entries, Status equals the last entry's status
//   - Status and Timeline change only through ApplyTransition
//   - Score is within 0..100
//   - EndDate is never earlier than StartDate
//
// Notes and ScheduledEventDate are read from the last timeline entry rather
// than stored on the match.
type Match struct {
	ID            id.MatchID     `json:"id"`
	CandidateID   id.CandidateID `json:"candidate_id"`
	JobID         id.JobID       `json:"job_id"`
	CompanyID     id.CompanyID   `json:"company_id"`
	StoreIDs      []id.StoreID   `json:"store_ids"`
	Status        status.Status  `json:"status"`
	Score         int            `json:"score"`
	StartDate     *time.Time     `json:"start_date,omitempty"`
	EndDate       *time.Time     `json:"end_date,omitempty"`
	Timeline      Timeline       `json:"timeline"`
	Version       int64          `json:"version"`
	CreationNotes string         `json:"creation_notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CreatedBy     id.UserID      `json:"created_by"`
}

// MaxScore is the upper bound of the informational ranking.
const MaxScore = 100

// NewMatch builds a match in an active initial status with an empty timeline.
func NewMatch(matchID id.MatchID, candidate id.CandidateID, job id.JobID, company id.CompanyID,
	stores []id.StoreID, initial status.Status, score int, notes string, actor id.UserID, now time.Time,
) (*Match, error) {
	if initial == "" {
		initial = status.PendingProposal
	}
	if !initial.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown initial status")
	}
	if initial.Class() != status.ClassActive {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "initial status must be an active status")
	}
	if err := validateScore(score); err != nil {
		return nil, err
	}
	if candidate.IsNil() || job.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "match requires a candidate and a job")
	}
	return &Match{
		ID:            matchID,
		CandidateID:   candidate,
		JobID:         job,
		CompanyID:     company,
		StoreIDs:      append([]id.StoreID(nil), stores...),
		Status:        initial,
		Score:         score,
		Timeline:      Timeline{},
		Version:       1,
		CreationNotes: notes,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     actor,
	}, nil
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.StoreIDs = append([]id.StoreID(nil), m.StoreIDs...)
	c.StartDate = cloneTime(m.StartDate)
	c.EndDate = cloneTime(m.EndDate)
	c.Timeline = m.Timeline.Clone()
	return &c
}

// Class returns the classification of the current status.
func (m *Match) Class() status.Class {
	return m.Status.Class()
}

// Notes returns the latest notes: the last entry's, or the creation notes
// while the timeline is empty.
func (m *Match) Notes() string {
	if last, ok := m.Timeline.Last(); ok {
		return last.Notes
	}
	return m.CreationNotes
}

// ScheduledEventDate returns the date carried by the last entry, if any.
func (m *Match) ScheduledEventDate() *time.Time {
	if last, ok := m.Timeline.Last(); ok {
		return cloneTime(last.ScheduledEventDate)
	}
	return nil
}

// NextStatuses returns the admissible targets from the current status,
// including the same-status correction for terminal matches.
func (m *Match) NextStatuses() []status.Status {
	if m.Status.IsTerminal() {
		return []status.Status{m.Status}
	}
	return status.NextStatuses(m.Status)
}

// CanTransition checks whether target is admissible from the current status.
func (m *Match) CanTransition(target status.Status) error {
	if !status.Admissible(m.Status, target) {
		return dErrors.Wrap(&InvalidTransitionError{From: m.Status, To: target},
			dErrors.CodeInvalidTransition, "status transition not allowed")
	}
	return nil
}

// Transition describes one requested status change.
type Transition struct {
	Target        status.Status
	Actor         id.UserID
	Notes         string
	EventDateTime *time.Time
	EndDate       *time.Time
}

// ApplyTransition validates t and, on success, appends one timeline entry and
// moves Status to the target in the same step. On error the match is unchanged.
//
// The entry timestamp is now, raised to the last entry's timestamp when the
// clock is behind it.
func (m *Match) ApplyTransition(t Transition, entryID id.EntryID, now time.Time) (TimelineEntry, error) {
	if err := m.CanTransition(t.Target); err != nil {
		return TimelineEntry{}, err
	}
	if t.EventDateTime != nil && !t.Target.CarriesEventDate() {
		return TimelineEntry{}, dErrors.New(dErrors.CodeValidation,
			"event date only applies to interview and offer_accepted")
	}
	if t.EndDate != nil && t.Target != status.OfferAccepted {
		return TimelineEntry{}, dErrors.New(dErrors.CodeValidation,
			"end date only applies to offer_accepted")
	}

	startDate := m.StartDate
	if t.Target == status.OfferAccepted && t.EventDateTime != nil {
		startDate = t.EventDateTime
	}
	endDate := m.EndDate
	if t.EndDate != nil {
		endDate = t.EndDate
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return TimelineEntry{}, dErrors.New(dErrors.CodeValidation, "end date must not precede start date")
	}

	ts := now
	if last, ok := m.Timeline.Last(); ok && last.Timestamp.After(ts) {
		ts = last.Timestamp
	}
	entry := TimelineEntry{
		ID:                 entryID,
		Status:             t.Target,
		PreviousStatus:     m.Status,
		Correction:         t.Target == m.Status,
		Timestamp:          ts,
		Notes:              t.Notes,
		CreatedBy:          t.Actor,
		ScheduledEventDate: cloneTime(t.EventDateTime),
	}
	if err := m.Timeline.Append(entry); err != nil {
		return TimelineEntry{}, err
	}

	m.Status = t.Target
	m.StartDate = cloneTime(startDate)
	m.EndDate = cloneTime(endDate)
	if ts.After(m.UpdatedAt) {
		m.UpdatedAt = ts
	}
	return entry, nil
}

// SetScore updates the informational ranking. It never touches the timeline.
func (m *Match) SetScore(score int, now time.Time) error {
	if err := validateScore(score); err != nil {
		return err
	}
	m.Score = score
	m.UpdatedAt = now
	return nil
}

func validateScore(score int) error {
	if score < 0 || score > MaxScore {
		return dErrors.New(dErrors.CodeValidation, "score must be between 0 and 100")
	}
	return nil
}
