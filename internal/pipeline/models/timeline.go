package models

import (
	"time"

	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
)

// TimelineEntry is one immutable audit record of an accepted transition.
type TimelineEntry struct {
	ID                 id.EntryID    `json:"id"`
	Status             status.Status `json:"status"`
	PreviousStatus     status.Status `json:"previous_status"`
	Correction         bool          `json:"correction"`
	Timestamp          time.Time     `json:"timestamp"`
	Notes              string        `json:"notes,omitempty"`
	CreatedBy          id.UserID     `json:"created_by"`
	ScheduledEventDate *time.Time    `json:"scheduled_event_date,omitempty"`
}

// Timeline is the append-only ledger of a match. Insertion order is
// chronological order.
//
// Invariants:
//   - entries are never reordered, edited, or removed
//   - timestamps are non-decreasing
type Timeline []TimelineEntry

// Append adds entry at the end. A timestamp earlier than the last entry's is
// an invariant violation and leaves the timeline unchanged.
func (t *Timeline) Append(entry TimelineEntry) error {
	if !entry.Status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "timeline entry has unknown status")
	}
	if entry.Timestamp.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "timeline entry requires a timestamp")
	}
	if last, ok := t.Last(); ok && entry.Timestamp.Before(last.Timestamp) {
		return dErrors.New(dErrors.CodeInvariantViolation, "timeline timestamps must be non-decreasing")
	}
	*t = append(*t, entry)
	return nil
}

// Last returns the most recent entry.
func (t Timeline) Last() (TimelineEntry, bool) {
	if len(t) == 0 {
		return TimelineEntry{}, false
	}
	return t[len(t)-1], true
}

// Clone returns a deep copy.
func (t Timeline) Clone() Timeline {
	if t == nil {
		return nil
	}
	out := make(Timeline, len(t))
	for i, e := range t {
		e.ScheduledEventDate = cloneTime(e.ScheduledEventDate)
		out[i] = e
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
