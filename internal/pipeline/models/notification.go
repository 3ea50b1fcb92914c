package models

import (
	"time"

	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
)

// NotificationRequest describes what the messaging collaborator should
// announce after an accepted transition. It is a request, not a delivery.
//
// Display fields degrade to empty when a directory lookup fails.
type NotificationRequest struct {
	MatchID              id.MatchID    `json:"match_id"`
	RecipientRefs        []string      `json:"recipient_refs"`
	CandidateDisplayName string        `json:"candidate_display_name"`
	CompanyDisplayName   string        `json:"company_display_name"`
	JobTitle             string        `json:"job_title,omitempty"`
	PreviousStatus       status.Status `json:"previous_status"`
	NewStatus            status.Status `json:"new_status"`
	DetailLinkID         string        `json:"detail_link_id"`
	ScheduledEventDate   *time.Time    `json:"scheduled_event_date,omitempty"`
	Notes                string        `json:"notes,omitempty"`
	Correction           bool          `json:"correction"`
	ActorID              id.UserID     `json:"actor_id"`
	OccurredAt           time.Time     `json:"occurred_at"`
}

// Headline renders the one-line summary chat renderers use.
func (n NotificationRequest) Headline() string {
	name := n.CandidateDisplayName
	if name == "" {
		name = "A candidate"
	}
	line := n.NewStatus.Emoji() + " " + name + ": " + n.NewStatus.Label()
	if n.Correction {
		line += " (updated)"
	}
	return line
}
