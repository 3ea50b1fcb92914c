// Package status is the closed vocabulary of pipeline stages a match can
// occupy, their classification, and the transition graph between them.
package status

import (
	"strings"

	dErrors "matchflow/pkg/domain-errors"
)

// Status is a pipeline stage.
type Status string

const (
	PendingProposal   Status = "pending_proposal"
	Suggested         Status = "suggested"
	Applied           Status = "applied"
	DocumentScreening Status = "document_screening"
	DocumentPassed    Status = "document_passed"
	Interview         Status = "interview"
	InterviewPassed   Status = "interview_passed"
	Offer             Status = "offer"
	OfferAccepted     Status = "offer_accepted"
	Rejected          Status = "rejected"
	Withdrawn         Status = "withdrawn"
)

// all is in display order.
var all = []Status{
	PendingProposal,
	Suggested,
	Applied,
	DocumentScreening,
	DocumentPassed,
	Interview,
	InterviewPassed,
	Offer,
	OfferAccepted,
	Rejected,
	Withdrawn,
}

// All returns every status in display order. The slice is a copy.
func All() []Status {
	out := make([]Status, len(all))
	copy(out, all)
	return out
}

// Parse converts a raw value into a Status. Surrounding whitespace and case
// are ignored.
func Parse(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+raw)
	}
	return s, nil
}

// IsValid checks if the status is one of the catalog values.
func (s Status) IsValid() bool {
	_, ok := catalog[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// Class groups statuses for filtering and reporting.
type Class string

const (
	ClassActive    Class = "active"
	ClassCompleted Class = "completed"
	ClassInactive  Class = "inactive"
)

// ParseClass converts a raw value into a Class.
func ParseClass(raw string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case ClassActive, ClassCompleted, ClassInactive:
		return c, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status class: "+raw)
}

// Classes returns every class in display order.
func Classes() []Class {
	return []Class{ClassActive, ClassCompleted, ClassInactive}
}

type info struct {
	class      Class
	label      string
	emoji      string
	notifiable bool
}

var catalog = map[Status]info{
	PendingProposal:   {class: ClassActive, label: "Pending proposal", emoji: "📋"},
	Suggested:         {class: ClassActive, label: "Suggested", emoji: "💡"},
	Applied:           {class: ClassActive, label: "Applied", emoji: "📝", notifiable: true},
	DocumentScreening: {class: ClassActive, label: "Document screening", emoji: "📄"},
	DocumentPassed:    {class: ClassActive, label: "Document passed", emoji: "✅", notifiable: true},
	Interview:         {class: ClassActive, label: "Interview", emoji: "🗓️", notifiable: true},
	InterviewPassed:   {class: ClassActive, label: "Interview passed", emoji: "🎯", notifiable: true},
	Offer:             {class: ClassActive, label: "Offer", emoji: "🎁", notifiable: true},
	OfferAccepted:     {class: ClassCompleted, label: "Offer accepted", emoji: "🎉", notifiable: true},
	Rejected:          {class: ClassInactive, label: "Rejected", emoji: "❌"},
	Withdrawn:         {class: ClassInactive, label: "Withdrawn", emoji: "🚪"},
}

// Class returns the status classification. Unknown statuses have no class.
func (s Status) Class() Class {
	return catalog[s].class
}

// Statuses returns the members of c in display order.
func (c Class) Statuses() []Status {
	var out []Status
	for _, s := range all {
		if s.Class() == c {
			out = append(out, s)
		}
	}
	return out
}

// IsTerminal reports whether s has no outbound transitions.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(graph[s]) == 0
}

// Label is the human-readable name used by notification renderers.
func (s Status) Label() string {
	if i, ok := catalog[s]; ok {
		return i.label
	}
	return string(s)
}

// Emoji is the marker chat renderers prefix to the label.
func (s Status) Emoji() string {
	return catalog[s].emoji
}

// Notifiable reports whether the chat collaborator announces this status.
func (s Status) Notifiable() bool {
	return catalog[s].notifiable
}

// CarriesEventDate reports whether a transition into s may schedule an event
// date: the interview slot or the offer start.
func (s Status) CarriesEventDate() bool {
	return s == Interview || s == OfferAccepted
}
