package models

import (
	"fmt"
	"strings"

	"matchflow/internal/pipeline/status"
)

// InvalidTransitionError reports a target status that is not reachable from
// the match's current status. No state is mutated when it is returned.
type InvalidTransitionError struct {
	From status.Status
	To   status.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// MixedStatusError reports a bulk selection whose matches do not share one
// current status. Statuses lists each distinct status in the order the
// selection first reached it.
type MixedStatusError struct {
	Statuses []status.Status
}

func (e *MixedStatusError) Error() string {
	names := make([]string, len(e.Statuses))
	for i, s := range e.Statuses {
		names[i] = string(s)
	}
	return "selected matches have mixed statuses: " + strings.Join(names, ", ")
}
