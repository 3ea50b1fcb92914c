package status

// graph is the authoritative adjacency table. Terminal statuses map to nil.
//
// Every non-terminal status may short-circuit to offer, rejected or withdrawn;
// interview_passed loops back to interview for repeat rounds.
var graph = map[Status][]Status{
	PendingProposal:   {Suggested, Rejected, Withdrawn},
	Suggested:         {Applied, Offer, Rejected, Withdrawn},
	Applied:           {DocumentScreening, Offer, Rejected, Withdrawn},
	DocumentScreening: {DocumentPassed, Offer, Rejected, Withdrawn},
	DocumentPassed:    {Interview, Offer, Rejected, Withdrawn},
	Interview:         {InterviewPassed, Offer, Rejected, Withdrawn},
	InterviewPassed:   {Interview, Offer, Rejected, Withdrawn},
	Offer:             {OfferAccepted, Rejected, Withdrawn},
	OfferAccepted:     nil,
	Rejected:          nil,
	Withdrawn:         nil,
}

// NextStatuses returns the forward targets reachable from current. The slice
// is a copy; it is empty for terminal and unknown statuses.
func NextStatuses(current Status) []Status {
	next := graph[current]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether target is a forward edge from current.
// Self edges are never forward transitions.
func CanTransition(current, target Status) bool {
	for _, s := range graph[current] {
		if s == target {
			return true
		}
	}
	return false
}

// CanCorrect reports whether resubmitting target over current is a
// same-status correction. Only terminal statuses can be corrected.
func CanCorrect(current, target Status) bool {
	return current == target && current.IsTerminal()
}

// Admissible reports whether the lifecycle accepts target from current,
// either as a forward transition or as a terminal correction.
func Admissible(current, target Status) bool {
	return CanTransition(current, target) || CanCorrect(current, target)
}
