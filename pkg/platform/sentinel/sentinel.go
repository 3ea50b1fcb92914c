package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// They describe the state of a record, never a validation failure:
// - ErrNotFound: the record does not exist
// - ErrConflict: a conditional write lost to a concurrent writer (version moved)
// - ErrAlreadyUsed: a uniqueness key is already taken (candidate-job pair)
// - ErrUnavailable: the backing service is temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
