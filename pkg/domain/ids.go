// Package domain holds typed identifiers shared across the pipeline.
//
// Every entity reference is a distinct named UUID type so a candidate ID can
// never be passed where a job ID is expected. Parsing happens once at the trust
// boundary (handlers); inside the service everything is already typed.
package domain

import (
	"github.com/google/uuid"

	dErrors "matchflow/pkg/domain-errors"
)

type (
	// UserID identifies an operator (the actor recorded on timeline entries).
	UserID uuid.UUID
	// MatchID identifies a candidate-job pairing.
	MatchID uuid.UUID
	// EntryID identifies a single timeline entry.
	EntryID uuid.UUID
	CandidateID uuid.UUID
	JobID       uuid.UUID
	CompanyID   uuid.UUID
	StoreID     uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseMatchID(s string) (MatchID, error) {
	u, err := parseUUID("match id", s)
	return MatchID(u), err
}

func ParseEntryID(s string) (EntryID, error) {
	u, err := parseUUID("entry id", s)
	return EntryID(u), err
}

func ParseCandidateID(s string) (CandidateID, error) {
	u, err := parseUUID("candidate id", s)
	return CandidateID(u), err
}

func ParseJobID(s string) (JobID, error) {
	u, err := parseUUID("job id", s)
	return JobID(u), err
}

func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID("company id", s)
	return CompanyID(u), err
}

func ParseStoreID(s string) (StoreID, error) {
	u, err := parseUUID("store id", s)
	return StoreID(u), err
}

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id MatchID) String() string     { return uuid.UUID(id).String() }
func (id EntryID) String() string     { return uuid.UUID(id).String() }
func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id JobID) String() string       { return uuid.UUID(id).String() }
func (id CompanyID) String() string   { return uuid.UUID(id).String() }
func (id StoreID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id MatchID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CandidateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id JobID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id StoreID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps JSON payloads (notifications, cache entries, API
// responses) in canonical UUID form instead of byte arrays.

func (id UserID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id MatchID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id EntryID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id CandidateID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id JobID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id CompanyID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id StoreID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MatchID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EntryID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CandidateID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *JobID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CompanyID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *StoreID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
