// Package directory resolves the candidates, jobs and companies a match
// references. Lookups are read-only; a missing record is sentinel.ErrNotFound.
package directory

import (
	id "matchflow/pkg/domain"
)

// Candidate is the display projection of a candidate.
type Candidate struct {
	ID          id.CandidateID `json:"id"`
	DisplayName string         `json:"display_name"`
	// AssigneeRef identifies the agency staff member responsible for the
	// candidate. The messaging collaborator resolves it to an address.
	AssigneeRef string `json:"assignee_ref"`
}

// Job is a job posting. Its company and stores are copied onto matches at
// creation.
type Job struct {
	ID        id.JobID     `json:"id"`
	Title     string       `json:"title"`
	CompanyID id.CompanyID `json:"company_id"`
	StoreIDs  []id.StoreID `json:"store_ids"`
}

// Company is the display projection of a client company.
type Company struct {
	ID          id.CompanyID `json:"id"`
	Name        string       `json:"name"`
	AssigneeRef string       `json:"assignee_ref"`
}
