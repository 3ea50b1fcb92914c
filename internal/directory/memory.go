package directory

import (
	"context"
	"sync"

	id "matchflow/pkg/domain"
	"matchflow/pkg/platform/sentinel"
)

// InMemory is a seedable directory for development and tests.
type InMemory struct {
	mu         sync.RWMutex
	candidates map[id.CandidateID]Candidate
	jobs       map[id.JobID]Job
	companies  map[id.CompanyID]Company
}

func NewInMemory() *InMemory {
	return &InMemory{
		candidates: make(map[id.CandidateID]Candidate),
		jobs:       make(map[id.JobID]Job),
		companies:  make(map[id.CompanyID]Company),
	}
}

func (s *InMemory) PutCandidate(c Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[c.ID] = c
}

func (s *InMemory) PutJob(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.StoreIDs = append([]id.StoreID(nil), j.StoreIDs...)
	s.jobs[j.ID] = j
}

func (s *InMemory) PutCompany(c Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
}

func (s *InMemory) Candidate(_ context.Context, candidateID id.CandidateID) (*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemory) Job(_ context.Context, jobID id.JobID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	j.StoreIDs = append([]id.StoreID(nil), j.StoreIDs...)
	return &j, nil
}

func (s *InMemory) Company(_ context.Context, companyID id.CompanyID) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}
