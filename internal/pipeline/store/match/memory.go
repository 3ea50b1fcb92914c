// Package match persists match aggregates and their timelines.
//
// Stores are pure I/O. Lifecycle rules live in the models and the service; a
// store only guarantees that a status change and its timeline entry commit
// together, and only against the version the caller read.
package match

import (
	"context"
	"sort"
	"sync"
	"time"

	"matchflow/internal/pipeline/models"
	id "matchflow/pkg/domain"
	"matchflow/pkg/platform/sentinel"
)

type pairKey struct {
	candidate id.CandidateID
	job       id.JobID
}

// InMemory is a process-local store. Every read and write copies, so callers
// never share state with the store.
type InMemory struct {
	mu      sync.RWMutex
	matches map[id.MatchID]*models.Match
	pairs   map[pairKey]id.MatchID
}

func NewInMemory() *InMemory {
	return &InMemory{
		matches: make(map[id.MatchID]*models.Match),
		pairs:   make(map[pairKey]id.MatchID),
	}
}

// Create inserts a new match. A second match for the same candidate-job pair
// returns sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{candidate: m.CandidateID, job: m.JobID}
	if _, ok := s.pairs[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.matches[m.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.matches[m.ID] = m.Clone()
	s.pairs[key] = m.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, matchID id.MatchID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m.Clone(), nil
}

// List returns matches passing filter, most recently updated first.
// A zero Limit returns every match.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Match, error) {
	s.mu.RLock()
	out := make([]*models.Match, 0, len(s.matches))
	for _, m := range s.matches {
		if filter.Matches(m) {
			out = append(out, m.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CommitTransition writes m's lifecycle fields and appends entry, provided the
// stored version still equals expectedVersion. On success the stored version
// becomes expectedVersion+1.
func (s *InMemory) CommitTransition(_ context.Context, m *models.Match, expectedVersion int64, entry models.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.matches[m.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrConflict
	}

	next := current.Clone()
	if err := next.Timeline.Append(entry); err != nil {
		return err
	}
	applyLifecycle(next, m)
	next.Version = expectedVersion + 1
	s.matches[m.ID] = next
	return nil
}

// UpdateScore sets the score without touching the lifecycle or the version.
func (s *InMemory) UpdateScore(_ context.Context, matchID id.MatchID, score int, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.matches[matchID]
	if !ok {
		return sentinel.ErrNotFound
	}
	current.Score = score
	if updatedAt.After(current.UpdatedAt) {
		current.UpdatedAt = updatedAt
	}
	return nil
}

func applyLifecycle(dst, src *models.Match) {
	snapshot := src.Clone()
	dst.Status = snapshot.Status
	dst.StartDate = snapshot.StartDate
	dst.EndDate = snapshot.EndDate
	if snapshot.UpdatedAt.After(dst.UpdatedAt) {
		dst.UpdatedAt = snapshot.UpdatedAt
	}
}
