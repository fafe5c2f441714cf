// Package memstore provides in-memory reference implementations of the job
// store and credit ledger. They carry the same semantics as the PostgreSQL
// adapters (optimistic job updates, atomic reservations) and back tests and
// single-process development runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"keyframe/server/internal/domain"
)

// JobStore is a mutex-guarded map of jobs. Values are deep-copied on the way
// in and out so callers never share the artifacts map with the store.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.GenerationJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.GenerationJob)}
}

func (s *JobStore) Create(_ context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return domain.ErrVersionConflict
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *JobStore) Get(_ context.Context, jobID string) (*domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (s *JobStore) Update(_ context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != job.Version {
		return domain.ErrVersionConflict
	}
	job.UpdatedAt = time.Now().UTC()
	job.Version++
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *JobStore) ListUnsettled(_ context.Context) ([]*domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*domain.GenerationJob
	for _, job := range s.jobs {
		if !job.CreditsSettled {
			jobs = append(jobs, job.Clone())
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

var _ domain.JobStore = (*JobStore)(nil)
