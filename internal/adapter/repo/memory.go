package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"talkinghead/internal/domain"
)

// MemoryJobStore implements domain.JobStore in process memory. It backs
// development setups without a database and the orchestration tests. Jobs are
// copied on the way in and out so concurrent runners never share a struct.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*domain.Job)}
}

// Create assigns the job an identifier and stores a copy.
func (s *MemoryJobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	job.ID = uuid.NewString()
	job.CreatedAt = now
	job.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Update merges the partial mutation into the stored record and stamps
// UpdatedAt.
func (s *MemoryJobStore) Update(ctx context.Context, jobID string, upd domain.JobUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	upd.Apply(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns a copy of the job record.
func (s *MemoryJobStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func cloneJob(job *domain.Job) *domain.Job {
	cloned := *job
	if job.Labels != nil {
		cloned.Labels = append([]string(nil), job.Labels...)
	}
	if job.CompletedAt != nil {
		at := *job.CompletedAt
		cloned.CompletedAt = &at
	}
	return &cloned
}

var _ domain.JobStore = (*MemoryJobStore)(nil)
