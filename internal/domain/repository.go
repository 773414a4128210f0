package domain

import "context"

// JobStore defines persistence for job records. Create assigns the job's ID
// and stamps CreatedAt/UpdatedAt; Update merges a partial mutation and always
// advances UpdatedAt; Get returns ErrNotFound for unknown identifiers.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, jobID string, upd JobUpdate) error
	Get(ctx context.Context, jobID string) (*Job, error)
}
