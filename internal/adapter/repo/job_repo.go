package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkinghead/internal/domain"
)

// JobRepositoryPG implements domain.JobStore on PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job store backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record. The database assigns the identifier and
// timestamps, which are written back into the job.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (user_id, labels, status, current_step, step_number, total_steps, progress_message)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at;
`
	labels := job.Labels
	if labels == nil {
		labels = []string{}
	}
	row := r.pool.QueryRow(ctx, query,
		job.UserID,
		labels,
		job.Status,
		job.Progress.CurrentStep,
		job.Progress.StepNumber,
		job.Progress.TotalSteps,
		job.Progress.Message,
	)
	return row.Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

// Update merges a partial mutation into the job row. Unset fields keep their
// stored values; updated_at always advances.
func (r *JobRepositoryPG) Update(ctx context.Context, jobID string, upd domain.JobUpdate) error {
	query := `
UPDATE jobs
SET status = COALESCE($2, status),
    current_step = COALESCE($3, current_step),
    step_number = COALESCE($4, step_number),
    total_steps = COALESCE($5, total_steps),
    progress_message = COALESCE($6, progress_message),
    video_id = COALESCE($7, video_id),
    video_url = COALESCE($8, video_url),
    error_message = COALESCE($9, error_message),
    completed_at = COALESCE($10, completed_at),
    updated_at = NOW()
WHERE id = $1;
`
	var currentStep, progressMessage *string
	var stepNumber, totalSteps *int
	if upd.Progress != nil {
		step := string(upd.Progress.CurrentStep)
		currentStep = &step
		stepNumber = &upd.Progress.StepNumber
		totalSteps = &upd.Progress.TotalSteps
		progressMessage = &upd.Progress.Message
	}
	tag, err := r.pool.Exec(ctx, query,
		jobID,
		upd.Status,
		currentStep,
		stepNumber,
		totalSteps,
		progressMessage,
		upd.VideoID,
		upd.VideoURL,
		upd.ErrorMessage,
		upd.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get fetches a job by its identifier.
func (r *JobRepositoryPG) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, user_id, labels, status, current_step, step_number, total_steps, progress_message,
       video_id, video_url, error_message, created_at, updated_at, completed_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Labels,
		&job.Status,
		&job.Progress.CurrentStep,
		&job.Progress.StepNumber,
		&job.Progress.TotalSteps,
		&job.Progress.Message,
		&job.VideoID,
		&job.VideoURL,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

var _ domain.JobStore = (*JobRepositoryPG)(nil)
