package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status will never transition again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from one status to another is a legal
// lifecycle edge. Jobs only ever move pending -> processing -> completed/failed;
// a pending job may also fail directly when dispatch itself breaks.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// Step names the pipeline stage a processing job is currently in.
type Step string

const (
	StepAvatarCreation  Step = "avatar_creation"
	StepVideoGeneration Step = "video_generation"
	StepCompleted       Step = "completed"
)

// TotalSteps is the number of pipeline stages a job moves through.
const TotalSteps = 3

// Progress is a snapshot of where a job's execution currently is.
type Progress struct {
	CurrentStep Step   `json:"current_step"`
	StepNumber  int    `json:"step_number"`
	TotalSteps  int    `json:"total_steps"`
	Message     string `json:"message"`
}

// Job encapsulates one end-to-end request to turn an image+audio pair into a
// generated talking-head video. The runner is the sole writer of a job record
// for the job's lifetime; status queries are read-only.
type Job struct {
	ID           string
	UserID       string
	Labels       []string
	Status       JobStatus
	Progress     Progress
	VideoID      string
	VideoURL     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// JobUpdate is a partial mutation of a job record. Nil fields are left
// untouched; set fields overwrite last-writer-wins. Stores always stamp
// UpdatedAt when applying an update.
type JobUpdate struct {
	Status       *JobStatus
	Progress     *Progress
	VideoID      *string
	VideoURL     *string
	ErrorMessage *string
	CompletedAt  *time.Time
}

// Apply merges the update into the job in place. UpdatedAt stamping is the
// store's responsibility.
func (u JobUpdate) Apply(job *Job) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = *u.Progress
	}
	if u.VideoID != nil {
		job.VideoID = *u.VideoID
	}
	if u.VideoURL != nil {
		job.VideoURL = *u.VideoURL
	}
	if u.ErrorMessage != nil {
		job.ErrorMessage = *u.ErrorMessage
	}
	if u.CompletedAt != nil {
		job.CompletedAt = u.CompletedAt
	}
}
