package generation

import (
	"context"
	"fmt"
	"time"

	"talkinghead/internal/domain"
	"talkinghead/internal/infra"
	"talkinghead/internal/providers/visionstory"
)

// Artifact is one binary input to a job, with the MIME type the provider
// should be told about.
type Artifact struct {
	Data []byte
	MIME string
}

// Runner drives one job through the full pipeline: avatar creation, video
// creation, then polling to completion, persisting every transition to the
// job store. It is the sole writer of a job record while the job runs.
type Runner struct {
	store    domain.JobStore
	provider Provider
	options  visionstory.VideoOptions
	profile  Profile
	logger   infra.Logger
}

// NewRunner wires a runner from its collaborators.
func NewRunner(store domain.JobStore, provider Provider, options visionstory.VideoOptions, profile Profile, logger infra.Logger) *Runner {
	return &Runner{
		store:    store,
		provider: provider,
		options:  options,
		profile:  profile,
		logger:   logger,
	}
}

// Run executes the pipeline for one job. Every failure ends with a terminal
// failed record in the store; the returned error only exists so a queue-based
// dispatcher can translate it into an ack/nack decision. A job already in a
// terminal state is left untouched, which keeps at-least-once redelivery safe.
func (r *Runner) Run(ctx context.Context, jobID string, image, audio Artifact) error {
	log := r.logger.With().Str("job_id", jobID).Logger()

	job, err := r.store.Get(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("generation: load job failed")
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		log.Info().Str("status", string(job.Status)).Msg("generation: job already terminal, skipping")
		return nil
	}

	r.update(ctx, log, jobID, progressUpdate(domain.JobStatusProcessing, domain.Progress{
		CurrentStep: domain.StepAvatarCreation,
		StepNumber:  1,
		TotalSteps:  domain.TotalSteps,
		Message:     "Creating avatar from image",
	}))

	avatarID, err := r.provider.CreateAvatar(ctx, image.Data, image.MIME)
	if err != nil {
		return r.FailJob(ctx, jobID, fmt.Errorf("create avatar: %w", err))
	}
	log.Info().Str("avatar_id", avatarID).Msg("generation: avatar created")

	r.update(ctx, log, jobID, progressUpdate(domain.JobStatusProcessing, domain.Progress{
		CurrentStep: domain.StepVideoGeneration,
		StepNumber:  2,
		TotalSteps:  domain.TotalSteps,
		Message:     "Requesting video generation",
	}))

	videoID, err := r.provider.CreateVideo(ctx, avatarID, audio.Data, audio.MIME, r.options)
	if err != nil {
		return r.FailJob(ctx, jobID, fmt.Errorf("create video: %w", err))
	}
	log.Info().Str("video_id", videoID).Msg("generation: video creation started")

	pollProgress := domain.Progress{
		CurrentStep: domain.StepVideoGeneration,
		StepNumber:  3,
		TotalSteps:  domain.TotalSteps,
		Message:     "Waiting for the video to render",
	}
	upd := progressUpdate(domain.JobStatusProcessing, pollProgress)
	upd.VideoID = &videoID
	r.update(ctx, log, jobID, upd)

	poller := &Poller{Provider: r.provider, Profile: r.profile, Logger: log}
	status, err := poller.Poll(ctx, videoID, func(elapsed time.Duration) {
		progress := pollProgress
		progress.Message = fmt.Sprintf("Waiting for the video to render (%s elapsed)", elapsed.Round(time.Second))
		r.update(ctx, log, jobID, domain.JobUpdate{Progress: &progress})
	})
	if err != nil {
		return r.FailJob(ctx, jobID, fmt.Errorf("poll video %s: %w", videoID, err))
	}

	completed := domain.JobStatusCompleted
	now := time.Now().UTC()
	r.update(ctx, log, jobID, domain.JobUpdate{
		Status: &completed,
		Progress: &domain.Progress{
			CurrentStep: domain.StepCompleted,
			StepNumber:  domain.TotalSteps,
			TotalSteps:  domain.TotalSteps,
			Message:     "Video ready",
		},
		VideoURL:    &status.VideoURL,
		CompletedAt: &now,
	})
	log.Info().Str("video_url", status.VideoURL).Msg("generation: job completed")
	return nil
}

// FailJob records a terminal failed state with the cause's message and hands
// the cause back for the dispatcher's retry decision.
func (r *Runner) FailJob(ctx context.Context, jobID string, cause error) error {
	log := r.logger.With().Str("job_id", jobID).Logger()
	failed := domain.JobStatusFailed
	msg := cause.Error()
	r.update(ctx, log, jobID, domain.JobUpdate{Status: &failed, ErrorMessage: &msg})
	log.Error().Err(cause).Msg("generation: job failed")
	return cause
}

// update persists a job mutation best-effort. A lost status write is
// telemetry, not correctness; the pipeline keeps going.
func (r *Runner) update(ctx context.Context, log infra.Logger, jobID string, upd domain.JobUpdate) {
	if err := r.store.Update(ctx, jobID, upd); err != nil {
		log.Error().Err(err).Msg("generation: job store update failed")
	}
}

func progressUpdate(status domain.JobStatus, progress domain.Progress) domain.JobUpdate {
	return domain.JobUpdate{Status: &status, Progress: &progress}
}
