package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"talkinghead/internal/domain"
	"talkinghead/internal/providers/visionstory"
)

type jobResponse struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id,omitempty"`
	Labels       []string        `json:"labels,omitempty"`
	Status       string          `json:"status"`
	Progress     domain.Progress `json:"progress"`
	VideoID      string          `json:"video_id,omitempty"`
	VideoURL     string          `json:"video_url,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// JobStatus returns the current state of one job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: load job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, jobResponse{
		ID:           job.ID,
		UserID:       job.UserID,
		Labels:       job.Labels,
		Status:       string(job.Status),
		Progress:     job.Progress,
		VideoID:      job.VideoID,
		VideoURL:     job.VideoURL,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		CompletedAt:  job.CompletedAt,
	})
}

// VideoStatus checks a provider video handle directly, bypassing the job
// store. It exists for manual follow-up once a poll budget has run out.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	if videoID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "video_id required")
		return
	}
	status, err := a.Provider.GetVideoStatus(r.Context(), videoID)
	if err != nil {
		var apiErr *visionstory.APIError
		if errors.As(err, &apiErr) {
			a.error(w, apiErr.StatusCode, "provider_error", apiErr.Body)
			return
		}
		a.Logger.Error().Err(err).Str("video_id", videoID).Msg("api: provider status check failed")
		a.error(w, http.StatusBadGateway, "provider_error", "failed to check video status")
		return
	}
	if status.Status == visionstory.VideoStatusCreated && status.VideoURL != "" {
		a.json(w, http.StatusOK, map[string]any{
			"status":    "completed",
			"video_id":  videoID,
			"video_url": status.VideoURL,
		})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":   status.Status,
		"video_id": videoID,
	})
}
