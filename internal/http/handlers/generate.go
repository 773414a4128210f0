package handlers

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"talkinghead/internal/domain"
	"talkinghead/internal/generation"
)

type generateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Generate accepts a multipart image+audio pair, persists both artifacts,
// creates the job record and hands it to the dispatcher. The response carries
// the job identifier immediately; execution continues in the background.
// Validation happens before any job record exists, so a rejected request
// leaves no trace.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}

	imageData, imageName, ok := a.readUpload(w, r, "image")
	if !ok {
		return
	}
	audioData, audioName, ok := a.readUpload(w, r, "audio")
	if !ok {
		return
	}

	ctx := r.Context()
	imageKey, err := a.Files.Write(ctx, uploadKey(imageName), imageData)
	if err != nil {
		a.Logger.Error().Err(err).Msg("api: persist image upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store uploaded image")
		return
	}
	audioKey, err := a.Files.Write(ctx, uploadKey(audioName), audioData)
	if err != nil {
		a.Logger.Error().Err(err).Msg("api: persist audio upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store uploaded audio")
		return
	}

	job := &domain.Job{
		UserID: strings.TrimSpace(r.FormValue("user_id")),
		Labels: parseLabels(r.FormValue("labels")),
		Status: domain.JobStatusPending,
		Progress: domain.Progress{
			TotalSteps: domain.TotalSteps,
			Message:    "Waiting for a worker",
		},
	}
	if err := a.Store.Create(ctx, job); err != nil {
		a.Logger.Error().Err(err).Msg("api: create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	task := generation.Task{
		JobID:     job.ID,
		ImageKey:  imageKey,
		AudioKey:  audioKey,
		ImageName: imageName,
		AudioName: audioName,
	}
	if err := a.Dispatcher.Dispatch(ctx, task); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("api: dispatch failed")
		failed := domain.JobStatusFailed
		msg := fmt.Sprintf("dispatch: %v", err)
		if updErr := a.Store.Update(ctx, job.ID, domain.JobUpdate{Status: &failed, ErrorMessage: &msg}); updErr != nil {
			a.Logger.Error().Err(updErr).Str("job_id", job.ID).Msg("api: mark dispatch failure failed")
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to dispatch job")
		return
	}

	a.Logger.Info().Str("job_id", job.ID).Str("image", imageName).Str("audio", audioName).Msg("api: job submitted")
	a.json(w, http.StatusAccepted, generateResponse{JobID: job.ID, Status: string(job.Status)})
}

// readUpload pulls one required file field out of the multipart form. A
// missing field is an input validation error surfaced synchronously.
func (a *App) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image and audio files are both required")
		return nil, "", false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("failed to read %s upload", field))
		return nil, "", false
	}
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("%s upload is empty", field))
		return nil, "", false
	}
	return data, header.Filename, true
}

// uploadKey mirrors the upload naming scheme: a millisecond timestamp prefix
// plus the whitespace-collapsed original name.
func uploadKey(filename string) string {
	safe := whitespaceRe.ReplaceAllString(strings.TrimSpace(filename), "_")
	if safe == "" {
		safe = "upload"
	}
	return fmt.Sprintf("uploads/%d_%s", time.Now().UnixMilli(), safe)
}

func parseLabels(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	labels := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			labels = append(labels, trimmed)
		}
	}
	return labels
}
