package generation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"talkinghead/internal/infra"
	"talkinghead/internal/storage"
)

// Task is the durable description of one job's execution: the job identifier
// plus references to the stored input artifacts. The artifact bytes live in
// the shared file store; original filenames travel along so a fresh worker
// can re-derive MIME types.
type Task struct {
	JobID     string `json:"job_id"`
	ImageKey  string `json:"image_key"`
	AudioKey  string `json:"audio_key"`
	ImageName string `json:"image_name"`
	AudioName string `json:"audio_name"`
}

// Dispatcher decides how a submitted job is executed. The in-process variant
// runs the runner on a tracked goroutine; the queue variant publishes the
// task to a broker whose redelivery policy provides the resilience the
// in-process path lacks.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// LoadTask reads both input artifacts for a task from the file store.
func LoadTask(ctx context.Context, files *storage.FileStore, task Task) (image, audio Artifact, err error) {
	imageData, err := files.Read(ctx, task.ImageKey)
	if err != nil {
		return Artifact{}, Artifact{}, fmt.Errorf("load image artifact: %w", err)
	}
	audioData, err := files.Read(ctx, task.AudioKey)
	if err != nil {
		return Artifact{}, Artifact{}, fmt.Errorf("load audio artifact: %w", err)
	}
	image = Artifact{Data: imageData, MIME: MIMEForFilename(task.ImageName)}
	audio = Artifact{Data: audioData, MIME: MIMEForFilename(task.AudioName)}
	return image, audio, nil
}

// MIMEForFilename maps an uploaded filename to the MIME type sent to the
// provider.
func MIMEForFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".mp3":
		return "audio/mp3"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/m4a"
	case ".aac":
		return "audio/aac"
	default:
		return "application/octet-stream"
	}
}

// GoDispatcher executes jobs on background goroutines inside the API process.
// There is no durability: a crash mid-job abandons it in processing. Each
// dispatched job is tracked so shutdown can drain in-flight work.
type GoDispatcher struct {
	base   context.Context
	runner *Runner
	files  *storage.FileStore
	logger infra.Logger
	wg     sync.WaitGroup
}

// NewGoDispatcher creates an in-process dispatcher. Jobs run under base, not
// the submitting request's context, so they outlive the HTTP request.
func NewGoDispatcher(base context.Context, runner *Runner, files *storage.FileStore, logger infra.Logger) *GoDispatcher {
	return &GoDispatcher{base: base, runner: runner, files: files, logger: logger}
}

// Dispatch starts the job in the background and returns immediately.
func (d *GoDispatcher) Dispatch(ctx context.Context, task Task) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		image, audio, err := LoadTask(d.base, d.files, task)
		if err != nil {
			_ = d.runner.FailJob(d.base, task.JobID, err)
			return
		}
		if err := d.runner.Run(d.base, task.JobID, image, audio); err != nil {
			d.logger.Error().Err(err).Str("job_id", task.JobID).Msg("dispatch: background job failed")
		}
	}()
	return nil
}

// Wait blocks until all dispatched jobs have finished.
func (d *GoDispatcher) Wait() {
	d.wg.Wait()
}

var _ Dispatcher = (*GoDispatcher)(nil)
