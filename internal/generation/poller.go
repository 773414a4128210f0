package generation

import (
	"context"
	"errors"
	"time"

	"talkinghead/internal/infra"
	"talkinghead/internal/providers/visionstory"
)

var (
	// ErrPollTimeout reports that the poll budget ran out before the provider
	// reached a terminal status.
	ErrPollTimeout = errors.New("generation: poll budget exhausted before the video reached a terminal status")
	// ErrGenerationFailed reports that the provider explicitly marked the
	// video as failed.
	ErrGenerationFailed = errors.New("generation: provider reported video generation failed")
)

// Provider is the narrow surface of the external generation service the
// orchestration depends on. Tests run against fakes.
type Provider interface {
	CreateAvatar(ctx context.Context, data []byte, mimeType string) (string, error)
	CreateVideo(ctx context.Context, avatarID string, audio []byte, mimeType string, opts visionstory.VideoOptions) (string, error)
	GetVideoStatus(ctx context.Context, videoID string) (*visionstory.VideoStatus, error)
}

// Profile bounds a polling loop: how long to wait between status checks and
// how much total wait to spend before giving up.
type Profile struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// InteractiveProfile suits a caller that stays attached while the video
// renders.
var InteractiveProfile = Profile{Interval: 10 * time.Second, MaxWait: time.Hour}

// DeferredProfile suits a detached worker that only persists progress; the
// provider can take many hours on long inputs.
var DeferredProfile = Profile{Interval: 10 * time.Minute, MaxWait: 60 * time.Hour}

// Poller repeatedly queries the provider for a single video's status until it
// is terminal or the profile's budget is exhausted.
type Poller struct {
	Provider Provider
	Profile  Profile
	Logger   infra.Logger
}

// Poll waits out the profile's interval between status checks and returns the
// terminal status. A transient status-check failure is logged and tolerated
// up to the overall budget rather than aborting the job; provider latency
// variance would otherwise fail jobs spuriously. onProgress, when set, is
// invoked once per poll cycle with the total elapsed wait.
func (p *Poller) Poll(ctx context.Context, videoID string, onProgress func(elapsed time.Duration)) (*visionstory.VideoStatus, error) {
	log := p.Logger.With().Str("video_id", videoID).Logger()
	timer := time.NewTimer(p.Profile.Interval)
	defer timer.Stop()

	var elapsed time.Duration
	for elapsed < p.Profile.MaxWait {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		elapsed += p.Profile.Interval
		if onProgress != nil {
			onProgress(elapsed)
		}

		status, err := p.Provider.GetVideoStatus(ctx, videoID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Dur("elapsed", elapsed).Msg("generation: status check failed, will retry")
		case status.Status == visionstory.VideoStatusCreated:
			if status.VideoURL == "" {
				return nil, errors.New("generation: video created but no video_url returned")
			}
			log.Info().Dur("elapsed", elapsed).Msg("generation: video completed")
			return status, nil
		case status.Status == visionstory.VideoStatusFailed:
			return nil, ErrGenerationFailed
		default:
			log.Debug().Str("status", status.Status).Dur("elapsed", elapsed).Msg("generation: video still rendering")
		}

		timer.Reset(p.Profile.Interval)
	}
	return nil, ErrPollTimeout
}
