package generation

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"talkinghead/internal/providers/visionstory"
)

type statusResult struct {
	status *visionstory.VideoStatus
	err    error
}

// fakeProvider scripts the three provider operations for orchestration tests.
// Status results are consumed in order; the last one repeats once the script
// is exhausted.
type fakeProvider struct {
	mu sync.Mutex

	avatarID  string
	avatarErr error
	videoID   string
	videoErr  error
	statuses  []statusResult

	avatarCalls int
	videoCalls  int
	statusCalls int
}

func (f *fakeProvider) CreateAvatar(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avatarCalls++
	if f.avatarErr != nil {
		return "", f.avatarErr
	}
	return f.avatarID, nil
}

func (f *fakeProvider) CreateVideo(ctx context.Context, avatarID string, audio []byte, mimeType string, opts visionstory.VideoOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoCalls++
	if f.videoErr != nil {
		return "", f.videoErr
	}
	return f.videoID, nil
}

func (f *fakeProvider) GetVideoStatus(ctx context.Context, videoID string) (*visionstory.VideoStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		f.statusCalls++
		return &visionstory.VideoStatus{VideoID: videoID, Status: visionstory.VideoStatusProcessing}, nil
	}
	idx := f.statusCalls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.statusCalls++
	result := f.statuses[idx]
	return result.status, result.err
}

func processing() statusResult {
	return statusResult{status: &visionstory.VideoStatus{Status: visionstory.VideoStatusProcessing}}
}

func created(url string) statusResult {
	return statusResult{status: &visionstory.VideoStatus{Status: visionstory.VideoStatusCreated, VideoURL: url}}
}

func newTestPoller(provider Provider, profile Profile) *Poller {
	return &Poller{Provider: provider, Profile: profile, Logger: zerolog.Nop()}
}

func TestPollerReturnsURLOnThirdPoll(t *testing.T) {
	provider := &fakeProvider{statuses: []statusResult{
		processing(),
		processing(),
		created("https://cdn.example.com/final.mp4"),
	}}
	poller := newTestPoller(provider, Profile{Interval: time.Millisecond, MaxWait: 100 * time.Millisecond})

	var elapsed []time.Duration
	status, err := poller.Poll(context.Background(), "vid_1", func(d time.Duration) {
		elapsed = append(elapsed, d)
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.VideoURL != "https://cdn.example.com/final.mp4" {
		t.Fatalf("video url = %q", status.VideoURL)
	}
	if provider.statusCalls != 3 {
		t.Fatalf("status calls = %d, want 3", provider.statusCalls)
	}
	if len(elapsed) != 3 {
		t.Fatalf("progress callbacks = %d, want 3", len(elapsed))
	}
	for i, d := range elapsed {
		if want := time.Duration(i+1) * time.Millisecond; d != want {
			t.Fatalf("elapsed[%d] = %v, want %v", i, d, want)
		}
	}
}

func TestPollerProviderReportedFailure(t *testing.T) {
	provider := &fakeProvider{statuses: []statusResult{
		{status: &visionstory.VideoStatus{Status: visionstory.VideoStatusFailed}},
	}}
	poller := newTestPoller(provider, Profile{Interval: time.Millisecond, MaxWait: 100 * time.Millisecond})

	_, err := poller.Poll(context.Background(), "vid_1", nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if provider.statusCalls != 1 {
		t.Fatalf("status calls = %d, want 1", provider.statusCalls)
	}
}

func TestPollerBudgetExhaustedAfterExactAttempts(t *testing.T) {
	provider := &fakeProvider{}
	interval := 5 * time.Millisecond
	poller := newTestPoller(provider, Profile{Interval: interval, MaxWait: 2 * interval})

	_, err := poller.Poll(context.Background(), "vid_1", nil)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if provider.statusCalls != 2 {
		t.Fatalf("status calls = %d, want exactly 2", provider.statusCalls)
	}
}

func TestPollerToleratesTransientStatusFailures(t *testing.T) {
	provider := &fakeProvider{statuses: []statusResult{
		{err: &visionstory.APIError{StatusCode: http.StatusBadGateway, Body: "upstream unavailable"}},
		{err: errors.New("connection reset")},
		created("https://cdn.example.com/final.mp4"),
	}}
	poller := newTestPoller(provider, Profile{Interval: time.Millisecond, MaxWait: 100 * time.Millisecond})

	status, err := poller.Poll(context.Background(), "vid_1", nil)
	if err != nil {
		t.Fatalf("poll should survive transient errors, got %v", err)
	}
	if status.VideoURL == "" || provider.statusCalls != 3 {
		t.Fatalf("status calls = %d, url = %q", provider.statusCalls, status.VideoURL)
	}
}

func TestPollerCreatedWithoutURL(t *testing.T) {
	provider := &fakeProvider{statuses: []statusResult{created("")}}
	poller := newTestPoller(provider, Profile{Interval: time.Millisecond, MaxWait: 100 * time.Millisecond})

	_, err := poller.Poll(context.Background(), "vid_1", nil)
	if err == nil || !strings.Contains(err.Error(), "video_url") {
		t.Fatalf("err = %v, want missing video_url error", err)
	}
}

func TestPollerCancellation(t *testing.T) {
	provider := &fakeProvider{}
	poller := newTestPoller(provider, Profile{Interval: time.Second, MaxWait: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := poller.Poll(ctx, "vid_1", nil)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("poller did not stop after cancellation")
	}
	if provider.statusCalls != 0 {
		t.Fatalf("status calls = %d, want 0", provider.statusCalls)
	}
}
