package visionstory

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"talkinghead/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("visionstory: api key is required")

// Video statuses reported by the provider. A video is terminal once it is
// created or failed; queued and processing are in-flight.
const (
	VideoStatusQueued     = "queued"
	VideoStatusProcessing = "processing"
	VideoStatusCreated    = "created"
	VideoStatusFailed     = "failed"
)

// Options configures the VisionStory client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the VisionStory talking-head API. It wraps the
// three remote operations the service depends on: avatar creation, video
// creation and video status checks.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// APIError is a non-success response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("visionstory: status %d: %s", e.StatusCode, e.Body)
}

// VideoStatus is the normalized result of a status check.
type VideoStatus struct {
	VideoID  string
	Status   string
	VideoURL string
}

// VideoOptions are the generation parameters passed through verbatim on video
// creation.
type VideoOptions struct {
	ModelID     string
	Emotion     string
	AspectRatio string
	Resolution  string
	VoiceChange bool
	Denoise     bool
}

// DefaultVideoOptions returns the fixed talking-head generation policy.
func DefaultVideoOptions() VideoOptions {
	return VideoOptions{
		ModelID:     "vs_talk_v1",
		Emotion:     "news",
		AspectRatio: "9:16",
		Resolution:  "720p",
		VoiceChange: true,
		Denoise:     true,
	}
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type avatarRequest struct {
	InlineData inlineData `json:"inline_data"`
}

type audioScript struct {
	InlineData  inlineData `json:"inline_data"`
	VoiceChange bool       `json:"voice_change"`
	Denoise     bool       `json:"denoise"`
}

type videoRequest struct {
	ModelID     string      `json:"model_id"`
	AvatarID    string      `json:"avatar_id"`
	AudioScript audioScript `json:"audio_script"`
	Emotion     string      `json:"emotion"`
	AspectRatio string      `json:"aspect_ratio"`
	Resolution  string      `json:"resolution"`
}

type apiResponse struct {
	Data struct {
		AvatarID string `json:"avatar_id"`
		VideoID  string `json:"video_id"`
		Status   string `json:"status"`
		VideoURL string `json:"video_url"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
// The credential is explicit; there is no ambient process-wide key.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openapi.visionstory.ai"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CreateAvatar submits an image and returns the provider's avatar handle.
func (c *Client) CreateAvatar(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("visionstory: image data is required")
	}
	payload := avatarRequest{
		InlineData: inlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}
	decoded, err := c.postJSON(ctx, "/api/v1/avatar", payload)
	if err != nil {
		return "", err
	}
	avatarID := strings.TrimSpace(decoded.Data.AvatarID)
	if avatarID == "" {
		return "", errors.New("visionstory: response missing avatar_id")
	}
	c.logger.Debug().Str("avatar_id", avatarID).Msg("visionstory: avatar created")
	return avatarID, nil
}

// CreateVideo requests a talking-head render from an avatar handle and an
// audio track, returning the provider's video handle used for polling.
func (c *Client) CreateVideo(ctx context.Context, avatarID string, audio []byte, mimeType string, opts VideoOptions) (string, error) {
	if strings.TrimSpace(avatarID) == "" {
		return "", errors.New("visionstory: avatar id is required")
	}
	if len(audio) == 0 {
		return "", errors.New("visionstory: audio data is required")
	}
	payload := videoRequest{
		ModelID:  opts.ModelID,
		AvatarID: avatarID,
		AudioScript: audioScript{
			InlineData: inlineData{
				MIMEType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(audio),
			},
			VoiceChange: opts.VoiceChange,
			Denoise:     opts.Denoise,
		},
		Emotion:     opts.Emotion,
		AspectRatio: opts.AspectRatio,
		Resolution:  opts.Resolution,
	}
	decoded, err := c.postJSON(ctx, "/api/v1/video", payload)
	if err != nil {
		return "", err
	}
	videoID := strings.TrimSpace(decoded.Data.VideoID)
	if videoID == "" {
		return "", errors.New("visionstory: response missing video_id")
	}
	c.logger.Debug().Str("avatar_id", avatarID).Str("video_id", videoID).Msg("visionstory: video creation started")
	return videoID, nil
}

// GetVideoStatus fetches the current provider-side status of a video. A
// transport or non-success outcome is returned as an error; callers decide
// whether it is transient.
func (c *Client) GetVideoStatus(ctx context.Context, videoID string) (*VideoStatus, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, errors.New("visionstory: video id is required")
	}
	endpoint := c.baseURL + "/api/v1/video?video_id=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("visionstory: build request: %w", err)
	}
	c.setHeaders(req)
	decoded, err := c.do(req)
	if err != nil {
		return nil, err
	}
	status := strings.TrimSpace(decoded.Data.Status)
	if status == "" {
		return nil, errors.New("visionstory: response missing status")
	}
	return &VideoStatus{
		VideoID:  videoID,
		Status:   status,
		VideoURL: strings.TrimSpace(decoded.Data.VideoURL),
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("visionstory: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("visionstory: build request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("visionstory: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("visionstory: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(raw))
		var parsed errorResponse
		if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
			detail = parsed.Error.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: detail}
	}
	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("visionstory: decode response: %w", err)
	}
	return &decoded, nil
}
