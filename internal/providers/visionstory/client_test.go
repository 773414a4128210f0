package visionstory

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{APIKey: "  "}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestCreateAvatarPayloadAndHandle(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.setJSONResponse("/api/v1/avatar", map[string]any{
		"data": map[string]any{"avatar_id": "avt_123"},
	})

	imageBytes := []byte{0x89, 'P', 'N', 'G'}
	avatarID, err := client.CreateAvatar(context.Background(), imageBytes, "image/png")
	if err != nil {
		t.Fatalf("create avatar: %v", err)
	}
	if avatarID != "avt_123" {
		t.Fatalf("avatar id = %q, want avt_123", avatarID)
	}
	if got := transport.lastRequest.Header.Get("X-API-Key"); got != "test-key" {
		t.Fatalf("X-API-Key = %q, want test-key", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	inline := payload["inline_data"].(map[string]any)
	if mime := inline["mime_type"]; mime != "image/png" {
		t.Fatalf("mime_type = %v, want image/png", mime)
	}
	decoded, err := base64.StdEncoding.DecodeString(inline["data"].(string))
	if err != nil {
		t.Fatalf("data not base64 encoded: %v", err)
	}
	if !bytes.Equal(decoded, imageBytes) {
		t.Fatalf("decoded bytes mismatch: %v vs %v", decoded, imageBytes)
	}
}

func TestCreateAvatarMissingHandle(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.setJSONResponse("/api/v1/avatar", map[string]any{"data": map[string]any{}})

	if _, err := client.CreateAvatar(context.Background(), []byte{0x01}, "image/jpeg"); err == nil {
		t.Fatalf("expected error for missing avatar_id")
	} else if !strings.Contains(err.Error(), "avatar_id") {
		t.Fatalf("error should name the missing field, got %v", err)
	}
}

func TestCreateAvatarAPIError(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.responses["/api/v1/avatar"] = responseStub{
		status: http.StatusUnauthorized,
		body:   []byte(`{"error":{"code":"auth","message":"invalid jwt_token"}}`),
	}

	_, err := client.CreateAvatar(context.Background(), []byte{0x01}, "image/png")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Body != "invalid jwt_token" {
		t.Fatalf("body = %q, want parsed provider message", apiErr.Body)
	}
}

func TestCreateVideoPayload(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.setJSONResponse("/api/v1/video", map[string]any{
		"data": map[string]any{"video_id": "vid_456"},
	})

	videoID, err := client.CreateVideo(context.Background(), "avt_123", []byte{0xaa, 0xbb}, "audio/mp3", DefaultVideoOptions())
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
	if videoID != "vid_456" {
		t.Fatalf("video id = %q, want vid_456", videoID)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["model_id"] != "vs_talk_v1" {
		t.Fatalf("model_id = %v, want vs_talk_v1", payload["model_id"])
	}
	if payload["avatar_id"] != "avt_123" {
		t.Fatalf("avatar_id = %v, want avt_123", payload["avatar_id"])
	}
	if payload["emotion"] != "news" || payload["aspect_ratio"] != "9:16" || payload["resolution"] != "720p" {
		t.Fatalf("generation options not passed through: %v", payload)
	}
	script := payload["audio_script"].(map[string]any)
	if script["voice_change"] != true || script["denoise"] != true {
		t.Fatalf("audio script flags not passed through: %v", script)
	}
	inline := script["inline_data"].(map[string]any)
	if inline["mime_type"] != "audio/mp3" {
		t.Fatalf("audio mime_type = %v, want audio/mp3", inline["mime_type"])
	}
}

func TestGetVideoStatus(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.setJSONResponse("https://openapi.visionstory.ai/api/v1/video?video_id=vid_456", map[string]any{
		"data": map[string]any{"status": "created", "video_url": "https://cdn.example.com/vid_456.mp4"},
	})

	status, err := client.GetVideoStatus(context.Background(), "vid_456")
	if err != nil {
		t.Fatalf("get video status: %v", err)
	}
	if status.Status != VideoStatusCreated {
		t.Fatalf("status = %q, want created", status.Status)
	}
	if status.VideoURL != "https://cdn.example.com/vid_456.mp4" {
		t.Fatalf("video url = %q", status.VideoURL)
	}
	if status.VideoID != "vid_456" {
		t.Fatalf("video id = %q, want vid_456", status.VideoID)
	}
}

func TestGetVideoStatusTransportFailure(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.responses["https://openapi.visionstory.ai/api/v1/video?video_id=vid_456"] = responseStub{
		status: http.StatusBadGateway,
		body:   []byte("upstream unavailable"),
	}

	_, err := client.GetVideoStatus(context.Background(), "vid_456")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", apiErr.StatusCode)
	}
}

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type captureTransport struct {
	responses   map[string]responseStub
	lastBody    []byte
	lastRequest *http.Request
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastRequest = req
	if req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
		if stub, ok := c.responses[req.URL.Path]; ok {
			return stub.toResponse(), nil
		}
	}
	if req.Method == http.MethodGet {
		if stub, ok := c.responses[req.URL.String()]; ok {
			return stub.toResponse(), nil
		}
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(path string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}
