// Package video wraps the external frame-interpolation provider. Its API is
// asynchronous: a submitted task is polled until the rendered clip is ready.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"keyframe/server/internal/infra"
	"keyframe/server/internal/providers"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// Task states reported by the interpolation API.
const (
	TaskStatusQueued    = "queued"
	TaskStatusRunning   = "running"
	TaskStatusSucceeded = "succeeded"
	TaskStatusFailed    = "failed"
)

// Options configures the interpolation client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the frame-interpolation API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Request captures the inputs for one interpolation task.
type Request struct {
	FirstFrameURL   string
	LastFrameURL    string
	Motion          string
	Camera          string
	DurationSeconds int
	AspectRatio     string
	Quality         string
	RequestID       string
}

// Task is the normalized state of a submitted interpolation task.
type Task struct {
	ID       string
	Status   string
	Progress int
	VideoURL string
}

type submitRequest struct {
	Model           string `json:"model"`
	FirstFrameURL   string `json:"first_frame_url"`
	LastFrameURL    string `json:"last_frame_url"`
	Motion          string `json:"motion,omitempty"`
	Camera          string `json:"camera,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	Quality         string `json:"quality,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

type taskResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	VideoURL string `json:"video_url"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "interpolate-v2"
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
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit starts an interpolation task and returns its identifier.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	if !c.HasCredentials() {
		return "", providers.Fatal("video provider not configured", ErrMissingAPIKey)
	}
	if req.FirstFrameURL == "" || req.LastFrameURL == "" {
		return "", providers.Fatal("both keyframe urls are required", nil)
	}

	payload := submitRequest{
		Model:           c.model,
		FirstFrameURL:   req.FirstFrameURL,
		LastFrameURL:    req.LastFrameURL,
		Motion:          req.Motion,
		Camera:          req.Camera,
		DurationSeconds: req.DurationSeconds,
		AspectRatio:     req.AspectRatio,
		Quality:         req.Quality,
		RequestID:       req.RequestID,
	}
	resp, err := c.do(ctx, http.MethodPost, "/interpolations", payload)
	if err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", providers.Transient("video interpolation returned no task id", nil)
	}
	c.logger.Debug().Str("request_id", req.RequestID).Str("task_id", resp.TaskID).Msg("interpolation task submitted")
	return resp.TaskID, nil
}

// Poll fetches the current state of a submitted task.
func (c *Client) Poll(ctx context.Context, taskID string) (*Task, error) {
	resp, err := c.do(ctx, http.MethodGet, "/interpolations/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	return &Task{
		ID:       resp.TaskID,
		Status:   strings.ToLower(resp.Status),
		Progress: resp.Progress,
		VideoURL: resp.VideoURL,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*taskResponse, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("video: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("video: build request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.ClassifyTransport("video interpolation", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.Transient("video interpolation response unreadable", err)
	}
	if resp.StatusCode >= 300 {
		return nil, providers.ClassifyStatus("video interpolation", resp.StatusCode, raw)
	}

	var decoded taskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, providers.Transient("video interpolation returned malformed payload", err)
	}
	if decoded.Code != "" {
		return nil, providers.Fatal(fmt.Sprintf("video interpolation rejected request (%s)", decoded.Code),
			errors.New(decoded.Message))
	}
	return &decoded, nil
}
