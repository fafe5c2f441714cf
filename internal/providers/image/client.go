// Package image wraps the external still-image synthesis provider behind the
// uniform adapter contract.
package image

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
var ErrMissingAPIKey = errors.New("image: api key is required")

// Options configures the synthesis client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the image synthesis API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Request captures the inputs for one still image.
type Request struct {
	Prompt      string
	AspectRatio string
	Quality     string
	RequestID   string
}

// Asset is the normalized provider result. Either URL or Data is set.
type Asset struct {
	URL    string
	Data   []byte
	Format string
	Width  int
	Height int
}

type synthesisRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Quality     string `json:"quality,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

type synthesisResponse struct {
	Images []struct {
		URL    string `json:"url"`
		B64    string `json:"b64_json"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
	Format  string `json:"format"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "frame-diffusion-xl"
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

// Generate invokes the synthesis API once and returns a single image asset.
// Failures come back classified (timeout / transient / fatal) so the caller's
// retry policy never inspects HTTP details.
func (c *Client) Generate(ctx context.Context, req Request) (*Asset, error) {
	if !c.HasCredentials() {
		return nil, providers.Fatal("image provider not configured", ErrMissingAPIKey)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, providers.Fatal("image prompt is required", nil)
	}

	payload := synthesisRequest{
		Model:       c.model,
		Prompt:      prompt,
		AspectRatio: req.AspectRatio,
		Quality:     req.Quality,
		RequestID:   req.RequestID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("image: encode request: %w", err)
	}

	endpoint := c.baseURL + "/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("image: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.ClassifyTransport("image synthesis", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.Transient("image synthesis response unreadable", err)
	}
	if resp.StatusCode >= 300 {
		return nil, providers.ClassifyStatus("image synthesis", resp.StatusCode, raw)
	}

	var decoded synthesisResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, providers.Transient("image synthesis returned malformed payload", err)
	}
	if decoded.Code != "" {
		return nil, providers.Fatal(fmt.Sprintf("image synthesis rejected request (%s)", decoded.Code),
			errors.New(decoded.Message))
	}
	if len(decoded.Images) == 0 {
		return nil, providers.Transient("image synthesis returned no images", nil)
	}

	img := decoded.Images[0]
	asset := &Asset{URL: img.URL, Format: normalizeFormat(decoded.Format), Width: img.Width, Height: img.Height}
	if img.B64 != "" {
		data, err := decodeBase64(img.B64)
		if err != nil {
			return nil, providers.Transient("image synthesis returned undecodable payload", err)
		}
		asset.Data = data
	}
	if asset.URL == "" && len(asset.Data) == 0 {
		return nil, providers.Transient("image synthesis returned an empty asset", nil)
	}
	c.logger.Debug().Str("request_id", req.RequestID).Str("format", asset.Format).
		Bool("inline", len(asset.Data) > 0).Msg("image synthesized")
	return asset, nil
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "jpg", "jpeg":
		return "jpeg"
	case "", "png":
		return "png"
	default:
		return format
	}
}
