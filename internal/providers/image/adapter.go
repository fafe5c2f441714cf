package image

import (
	"context"
	"fmt"
	"strings"
	"time"

	"keyframe/server/internal/providers"
)

type generateClient interface {
	Generate(ctx context.Context, req Request) (*Asset, error)
}

// ArtifactWriter persists raw provider payloads and returns the canonical
// storage key. Satisfied by storage.FileStore.
type ArtifactWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Adapter exposes the synthesis client through the uniform provider contract.
// When the provider answers with inline bytes instead of a hosted URL, the
// payload is written to the artifact store and the minted URL is returned.
type Adapter struct {
	client  generateClient
	store   ArtifactWriter
	baseURL string
	timeout time.Duration
}

// NewAdapter wires a synthesis client with the artifact store used to host
// inline payloads.
func NewAdapter(client generateClient, store ArtifactWriter, publicBaseURL string, timeout time.Duration) *Adapter {
	return &Adapter{
		client:  client,
		store:   store,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		timeout: timeout,
	}
}

// Invoke fulfils providers.Adapter. A default timeout applies only when the
// caller did not bring its own deadline.
func (a *Adapter) Invoke(ctx context.Context, p providers.Params) (string, error) {
	if _, ok := ctx.Deadline(); !ok && a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	asset, err := a.client.Generate(ctx, Request{
		Prompt:      p.Prompt,
		AspectRatio: p.AspectRatio,
		Quality:     p.Quality,
		RequestID:   p.RequestID,
	})
	if err != nil {
		return "", err
	}

	if len(asset.Data) == 0 {
		return asset.URL, nil
	}
	key := fmt.Sprintf("jobs/%s/%s.%s", p.RequestID, p.Phase, extension(asset.Format))
	stored, err := a.store.Write(ctx, key, asset.Data)
	if err != nil {
		return "", fmt.Errorf("image: persist artifact: %w", err)
	}
	return a.baseURL + "/" + stored, nil
}

func extension(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	case "":
		return "png"
	default:
		return format
	}
}

var _ providers.Adapter = (*Adapter)(nil)
