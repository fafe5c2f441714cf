package video

import (
	"context"
	"errors"
	"time"

	"keyframe/server/internal/providers"
)

type taskClient interface {
	Submit(ctx context.Context, req Request) (string, error)
	Poll(ctx context.Context, taskID string) (*Task, error)
}

// Adapter exposes the interpolation client through the uniform provider
// contract, hiding the submit-then-poll shape behind one blocking call.
type Adapter struct {
	client     taskClient
	timeout    time.Duration
	pollPeriod time.Duration
}

// NewAdapter wires an interpolation client. timeout bounds the whole task
// (video synthesis is the slowest phase and gets a generous budget);
// pollPeriod controls how often the task is refreshed.
func NewAdapter(client taskClient, timeout, pollPeriod time.Duration) *Adapter {
	if pollPeriod <= 0 {
		pollPeriod = 5 * time.Second
	}
	return &Adapter{client: client, timeout: timeout, pollPeriod: pollPeriod}
}

// Invoke fulfils providers.Adapter.
func (a *Adapter) Invoke(ctx context.Context, p providers.Params) (string, error) {
	return a.InvokeWithProgress(ctx, p, nil)
}

// InvokeWithProgress fulfils providers.ProgressAdapter: it forwards the
// provider's own progress readings to onProgress as the task is polled.
func (a *Adapter) InvokeWithProgress(ctx context.Context, p providers.Params, onProgress func(pct int)) (string, error) {
	if _, ok := ctx.Deadline(); !ok && a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	taskID, err := a.client.Submit(ctx, Request{
		FirstFrameURL:   p.FirstFrameURL,
		LastFrameURL:    p.LastFrameURL,
		Motion:          p.Motion,
		Camera:          p.Camera,
		DurationSeconds: p.DurationSeconds,
		AspectRatio:     p.AspectRatio,
		Quality:         p.Quality,
		RequestID:       p.RequestID,
	})
	if err != nil {
		return "", err
	}

	ticker := time.NewTicker(a.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", providers.Classify(ctx.Err())
		case <-ticker.C:
		}

		task, err := a.client.Poll(ctx, taskID)
		if err != nil {
			// Polling hiccups are tolerated; the task keeps rendering
			// server-side and the next tick retries the read.
			if providers.IsRetryable(err) {
				continue
			}
			return "", err
		}

		if onProgress != nil && task.Progress > 0 {
			onProgress(task.Progress)
		}

		switch task.Status {
		case TaskStatusSucceeded:
			if task.VideoURL == "" {
				return "", providers.Transient("video interpolation finished without a clip url", nil)
			}
			return task.VideoURL, nil
		case TaskStatusFailed:
			return "", providers.Fatal("video interpolation failed", errors.New("provider reported task failure"))
		}
	}
}

var (
	_ providers.Adapter         = (*Adapter)(nil)
	_ providers.ProgressAdapter = (*Adapter)(nil)
)
