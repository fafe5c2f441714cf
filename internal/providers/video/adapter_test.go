package video

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyframe/server/internal/providers"
)

// scriptedClient hands Poll one response per call, in order.
type scriptedClient struct {
	mu      sync.Mutex
	submits []Request
	polls   []pollStep
	next    int
}

type pollStep struct {
	task *Task
	err  error
}

func (c *scriptedClient) Submit(_ context.Context, req Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits = append(c.submits, req)
	return "task-1", nil
}

func (c *scriptedClient) Poll(_ context.Context, taskID string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.polls) {
		return &Task{ID: taskID, Status: TaskStatusRunning}, nil
	}
	step := c.polls[c.next]
	c.next++
	return step.task, step.err
}

func params() providers.Params {
	return providers.Params{
		FirstFrameURL:   "https://cdn.test/a.png",
		LastFrameURL:    "https://cdn.test/b.png",
		DurationSeconds: 5,
		RequestID:       "job-1",
		Phase:           "video",
	}
}

func TestInvokePollsUntilSucceeded(t *testing.T) {
	client := &scriptedClient{polls: []pollStep{
		{task: &Task{ID: "task-1", Status: TaskStatusQueued}},
		{task: &Task{ID: "task-1", Status: TaskStatusRunning, Progress: 40}},
		{task: &Task{ID: "task-1", Status: TaskStatusRunning, Progress: 90}},
		{task: &Task{ID: "task-1", Status: TaskStatusSucceeded, Progress: 100, VideoURL: "https://cdn.test/out.mp4"}},
	}}
	adapter := NewAdapter(client, time.Second, time.Millisecond)

	var reported []int
	url, err := adapter.InvokeWithProgress(context.Background(), params(), func(pct int) {
		reported = append(reported, pct)
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/out.mp4", url)
	assert.Equal(t, []int{40, 90, 100}, reported)

	require.Len(t, client.submits, 1)
	assert.Equal(t, "https://cdn.test/a.png", client.submits[0].FirstFrameURL)
	assert.Equal(t, "https://cdn.test/b.png", client.submits[0].LastFrameURL)
}

func TestInvokeToleratesPollHiccups(t *testing.T) {
	client := &scriptedClient{polls: []pollStep{
		{err: providers.Transient("blip", nil)},
		{task: &Task{ID: "task-1", Status: TaskStatusSucceeded, VideoURL: "https://cdn.test/out.mp4"}},
	}}
	adapter := NewAdapter(client, time.Second, time.Millisecond)

	url, err := adapter.Invoke(context.Background(), params())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/out.mp4", url)
}

func TestInvokeStopsOnFatalPollError(t *testing.T) {
	client := &scriptedClient{polls: []pollStep{
		{err: providers.Fatal("task not found", nil)},
	}}
	adapter := NewAdapter(client, time.Second, time.Millisecond)

	_, err := adapter.Invoke(context.Background(), params())
	pe := providers.Classify(err)
	require.NotNil(t, pe)
	assert.Equal(t, providers.KindFatal, pe.Kind)
}

func TestInvokeFailsWhenTaskFails(t *testing.T) {
	client := &scriptedClient{polls: []pollStep{
		{task: &Task{ID: "task-1", Status: TaskStatusFailed}},
	}}
	adapter := NewAdapter(client, time.Second, time.Millisecond)

	_, err := adapter.Invoke(context.Background(), params())
	pe := providers.Classify(err)
	require.NotNil(t, pe)
	assert.Equal(t, providers.KindFatal, pe.Kind)
	assert.False(t, pe.Retryable())
}

func TestInvokeTimesOut(t *testing.T) {
	// No scripted steps: the task stays running forever.
	client := &scriptedClient{}
	adapter := NewAdapter(client, 30*time.Millisecond, time.Millisecond)

	_, err := adapter.Invoke(context.Background(), params())
	pe := providers.Classify(err)
	require.NotNil(t, pe)
	assert.Equal(t, providers.KindTimeout, pe.Kind)
}

func TestSucceededWithoutURLIsTransient(t *testing.T) {
	client := &scriptedClient{polls: []pollStep{
		{task: &Task{ID: "task-1", Status: TaskStatusSucceeded}},
	}}
	adapter := NewAdapter(client, time.Second, time.Millisecond)

	_, err := adapter.Invoke(context.Background(), params())
	assert.True(t, providers.IsRetryable(err))
}
