package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyWrapsKnownErrors(t *testing.T) {
	orig := Transient("upstream overloaded", nil)
	wrapped := errors.Join(errors.New("call image provider"), orig)
	assert.Same(t, orig, Classify(wrapped), "classified errors pass through unchanged")

	assert.Equal(t, KindTimeout, Classify(context.DeadlineExceeded).Kind)
	assert.Equal(t, KindCanceled, Classify(context.Canceled).Kind)
	assert.Equal(t, KindFatal, Classify(errors.New("who knows")).Kind)
	assert.Nil(t, Classify(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Timeout("t", nil).Retryable())
	assert.True(t, Transient("t", nil).Retryable())
	assert.False(t, Fatal("f", nil).Retryable())
	assert.False(t, Canceled(nil).Retryable())

	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(nil))
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusTooManyRequests, KindTransient},
		{http.StatusRequestTimeout, KindTransient},
		{http.StatusBadGateway, KindTransient},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusUnauthorized, KindFatal},
		{http.StatusForbidden, KindFatal},
		{http.StatusBadRequest, KindFatal},
		{http.StatusUnprocessableEntity, KindFatal},
	}
	for _, tc := range cases {
		got := ClassifyStatus("generate image", tc.status, []byte("detail"))
		assert.Equal(t, tc.want, got.Kind, "status %d", tc.status)
	}
}

func TestClassifyTransport(t *testing.T) {
	assert.Equal(t, KindTimeout, ClassifyTransport("submit task", context.DeadlineExceeded).Kind)
	assert.Equal(t, KindCanceled, ClassifyTransport("submit task", context.Canceled).Kind)
	assert.Equal(t, KindTransient, ClassifyTransport("submit task", errors.New("connection refused")).Kind)
}
