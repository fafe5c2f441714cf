package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ClassifyTransport maps an http.Client transport error onto the retry
// taxonomy. Deadline expiry is a timeout, caller cancellation stays
// distinguishable, and everything else on the wire is worth retrying.
func ClassifyTransport(op string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout(op+" timed out", err)
	case errors.Is(err, context.Canceled):
		return Canceled(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(op+" timed out", err)
	}
	return Transient(op+" unreachable", err)
}

// ClassifyStatus maps a non-2xx provider response onto the retry taxonomy:
// throttling and server-side failures are transient, the rest is a rejected
// input and retrying cannot help.
func ClassifyStatus(op string, status int, body []byte) *Error {
	detail := errors.New(strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return Transient(fmt.Sprintf("%s throttled (status %d)", op, status), detail)
	case status >= 500:
		return Transient(fmt.Sprintf("%s failed (status %d)", op, status), detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Fatal(op+" authentication failed", detail)
	default:
		return Fatal(fmt.Sprintf("%s rejected the request (status %d)", op, status), detail)
	}
}
