package schedule

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamHTTPError reports a non-success status from the timetable provider.
type UpstreamHTTPError struct {
	Status int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.Status)
}

// UpstreamTransportError wraps timeouts, DNS and connection failures.
type UpstreamTransportError struct {
	Err error
}

func (e *UpstreamTransportError) Error() string {
	return "upstream transport failure: " + e.Err.Error()
}

func (e *UpstreamTransportError) Unwrap() error {
	return e.Err
}

// CacheError reports a failure of the remote cache layer.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return "remote cache " + e.Op + ": " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// retryable reports whether a failed first fetch deserves its single retry.
func retryable(err error) bool {
	var transportErr *UpstreamTransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var httpErr *UpstreamHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= http.StatusInternalServerError || httpErr.Status == http.StatusTooManyRequests
	}
	return false
}
