package fetch

import "fmt"

// NetworkError wraps a connection-level failure (dial, reset, timeout).
// The fetcher retries these before giving up.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch: network error for %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for a non-2xx response. 5xx responses are
// retried first; 4xx fail immediately.
type HTTPStatusError struct {
	Endpoint string
	Status   int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch: %s returned HTTP %d", e.Endpoint, e.Status)
}

// DecodeError is returned when a response body is not valid JSON or does
// not have the expected shape.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("fetch: cannot decode response from %s: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
