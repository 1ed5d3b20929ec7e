package videogen

import (
	"fmt"
	"time"
)

// ConfigError indicates a request/config combination the chosen provider
// does not support (unmapped aspect ratio, malformed image spec). It is
// surfaced before any network call and is never retried.
type ConfigError struct {
	Provider Provider
	Detail   string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return "invalid configuration: " + e.Detail
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.Provider, e.Detail)
}

// AuthError indicates missing or rejected provider credentials. It is
// raised at adapter construction when credentials are absent, or at call
// time when the provider rejects them.
type AuthError struct {
	Provider Provider
	Detail   string
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("authentication failed for %s", e.Provider)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// NotFoundError indicates the provider no longer recognizes a
// previously-issued video ID.
type NotFoundError struct {
	Provider Provider
	VideoID  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("video not found: %s (provider: %s)", e.VideoID, e.Provider)
}

// RequestError is a generic non-2xx or transport failure, carrying the
// provider HTTP status code and detail where available.
type RequestError struct {
	Provider   Provider
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("video generation request failed for %s", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// TimeoutError is returned only by the blocking WaitForCompletion path
// when a video does not reach a terminal state within the timeout.
type TimeoutError struct {
	Provider Provider
	VideoID  string
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("video generation timed out after %s: %s (provider: %s)",
		e.Elapsed, e.VideoID, e.Provider)
}
