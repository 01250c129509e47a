package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindTimeout      ErrorKind = "timeout"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindServer       ErrorKind = "server"
	KindCancelled    ErrorKind = "cancelled"
	KindUnknown      ErrorKind = "unknown"
)

// APIError is a classified provider failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s error %d: %s", e.Kind, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// KindFromStatus maps an HTTP status code to an ErrorKind.
// Unrecognised statuses count as server errors.
func KindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindServer
	}
}

// KindOf returns the kind of err. Context errors are recognised even when
// they are not wrapped in an *APIError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindUnknown
	}
}

// IsCancelled reports whether err only signals that the caller gave up.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

var userMessages = map[ErrorKind]string{
	KindNetwork:      "Network request failed, please check your connection",
	KindTimeout:      "The weather service timed out, please try again later",
	KindRateLimited:  "Too many requests to the weather service, please wait a moment",
	KindUnauthorized: "The weather service API key is missing or invalid",
	KindNotFound:     "Location not found",
	KindServer:       "The weather service is unavailable, please try again later",
}

// UserMessage renders err as the human-readable string shown to the user.
func UserMessage(err error) string {
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return "Failed to load weather data, please try again later"
}
