package client

import (
	"fmt"
	"net/http"
	"syscall"

	"github.com/go-faster/errors"
)

// ErrTimeout is returned when a request does not complete within the
// client timeout.
var ErrTimeout = errors.New("request timed out")

// StatusError is returned when the API answers with a failing HTTP status or
// an unsuccessful envelope.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// NetworkError is returned when no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.StatusCode
	}
	return 0
}

// Message returns a short, human-readable description of err suitable for
// showing to a shopper.
func Message(err error) string {
	var (
		sErr *StatusError
		nErr *NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "Request timed out. Please try again."
	case errors.As(err, &nErr):
		if errors.Is(nErr.Err, syscall.ECONNREFUSED) {
			return "Unable to reach server. Please try again later."
		}
		return "Failed to establish network connection."
	case errors.As(err, &sErr):
		switch {
		case sErr.StatusCode >= http.StatusInternalServerError:
			return "Server Error, try again later!"
		case sErr.StatusCode == http.StatusNotFound:
			return "Resource not found."
		case sErr.Message != "":
			return sErr.Message
		}
		return http.StatusText(sErr.StatusCode)
	default:
		return err.Error()
	}
}
