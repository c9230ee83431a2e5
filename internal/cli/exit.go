package cli

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/client"
)

// Exit codes for CLI commands.
const (
	ExitSuccess = 0 // Successful execution
	ExitFailure = 1 // Request failed (network, server, not found)
	ExitUsage   = 2 // Invalid arguments, configuration or checkout details
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitUsage)
	Message string // Message shown to the user
	Err     error  // Underlying error (optional)

	// Reported is set when the user has already been told about the
	// failure, e.g. by a cart notification.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// apiError converts a failed API call into an ExitError carrying the
// user-facing message for err.
func apiError(err error, reported bool) *ExitError {
	return &ExitError{Code: ExitFailure, Message: client.Message(err), Err: err, Reported: reported}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// UserMessage returns the text to print for err, and false when the user
// has already been notified.
func UserMessage(err error, verbose bool) (string, bool) {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return err.Error(), true
	}
	if exitErr.Reported && !verbose {
		return "", false
	}
	if verbose {
		return exitErr.Error(), true
	}
	return exitErr.Message, true
}
