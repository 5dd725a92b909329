package orcherr

import (
	"errors"
	"fmt"
)

// Codes surfaced to API clients.
const (
	CodeBadRequest              = "bad_request"
	CodeNotFound                = "not_found"
	CodeProviderError           = "provider_error"
	CodeVersionResolutionFailed = "version_resolution_failed"
	CodeInvalidWindowDuration   = "invalid_window_duration"
)

// OpsOrchError provides a typed error that can be surfaced to API clients without leaking provider-specific details.
type OpsOrchError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e OpsOrchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e OpsOrchError) Unwrap() error {
	return e.Err
}

// New constructs a new typed OpsOrchError.
func New(code, message string, err error) OpsOrchError {
	return OpsOrchError{Code: code, Message: message, Err: err}
}

// VersionResolution wraps a failed default-version lookup. The collaborator's error stays reachable via errors.Is/As.
func VersionResolution(err error) OpsOrchError {
	return New(CodeVersionResolutionFailed, "resolve default versions", err)
}

// InvalidWindowDuration reports a non-positive window slide.
func InvalidWindowDuration(millis int64) OpsOrchError {
	return New(CodeInvalidWindowDuration, fmt.Sprintf("window duration must be positive, got %dms", millis), nil)
}

// WindowOutOfRange reports a slide whose window would start before the earliest representable instant.
func WindowOutOfRange(endMillis, millis int64) OpsOrchError {
	return New(CodeInvalidWindowDuration, fmt.Sprintf("window of %dms ending at %d starts before the earliest representable time", millis, endMillis), nil)
}

// BadRequest reports caller input that can never succeed.
func BadRequest(message string) OpsOrchError {
	return New(CodeBadRequest, message, nil)
}

// As extracts an OpsOrchError from an error chain, whether it was wrapped by value or by pointer.
func As(err error) (OpsOrchError, bool) {
	var oe OpsOrchError
	if errors.As(err, &oe) {
		return oe, true
	}
	var oePtr *OpsOrchError
	if errors.As(err, &oePtr) && oePtr != nil {
		return *oePtr, true
	}
	return OpsOrchError{}, false
}

// HasCode reports whether err carries an OpsOrchError with the given code.
func HasCode(err error, code string) bool {
	oe, ok := As(err)
	return ok && oe.Code == code
}
