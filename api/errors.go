package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Application error codes. These map both directions: remote status
// codes are folded into a code, and codes carry through the save report.
const (
	ECONFLICT     = "conflict"
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	EUNAUTHORIZED = "unauthorized"
	ETHROTTLED    = "throttled"
	EINTERNAL     = "internal"
)

// Error is an application error with a machine-readable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func Errorf(code string, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the code of the root error, if available;
// EINTERNAL otherwise.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// CodeFromStatus maps an HTTP status code from the remote service to an
// application error code.
func CodeFromStatus(status int) string {
	switch status {
	case http.StatusConflict:
		return ECONFLICT
	case http.StatusBadRequest:
		return EINVALID
	case http.StatusNotFound:
		return ENOTFOUND
	case http.StatusUnauthorized, http.StatusForbidden:
		return EUNAUTHORIZED
	case http.StatusTooManyRequests:
		return ETHROTTLED
	default:
		return EINTERNAL
	}
}

// HTTPError is the error body the remote service returns on non-2xx
// responses.
type HTTPError struct {
	Err     string `json:"error"`
	Message string `json:"message,omitempty"`

	// Data for machine-machine communication.
	// usually contains a JSON data.
	Data string `json:"data,omitempty"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("error=%s message=%s data=%s ", e.Err, e.Message, e.Data)
}

func HTTPErrorFromErr(err error) *HTTPError {
	var e *HTTPError
	if errors.As(err, &e) {
		return e
	}

	return nil
}
