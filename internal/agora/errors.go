package agora

import "fmt"

// errorMessages maps cloud recording error codes to human-readable messages.
var errorMessages = map[int]string{
	2:    "Invalid parameter",
	7:    "Recording already running",
	8:    "HTTP request header error",
	49:   "Repeated stop request",
	53:   "Recording already running (different resource)",
	62:   "Cloud recording not enabled",
	65:   "Network jitter - retry recommended",
	109:  "Token expired",
	110:  "Token invalid",
	432:  "Parameter mismatch",
	433:  "Resource ID expired",
	435:  "No recorded files created",
	501:  "Recording service exiting",
	1001: "Failed to parse resource ID",
	1003: "App ID or recording ID mismatch",
	1013: "Invalid channel name",
}

// ErrorMessage returns the catalogue message for a provider error code,
// falling back to a generic message carrying the raw code.
func ErrorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown provider error (code %d)", code)
}

// APIError is a provider rejection, surfaced verbatim to the caller.
// Calls are single-shot: even the jitter class (65) is reported, not retried.
type APIError struct {
	Code       int
	HTTPStatus int
	Reason     string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("agora: %s (code %d): %s", ErrorMessage(e.Code), e.Code, e.Reason)
	}
	return fmt.Sprintf("agora: %s (code %d)", ErrorMessage(e.Code), e.Code)
}

// Message returns the catalogue message for the error, preferring the
// provider-supplied reason for unmapped codes.
func (e *APIError) Message() string {
	if _, ok := errorMessages[e.Code]; !ok && e.Reason != "" {
		return e.Reason
	}
	return ErrorMessage(e.Code)
}
