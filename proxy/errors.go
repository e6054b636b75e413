package proxy

import (
	"errors"
	"fmt"
	"strings"
)

// statusCoder is implemented by every fault that maps to a specific http
// status in the error envelope.
type statusCoder interface {
	StatusCode() int
}

// SpecInvalidError indicates the middleware was constructed with a missing or
// unusable spec document. It is raised at construction time, before any
// traffic is accepted.
type SpecInvalidError struct {
	Reason string
}

func (e *SpecInvalidError) Error() string {
	return fmt.Sprintf("invalid api spec: %s", e.Reason)
}

// PathNotFoundError indicates no operation in the spec document matched the
// requested method and path.
type PathNotFoundError struct {
	Method string
	Path   string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("no operation found for '%s %s'", e.Method, e.Path)
}

// StatusCode returns 400.
func (e *PathNotFoundError) StatusCode() int {
	return 400
}

// Violation describes a single schema violation found while validating a
// request or response payload.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Reason
	}

	return fmt.Sprintf("%s: %s", v.Field, v.Reason)
}

// RequestValidationError indicates the inbound request violated the
// operation's request schema. The handler is never invoked.
type RequestValidationError struct {
	Violations []Violation
}

func (e *RequestValidationError) Error() string {
	details := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		details[i] = v.String()
	}

	return fmt.Sprintf("request validation failed: %s", strings.Join(details, "; "))
}

// StatusCode returns 400.
func (e *RequestValidationError) StatusCode() int {
	return 400
}

// ResponseValidationError indicates the handler's response violated the
// operation's response schema. This is a server side contract violation and
// is never silently downgraded.
type ResponseValidationError struct {
	Status     int
	Violations []Violation
}

func (e *ResponseValidationError) Error() string {
	details := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		details[i] = v.String()
	}

	return fmt.Sprintf("response validation failed: %s", strings.Join(details, "; "))
}

// StatusCode returns the non success status the handler declared, or 500
// when the failing response carried a success status.
func (e *ResponseValidationError) StatusCode() int {
	if e.Status < 300 {
		return 500
	}

	return e.Status
}

// HandlerError indicates the handler declared a non-success status code and
// no error transformer was configured to shape the response.
type HandlerError struct {
	Status  int
	Message string
}

func (e *HandlerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}

	return e.Message
}

// StatusCode returns the status the handler declared, or 500 when it did not
// declare one.
func (e *HandlerError) StatusCode() int {
	if e.Status == 0 {
		return 500
	}

	return e.Status
}

// EnvelopeContractError indicates the handler or a configured transformer
// produced a result missing a required envelope field.
type EnvelopeContractError struct {
	Missing string
}

func (e *EnvelopeContractError) Error() string {
	return fmt.Sprintf("response envelope is missing required field '%s'", e.Missing)
}

// StatusCode returns 500.
func (e *EnvelopeContractError) StatusCode() int {
	return 500
}

// statusOf extracts the http status a fault maps to, unwrapping as needed.
// Faults that declare no status map to 500.
func statusOf(err error) int {
	for err != nil {
		if sc, ok := err.(statusCoder); ok {
			return sc.StatusCode()
		}
		err = errors.Unwrap(err)
	}

	return 500
}
