// Package apperr is the error taxonomy shared by every stage of the
// extraction pipeline. Each failure carries a stable Code and the HTTP status
// the API answers with.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code is a closed set of failure kinds.
type Code string

const (
	CodeInvalidSourceType     Code = "invalid_source_type"
	CodeInvalidCredentials    Code = "invalid_credentials"
	CodeIncompleteCredentials Code = "incomplete_credentials"
	CodeCredentialsFetchError Code = "credentials_fetch_error"
	CodeCredentialsNotFound   Code = "credentials_not_found"
	CodeMissingQuery          Code = "missing_query"
	CodeQueryResolution       Code = "query_resolution_failed"
	CodeTemplateNotFound      Code = "template_not_found"
	CodeTemplateLoadError     Code = "template_load_error"
	CodeShopifyAPIError       Code = "shopify_api_error"
	CodeEmptyResponse         Code = "empty_response"
	CodeTimeout               Code = "timeout"
	CodeSizeLimitExceeded     Code = "size_limit_exceeded"
	CodeAPIRequestError       Code = "api_request_error"
	CodeUnexpected            Code = "unexpected_error"
	CodeSourceNotFound        Code = "source_not_found"
	CodeExtractionNotFound    Code = "extraction_not_found"
	CodeInvalidTransition     Code = "invalid_transition"
	CodeInvalidRequest        Code = "invalid_request"
)

var defaultStatus = map[Code]int{
	CodeInvalidSourceType:     http.StatusBadRequest,
	CodeInvalidCredentials:    http.StatusBadRequest,
	CodeIncompleteCredentials: http.StatusBadRequest,
	CodeCredentialsFetchError: http.StatusInternalServerError,
	CodeCredentialsNotFound:   http.StatusNotFound,
	CodeMissingQuery:          http.StatusBadRequest,
	CodeQueryResolution:       http.StatusBadRequest,
	CodeTemplateNotFound:      http.StatusNotFound,
	CodeTemplateLoadError:     http.StatusInternalServerError,
	CodeShopifyAPIError:       http.StatusBadGateway,
	CodeEmptyResponse:         http.StatusInternalServerError,
	CodeTimeout:               http.StatusRequestTimeout,
	CodeSizeLimitExceeded:     http.StatusRequestEntityTooLarge,
	CodeAPIRequestError:       http.StatusInternalServerError,
	CodeUnexpected:            http.StatusInternalServerError,
	CodeSourceNotFound:        http.StatusNotFound,
	CodeExtractionNotFound:    http.StatusNotFound,
	CodeInvalidTransition:     http.StatusConflict,
	CodeInvalidRequest:        http.StatusBadRequest,
}

// Status returns the HTTP status normally paired with c.
func (c Code) Status() int {
	if s, ok := defaultStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a classified pipeline failure.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error with the code's default status.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Status: code.Status(), Message: msg}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches cause to a new Error.
func Wrap(code Code, msg string, cause error) *Error {
	e := New(code, msg)
	e.Err = cause
	return e
}

// WithStatus overrides the HTTP status.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithDetails attaches caller-visible diagnostic data.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, or the empty code when err is untyped.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// From classifies any error. Context expiry maps to timeout and everything
// untyped maps to unexpected_error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeTimeout, "Request timed out", err)
	}
	return Wrap(CodeUnexpected, "Unexpected error", err)
}

// IsRetryable reports whether err is a transient upstream condition:
// timeouts, transport failures and 5xx or 429 answers from Shopify.
func IsRetryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	switch e.Code {
	case CodeTimeout, CodeAPIRequestError:
		return true
	case CodeShopifyAPIError:
		return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}
