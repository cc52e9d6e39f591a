package integration

import (
	"errors"
	"fmt"
	"net/http"
)

// FailureKind classifies a platform failure by how the caller should react
type FailureKind string

const (
	// FailureTransient covers network errors, 5xx and 429 responses. Retry later.
	FailureTransient FailureKind = "transient"
	// FailureAuth means the credential is invalid or expired. Do not retry;
	// someone has to refresh the credential first.
	FailureAuth FailureKind = "auth"
	// FailurePermanent covers malformed requests and unsupported fields. Never retried.
	FailurePermanent FailureKind = "permanent"
)

// PlatformError is the error type returned by every platform adapter
type PlatformError struct {
	Kind       FailureKind
	Platform   PlatformCode
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

// Error implements error
func (e *PlatformError) Error() string {
	msg := fmt.Sprintf("integration: %s %s failed (%s)", e.Platform, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" http=%d", e.StatusCode)
	}
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *PlatformError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retryable platform failure
func NewTransientError(platform PlatformCode, op string, err error) *PlatformError {
	return &PlatformError{Kind: FailureTransient, Platform: platform, Op: op, Err: err}
}

// NewAuthError wraps err as a credential failure
func NewAuthError(platform PlatformCode, op string, err error) *PlatformError {
	return &PlatformError{Kind: FailureAuth, Platform: platform, Op: op, Err: err}
}

// NewPermanentError wraps err as a non-retryable platform failure
func NewPermanentError(platform PlatformCode, op string, err error) *PlatformError {
	return &PlatformError{Kind: FailurePermanent, Platform: platform, Op: op, Err: err}
}

// ClassifyHTTPStatus maps an HTTP status code to a failure kind.
// It must only be called for non-2xx responses.
func ClassifyHTTPStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return FailureTransient
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return FailureAuth
	default:
		return FailurePermanent
	}
}

// KindOf returns the failure kind of err. Errors that are not platform errors
// are treated as transient, since they usually come from the transport.
func KindOf(err error) FailureKind {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrPlatformAuthFailed), errors.Is(err, ErrCredentialNotFound), errors.Is(err, ErrCredentialExpired):
		return FailureAuth
	case errors.Is(err, ErrPlatformInvalidResponse):
		return FailurePermanent
	}
	return FailureTransient
}

// IsTransient reports whether err may succeed when retried
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == FailureTransient
}

// IsAuthFailure reports whether err requires a credential refresh
func IsAuthFailure(err error) bool {
	return err != nil && KindOf(err) == FailureAuth
}

// IsPermanent reports whether err will fail again no matter how often it is retried
func IsPermanent(err error) bool {
	return err != nil && KindOf(err) == FailurePermanent
}
