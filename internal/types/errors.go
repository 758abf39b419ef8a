package types

import (
	"errors"
	"fmt"
)

// ErrKind classifies a failure for the retry policy and for reporting.
type ErrKind string

const (
	// KindValidation marks bad or insufficient input data. Local, never
	// retried.
	KindValidation ErrKind = "VALIDATION"
	// KindTransient marks timeouts, connection resets, 429s and 5xx
	// responses. Retried with backoff.
	KindTransient ErrKind = "TRANSIENT"
	// KindPermanent marks auth failures, malformed requests and other
	// non-429 4xx responses. Surfaced without retry.
	KindPermanent ErrKind = "PERMANENT"
	// KindMalformed marks AI output that fails the schema or bounds check.
	// A logic failure, not transport, so never retried.
	KindMalformed ErrKind = "MALFORMED_RESPONSE"
	// KindCycleFault marks a screening/data-feed failure that prevents the
	// cycle from obtaining any symbol list. Aborts the whole cycle.
	KindCycleFault ErrKind = "CYCLE_FAULT"
)

// ServiceError carries the classification plus enough context (service,
// pipeline stage, attempts) to diagnose a failure without credentials.
type ServiceError struct {
	Kind    ErrKind
	Service string
	Stage   string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s/%s: %v", e.Kind, e.Service, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError wraps err with a kind and the service it came from.
func NewServiceError(kind ErrKind, service string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Service: service, Err: err}
}

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *ServiceError {
	return &ServiceError{Kind: KindValidation, Service: "local", Err: fmt.Errorf(format, args...)}
}

// Malformedf builds a KindMalformed error.
func Malformedf(format string, args ...any) *ServiceError {
	return &ServiceError{Kind: KindMalformed, Service: "completion", Err: fmt.Errorf(format, args...)}
}

// ErrInsufficientHistory is returned by the indicator engine when the price
// series is shorter than the longest lookback.
var ErrInsufficientHistory = errors.New("insufficient price history")

// ErrConditionNotFound is returned by the data feed when the screening
// condition name is unknown.
var ErrConditionNotFound = errors.New("screening condition not found")

// KindOf extracts the classification from err, defaulting to KindPermanent
// for unclassified errors so that unknown failures are never retried blindly.
func KindOf(err error) ErrKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindPermanent
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// KindFromStatus maps an HTTP status code to an error kind.
func KindFromStatus(status int) ErrKind {
	switch {
	case status == 429:
		return KindTransient
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindPermanent
	default:
		return KindPermanent
	}
}
