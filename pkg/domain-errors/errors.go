// Package domainerrors carries the trust engine's error taxonomy.
//
// Every error that leaves a service carries a Code (what went wrong), a
// Severity (how loud the forensic trail should be), an optional correlation
// identifier (the request that produced it) and an optional remediation hint.
// Once a pool is sealed these fields are the only trail left, so services
// attach them at the point of failure rather than in transport code.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies an error class. Codes are stable strings exposed over HTTP.
type Code string

const (
	// Validation taxonomy: malformed or out-of-domain input, rejected before
	// any state change.
	CodeValidation   Code = "validation_error"
	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"

	// Trust engine taxonomy.
	CodeIllegalStateTransition Code = "illegal_state_transition"
	CodeDuplicateEndorsement   Code = "duplicate_endorsement"
	CodeCryptographicFailure   Code = "cryptographic_failure"
	CodeConfigurationGap       Code = "configuration_gap"

	// Infrastructure and access.
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Severity ranks an error for log routing and alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var defaultSeverity = map[Code]Severity{
	CodeValidation:             SeverityInfo,
	CodeInvalidInput:           SeverityInfo,
	CodeBadRequest:             SeverityInfo,
	CodeNotFound:               SeverityInfo,
	CodeUnauthorized:           SeverityWarning,
	CodeForbidden:              SeverityWarning,
	CodeDuplicateEndorsement:   SeverityWarning,
	CodeConflict:               SeverityWarning,
	CodeIllegalStateTransition: SeverityError,
	CodeConfigurationGap:       SeverityError,
	CodeInvariantViolation:     SeverityError,
	CodeTimeout:                SeverityError,
	CodeUnavailable:            SeverityError,
	CodeInternal:               SeverityError,
	CodeCryptographicFailure:   SeverityCritical,
}

// DefaultSeverity returns the severity assigned to a code when none is set.
func (c Code) DefaultSeverity() Severity {
	if s, ok := defaultSeverity[c]; ok {
		return s
	}
	return SeverityError
}

// Error is the domain error type. Construct with New or Wrap.
type Error struct {
	Code          Code
	Message       string
	Severity      Severity
	CorrelationID string
	Remediation   string
	Err           error
}

// New creates a domain error with the code's default severity.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Severity: code.DefaultSeverity()}
}

// Newf is New with fmt-style formatting.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Severity: code.DefaultSeverity(), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCorrelation stamps the request correlation identifier.
func (e *Error) WithCorrelation(correlationID string) *Error {
	e.CorrelationID = correlationID
	return e
}

// WithRemediation attaches an operator-facing hint.
func (e *Error) WithRemediation(hint string) *Error {
	e.Remediation = hint
	return e
}

// WithSeverity overrides the default severity.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// As returns the first domain error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost domain error code, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// Correlate stamps correlationID onto err when it is a domain error without
// one, and wraps any other error as CodeInternal so the identifier is never
// lost on the way out of a service.
func Correlate(err error, correlationID string) error {
	if err == nil || correlationID == "" {
		return err
	}
	if de, ok := As(err); ok {
		if de.CorrelationID == "" {
			de.CorrelationID = correlationID
		}
		return err
	}
	return Wrap(err, CodeInternal, "unexpected failure").WithCorrelation(correlationID)
}
