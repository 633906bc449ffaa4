// Package pkderrors defines the PKD core's error taxonomy, in the same
// shape as the teacher's own errors package (a typed sentinel wrapping a
// coarse category plus a formatted detail string).
package pkderrors

import "fmt"

// Code is a coarse category for PkdError, surfaced to API callers as the
// error code string named in spec §7.
type Code string

const (
	InvalidRequest         Code = "INVALID_REQUEST"
	MissingSOD             Code = "MISSING_SOD"
	InvalidSOD             Code = "INVALID_SOD"
	CertNotFound           Code = "CERT_NOT_FOUND"
	ChainValidationFailed  Code = "CHAIN_VALIDATION_FAILED"
	CertificateRevoked     Code = "CERTIFICATE_REVOKED"
	SodSignatureInvalid    Code = "SOD_SIGNATURE_INVALID"
	DgHashMismatch         Code = "DG_HASH_MISMATCH"
	PaExecutionError       Code = "PA_EXECUTION_ERROR"
)

// Severity classifies how serious a PaError is, per spec §4.3.
type Severity string

const (
	Critical Severity = "CRITICAL"
	Warning  Severity = "WARNING"
	Info     Severity = "INFO"
)

// PkdError pairs a PA wire Code with a Detail message and a Severity. The
// PA engine builds its PaErrors from the Code constants directly, not from
// PkdError values.
type PkdError struct {
	PkdCode  Code
	Detail   string
	Severity Severity
}

func (e *PkdError) Error() string {
	return e.Detail
}

// New constructs a PkdError with the given category, severity, and
// printf-style message.
func New(code Code, sev Severity, msg string, args ...interface{}) error {
	return &PkdError{
		PkdCode:  code,
		Detail:   fmt.Sprintf(msg, args...),
		Severity: sev,
	}
}

// Is reports whether err is a PkdError of the given category.
func Is(err error, code Code) bool {
	pe, ok := err.(*PkdError)
	if !ok {
		return false
	}
	return pe.PkdCode == code
}

// CodeOf extracts the Code from err, returning PaExecutionError for any
// error that isn't a PkdError (an unhandled/unexpected failure).
func CodeOf(err error) Code {
	if pe, ok := err.(*PkdError); ok {
		return pe.PkdCode
	}
	return PaExecutionError
}

func InvalidRequestError(msg string, args ...interface{}) error {
	return New(InvalidRequest, Critical, msg, args...)
}

func MissingSODError(msg string, args ...interface{}) error {
	return New(MissingSOD, Critical, msg, args...)
}

func InvalidSODError(msg string, args ...interface{}) error {
	return New(InvalidSOD, Critical, msg, args...)
}

func CertNotFoundError(msg string, args ...interface{}) error {
	return New(CertNotFound, Critical, msg, args...)
}

func ChainValidationFailedError(msg string, args ...interface{}) error {
	return New(ChainValidationFailed, Critical, msg, args...)
}

func CertificateRevokedError(msg string, args ...interface{}) error {
	return New(CertificateRevoked, Critical, msg, args...)
}

func SodSignatureInvalidError(msg string, args ...interface{}) error {
	return New(SodSignatureInvalid, Critical, msg, args...)
}

func DgHashMismatchError(msg string, args ...interface{}) error {
	return New(DgHashMismatch, Warning, msg, args...)
}

func PaExecutionErrorf(msg string, args ...interface{}) error {
	return New(PaExecutionError, Critical, msg, args...)
}
