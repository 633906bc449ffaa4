// Package pa implements the Passive Authentication engine (spec §4.3): the
// 8-step ICAO 9303 verification state machine run serially for one chip
// read, end to end from raw SOD/DG bytes to a persisted PaVerification.
package pa

import (
	"time"

	"github.com/icao-pkd/pkd-core/core"
)

// Request is the public contract's input, per spec §4.3.
type Request struct {
	SodBase64      string
	DataGroups     map[int][]byte
	MrzData        string
	IssuingCountry string
	DocumentNumber string
}

// Severity classifies an Error's impact on the overall result.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Error is one finding recorded against a Result, per spec §4.3.
type Error struct {
	Code      string
	Message   string
	Severity  Severity
	Timestamp time.Time
}

// ChainValidation is the output of step 4, trust chain verification.
type ChainValidation struct {
	Valid              bool
	DscSubject         string
	DscSerialNumber    string
	CscaSubject        string
	CscaSerialNumber   string
	NotBefore          time.Time
	NotAfter           time.Time
	ValidationErrors   []string
}

// SodSignatureValidation is the output of step 5.
type SodSignatureValidation struct {
	Valid              bool
	SignatureAlgorithm string
	HashAlgorithm      string
	ValidationErrors   []string
}

// DataGroupResult is the per-DG outcome from step 6.
type DataGroupResult struct {
	Valid        bool
	ExpectedHash string
	ActualHash   string
}

// DataGroupValidation is the output of step 6, totals plus per-DG detail.
type DataGroupValidation struct {
	Total         int
	Valid         int
	InvalidGroups int
	PerGroup      map[int]DataGroupResult
}

// DG1Fields and DG2Image are the best-effort outputs of step 8.
type DG1Fields struct {
	DocumentNumber string
	DateOfBirth    string
	Sex            string
	Nationality    string
	Surname        string
	GivenNames     string
}

type DG2Image struct {
	Format string
	Width  int
	Height int
	DataURL string
}

// Result is the public contract's output, per spec §4.3.
type Result struct {
	Status                 core.PaOverallStatus
	VerificationID         string
	VerificationTimestamp  time.Time
	IssuingCountry         string
	DocumentNumber         string
	CertificateChainValidation ChainValidation
	SodSignatureValidation    SodSignatureValidation
	DataGroupValidation       DataGroupValidation
	CrlStatus              core.RevocationStatus
	Revoked                bool
	RevokedAt              time.Time
	ProcessingDurationMs   int64
	Errors                 []Error
	DG1                    *DG1Fields
	DG2                    *DG2Image
}

// overallValid implements the Overall-valid law of spec §8 property 3:
// status=VALID iff trustChainValid AND not revoked AND sodSignatureValid AND
// invalidGroups=0.
func (r *Result) overallValid() bool {
	return r.CertificateChainValidation.Valid &&
		!r.Revoked &&
		r.SodSignatureValidation.Valid &&
		r.DataGroupValidation.InvalidGroups == 0
}
