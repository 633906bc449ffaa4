package pkderrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	err := CertNotFoundError("no CSCA for issuer %q", "CN=Test CSCA")
	assert.True(t, Is(err, CertNotFound))
	assert.False(t, Is(err, InvalidSOD))
	assert.Equal(t, `no CSCA for issuer "CN=Test CSCA"`, err.Error())
}

func TestIs_NonPkdError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), CertNotFound))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, DgHashMismatch, CodeOf(DgHashMismatchError("dg %d hash mismatch", 2)))
	assert.Equal(t, PaExecutionError, CodeOf(errors.New("unexpected")))
}

func TestConstructors_AssignExpectedSeverity(t *testing.T) {
	cases := []struct {
		err  error
		code Code
		sev  Severity
	}{
		{InvalidRequestError("bad request"), InvalidRequest, Critical},
		{MissingSODError("no sod"), MissingSOD, Critical},
		{InvalidSODError("bad sod"), InvalidSOD, Critical},
		{ChainValidationFailedError("broken chain"), ChainValidationFailed, Critical},
		{CertificateRevokedError("revoked"), CertificateRevoked, Critical},
		{SodSignatureInvalidError("bad signature"), SodSignatureInvalid, Critical},
		{DgHashMismatchError("mismatch"), DgHashMismatch, Warning},
		{PaExecutionErrorf("boom"), PaExecutionError, Critical},
	}
	for _, c := range cases {
		pe, ok := c.err.(*PkdError)
		assert.True(t, ok)
		assert.Equal(t, c.code, pe.PkdCode)
		assert.Equal(t, c.sev, pe.Severity)
	}
}
