package pa

import (
	"context"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icao-pkd/pkd-core/core"
)

type stubCsca struct{}

func (stubCsca) FindByIssuerDN(ctx context.Context, issuerDN, country string) (*x509.Certificate, error) {
	return nil, nil
}
func (stubCsca) FindAllByIssuerDN(ctx context.Context, issuerDN string) ([]*x509.Certificate, error) {
	return nil, nil
}

type stubCrl struct{}

func (stubCrl) FindByCountry(ctx context.Context, country string) (*core.CRL, error) {
	return nil, nil
}

func newTestEngine() *Engine {
	return NewEngine(stubCsca{}, stubCrl{}, nil, nil, nil)
}

func TestVerify_InvalidBase64Sod(t *testing.T) {
	e := newTestEngine()
	r := e.Verify(context.Background(), Request{
		SodBase64:  "not-valid-base64!!!",
		DataGroups: map[int][]byte{1: []byte("x")},
	})
	assert.Equal(t, core.PaStatusError, r.Status)
	assert.True(t, hasErrorCode(r, "INVALID_SOD"))
}

func TestVerify_NoDataGroups(t *testing.T) {
	e := newTestEngine()
	r := e.Verify(context.Background(), Request{SodBase64: "AAAA"})
	assert.Equal(t, core.PaStatusError, r.Status)
	assert.True(t, hasErrorCode(r, "INVALID_REQUEST"))
}

func TestVerify_InvalidCMSYieldsInvalidStatus(t *testing.T) {
	e := newTestEngine()
	r := e.Verify(context.Background(), Request{
		SodBase64:  "AAAA",
		DataGroups: map[int][]byte{1: []byte("x")},
	})
	assert.Equal(t, core.PaStatusInvalid, r.Status)
	assert.False(t, r.CertificateChainValidation.Valid)
}

func TestOverallValid_Law(t *testing.T) {
	r := &Result{
		CertificateChainValidation: ChainValidation{Valid: true},
		SodSignatureValidation:     SodSignatureValidation{Valid: true},
		DataGroupValidation:        DataGroupValidation{InvalidGroups: 0},
		Revoked:                    false,
	}
	assert.True(t, r.overallValid())

	r.Revoked = true
	assert.False(t, r.overallValid())

	r.Revoked = false
	r.DataGroupValidation.InvalidGroups = 1
	assert.False(t, r.overallValid())
}

func TestDgLabel(t *testing.T) {
	assert.Equal(t, "1", dgLabel(1))
	assert.Equal(t, "14", dgLabel(14))
	assert.Equal(t, "other", dgLabel(100))
}

func hasErrorCode(r *Result, code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}
