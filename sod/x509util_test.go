package sod

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDNAttribute_CommaForm(t *testing.T) {
	dn := "CN=Document Signer 01,O=Ministry,C=DE"
	assert.Equal(t, "DE", ExtractDNAttribute(dn, "c"))
	assert.Equal(t, "Document Signer 01", ExtractDNAttribute(dn, "CN"))
	assert.Equal(t, "", ExtractDNAttribute(dn, "OU"))
}

func TestExtractDNAttribute_SlashForm(t *testing.T) {
	dn := "/C=NL/O=State/CN=CSCA NL"
	assert.Equal(t, "NL", ExtractDNAttribute(dn, "C"))
	assert.Equal(t, "CSCA NL", ExtractDNAttribute(dn, "cn"))
}

func TestFingerprintSHA256(t *testing.T) {
	der := []byte("not-a-real-certificate-but-deterministic")
	want := sha256.Sum256(der)
	got := FingerprintSHA256(der)
	assert.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestCalculateHash_DefaultsToSHA256(t *testing.T) {
	data := []byte("dg1 contents")
	want := sha256.Sum256(data)
	got := CalculateHash(data, "unknown-alg")
	assert.Equal(t, want[:], got)
}

func TestCalculateHash_SHA1(t *testing.T) {
	got := CalculateHash([]byte("x"), "SHA-1")
	assert.Equal(t, 20, len(got))
}

func TestLint_RejectsUnparseableDER(t *testing.T) {
	clean, findings, err := Lint([]byte("not-a-real-certificate"))
	assert.Error(t, err)
	assert.False(t, clean)
	assert.Nil(t, findings)
}

func TestParseCertificateLenient_FailsOnGarbage(t *testing.T) {
	_, err := ParseCertificateLenient([]byte("still-not-a-certificate"))
	assert.Error(t, err)
}

func TestCertFromDER_RejectsNonDER(t *testing.T) {
	_, err := CertFromDER([]byte("definitely-not-der"))
	assert.Error(t, err)
}
