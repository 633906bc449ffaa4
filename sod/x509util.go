package sod

import (
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	zx509 "github.com/zmap/zcrypto/x509"
	"github.com/zmap/zlint/v3"
	"github.com/zmap/zlint/v3/lint"
)

// CertToPEM encodes a DER certificate as a PEM block.
func CertToPEM(der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

// CertFromDER parses a single DER-encoded certificate with the standard
// library parser, with no fallback — use ParseCertificateLenient for
// material that may violate strict DER.
func CertFromDER(der []byte) (*x509.Certificate, error) {
	return x509.ParseCertificate(der)
}

// ParseCertificateLenient tries crypto/x509 first and, on failure, falls
// back to zcrypto/x509 (which tolerates the kind of ASN.1/DER deviation
// real-world CSCA/DSC material sometimes exhibits) and copies the raw DER,
// names, serial, validity window, signature algorithm and public key of the
// zcrypto result into a standard *x509.Certificate. Other fields of that
// certificate (extensions, key usage, constraints) are left empty.
func ParseCertificateLenient(der []byte) (*x509.Certificate, error) {
	if cert, err := x509.ParseCertificate(der); err == nil {
		return cert, nil
	}
	zc, err := zx509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("sod: lenient parse failed: %w", err)
	}
	// Build a *x509.Certificate from the zcrypto fields so downstream
	// callers only ever hold the standard library type.
	return &x509.Certificate{
		Raw:                zc.Raw,
		RawSubject:         zc.RawSubject,
		RawIssuer:          zc.RawIssuer,
		Subject:            pkix.Name(zc.Subject),
		Issuer:             pkix.Name(zc.Issuer),
		SerialNumber:       zc.SerialNumber,
		NotBefore:          zc.NotBefore,
		NotAfter:           zc.NotAfter,
		SignatureAlgorithm: x509.SignatureAlgorithm(zc.SignatureAlgorithm),
		PublicKey:          zc.PublicKey,
	}, nil
}

// Lint runs zlint's full registry over a certificate and reports whether
// any Error-level finding fired, with the names of those findings. Lint
// does not assign a certificate type itself, and nothing in this module
// calls it.
func Lint(der []byte) (clean bool, findings []string, err error) {
	zc, perr := zx509.ParseCertificate(der)
	if perr != nil {
		return false, nil, fmt.Errorf("sod: lint parse: %w", perr)
	}
	result := zlint.LintCertificateEx(zc, lint.GlobalRegistry())
	if result == nil {
		return true, nil, nil
	}
	for name, res := range result.Results {
		if res.Status == lint.Error {
			findings = append(findings, name)
		}
	}
	return len(findings) == 0, findings, nil
}

// SubjectDN renders a certificate's subject as an RFC 2253-ish DN string.
func SubjectDN(cert *x509.Certificate) string {
	return cert.Subject.String()
}

// IssuerDN renders a certificate's issuer as an RFC 2253-ish DN string.
func IssuerDN(cert *x509.Certificate) string {
	return cert.Issuer.String()
}

// SerialHex renders a certificate's serial number as lowercase hex.
func SerialHex(cert *x509.Certificate) string {
	return hex.EncodeToString(cert.SerialNumber.Bytes())
}

// FingerprintSHA256 is the Certificate identity hash used throughout §3.
func FingerprintSHA256(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// ExtractDNAttribute is a case-insensitive RDN attribute extractor: given a
// DN string like "CN=Foo,C=DE", ExtractDNAttribute(dn, "C") returns "DE".
// Handles both comma- and slash-separated DN renderings.
func ExtractDNAttribute(dn, key string) string {
	key = strings.ToUpper(key)
	for _, part := range splitDN(dn) {
		part = strings.TrimSpace(part)
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		if strings.ToUpper(strings.TrimSpace(kv[0])) == key {
			return strings.TrimSpace(kv[1])
		}
	}
	return ""
}

func splitDN(dn string) []string {
	if strings.Contains(dn, ",") {
		return strings.Split(dn, ",")
	}
	return strings.Split(dn, "/")
}

// NotBeforeISO / NotAfterISO render a certificate's validity bounds as
// ISO-8601 UTC, the wire format spec §4.1 asks for.
func NotBeforeISO(cert *x509.Certificate) string { return isoUTC(cert.NotBefore) }
func NotAfterISO(cert *x509.Certificate) string  { return isoUTC(cert.NotAfter) }

func isoUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
