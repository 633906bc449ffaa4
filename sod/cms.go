package sod

import (
	"crypto"
	_ "crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"hash"
	"math/big"

	"github.com/smallstep/pkcs7"
)

// contentInfo and signedData mirror the CMS structures defined in RFC 5652,
// stripped to the fields the toolbox needs. Parsing them directly with
// encoding/asn1 (rather than reaching into a PKCS7 library's unexported
// internals) keeps ExtractHashAlgorithm/ExtractSignatureAlgorithm/
// ExtractDSC grounded in the exact byte walk spec §4.1 describes.
type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

type signedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo asn1.RawValue
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos      []signerInfo  `asn1:"set"`
}

type signerInfo struct {
	Version            int
	IssuerAndSerial     issuerAndSerial
	DigestAlgorithm     pkix.AlgorithmIdentifier
	SignedAttrs         asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm  pkix.AlgorithmIdentifier
	Signature           []byte
	UnsignedAttrs       asn1.RawValue `asn1:"optional,tag:1"`
}

type issuerAndSerial struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

var oidSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}

// parseSignedData unmarshals the outer ContentInfo and inner SignedData of
// an (already unwrapped) CMS message.
func parseSignedData(der []byte) (*signedData, error) {
	var ci contentInfo
	if _, err := asn1.Unmarshal(der, &ci); err != nil {
		return nil, fmt.Errorf("sod: parse ContentInfo: %w", err)
	}
	if !ci.ContentType.Equal(oidSignedData) {
		return nil, fmt.Errorf("sod: unexpected CMS content type %v", ci.ContentType)
	}
	var sd signedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, fmt.Errorf("sod: parse SignedData: %w", err)
	}
	if len(sd.SignerInfos) == 0 {
		return nil, errors.New("sod: SignedData has no SignerInfos")
	}
	return &sd, nil
}

// ExtractDSC parses CMS SignedData and returns the first embedded
// certificate, which ICAO 9303 requires to be the Document Signer
// Certificate. Fails when the CMS can't be parsed or carries no certificate.
func ExtractDSC(sodBytes []byte) (*x509.Certificate, error) {
	sd, err := parseSignedData(sodBytes)
	if err != nil {
		return nil, err
	}
	if len(sd.Certificates.Bytes) == 0 {
		return nil, errors.New("sod: SignedData carries no embedded certificates")
	}
	certs, err := x509.ParseCertificates(sd.Certificates.Bytes)
	if err != nil {
		// Fall back to the lenient parser: some national DSCs violate strict
		// DER in ways crypto/x509 rejects outright (see ParseCertificateLenient).
		cert, lerr := ParseCertificateLenient(firstCertDER(sd.Certificates.Bytes))
		if lerr != nil {
			return nil, fmt.Errorf("sod: parse embedded certificates: %w", err)
		}
		return cert, nil
	}
	if len(certs) == 0 {
		return nil, errors.New("sod: SignedData carries no embedded certificates")
	}
	return certs[0], nil
}

// firstCertDER extracts the DER bytes of the first certificate in a
// `[0] IMPLICIT SET OF Certificate` blob, for the lenient-parse fallback.
func firstCertDER(set []byte) []byte {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(set, &raw); err != nil {
		return set
	}
	return raw.FullBytes
}

// HashAlgorithm names a digest algorithm by OID and a friendly name.
type HashAlgorithm struct {
	OID  asn1.ObjectIdentifier
	Name string
}

var hashAlgByOID = map[string]string{
	"1.3.14.3.2.26":              "SHA-1",
	"2.16.840.1.101.3.4.2.1":     "SHA-256",
	"2.16.840.1.101.3.4.2.2":     "SHA-384",
	"2.16.840.1.101.3.4.2.3":     "SHA-512",
}

// ExtractHashAlgorithm reads the first SignerInfo's digest algorithm OID and
// maps it to a friendly name, defaulting to SHA-256 when the OID is unknown
// (spec §4.1).
func ExtractHashAlgorithm(sodBytes []byte) (HashAlgorithm, error) {
	sd, err := parseSignedData(sodBytes)
	if err != nil {
		return HashAlgorithm{}, err
	}
	oid := sd.SignerInfos[0].DigestAlgorithm.Algorithm
	name, ok := hashAlgByOID[oid.String()]
	if !ok {
		name = "SHA-256"
	}
	return HashAlgorithm{OID: oid, Name: name}, nil
}

var sigAlgByOID = map[string]string{
	"1.2.840.113549.1.1.5":  "SHA1withRSA",
	"1.2.840.113549.1.1.11": "SHA256withRSA",
	"1.2.840.113549.1.1.12": "SHA384withRSA",
	"1.2.840.113549.1.1.13": "SHA512withRSA",
	"1.2.840.10045.4.1":     "SHA1withECDSA",
	"1.2.840.10045.4.3.2":   "SHA256withECDSA",
	"1.2.840.10045.4.3.3":   "SHA384withECDSA",
	"1.2.840.10045.4.3.4":   "SHA512withECDSA",
}

// ExtractSignatureAlgorithm reads the first SignerInfo's signature algorithm
// OID and maps it to a friendly name.
func ExtractSignatureAlgorithm(sodBytes []byte) (string, error) {
	sd, err := parseSignedData(sodBytes)
	if err != nil {
		return "", err
	}
	oid := sd.SignerInfos[0].SignatureAlgorithm.Algorithm
	if name, ok := sigAlgByOID[oid.String()]; ok {
		return name, nil
	}
	return oid.String(), nil
}

// LDSSecurityObject is the inner content of the SOD's SignedData
// eContent: SEQUENCE { version INTEGER, hashAlgorithm AlgorithmIdentifier,
// dataGroupHashValues SEQUENCE OF DataGroupHash }.
type ldsSecurityObject struct {
	Version          int
	HashAlgorithm    pkix.AlgorithmIdentifier
	DataGroupHashes  []dataGroupHash
}

type dataGroupHash struct {
	DataGroupNumber int
	HashValue       []byte
}

// ParseDGHashes walks the LDSSecurityObject embedded in the SOD's
// EncapContentInfo and returns the expected hash for every data group it
// lists, keyed by DG number. Tolerant of trailing data after the outer
// SEQUENCE's declared length (spec §4.1).
func ParseDGHashes(sodBytes []byte) (map[int][]byte, error) {
	sd, err := parseSignedData(sodBytes)
	if err != nil {
		return nil, err
	}
	econtent, err := encapsulatedContent(sd.EncapContentInfo)
	if err != nil {
		return nil, err
	}
	var lds ldsSecurityObject
	if _, err := asn1.Unmarshal(econtent, &lds); err != nil {
		return nil, fmt.Errorf("sod: parse LDSSecurityObject: %w", err)
	}
	out := make(map[int][]byte, len(lds.DataGroupHashes))
	for _, dgh := range lds.DataGroupHashes {
		out[dgh.DataGroupNumber] = dgh.HashValue
	}
	return out, nil
}

// eContentInfo models EncapsulatedContentInfo { eContentType OID, eContent [0] EXPLICIT OCTET STRING OPTIONAL }.
type eContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

func encapsulatedContent(raw asn1.RawValue) ([]byte, error) {
	var eci eContentInfo
	if _, err := asn1.Unmarshal(raw.FullBytes, &eci); err != nil {
		return nil, fmt.Errorf("sod: parse EncapsulatedContentInfo: %w", err)
	}
	var octets []byte
	if _, err := asn1.Unmarshal(eci.EContent.Bytes, &octets); err != nil {
		// Some encoders emit eContent as a raw OCTET STRING without the
		// extra wrapping asn1.Unmarshal above expects; fall back to the
		// bytes as decoded.
		return eci.EContent.Bytes, nil
	}
	return octets, nil
}

// CalculateHash computes the digest of b using alg (a friendly name as
// returned by ExtractHashAlgorithm), defaulting to SHA-256 for an unknown
// algorithm.
func CalculateHash(b []byte, alg string) []byte {
	h := newHash(alg)
	h.Write(b)
	return h.Sum(nil)
}

func newHash(alg string) hash.Hash {
	switch alg {
	case "SHA-1":
		return crypto.SHA1.New()
	case "SHA-384":
		return sha512.New384()
	case "SHA-512":
		return sha512.New()
	default:
		return sha256.New()
	}
}

// VerifySODSignature verifies the CMS SignedData signature over the SOD
// using dsc as the sole trust anchor, per spec §4.3 step 5 ("disable
// external cert-chain validation and attribute verification" — the PA
// engine has already verified the DSC's own chain in step 4). Backed by
// smallstep/pkcs7 for the heavy lifting (signed-attribute digesting and
// signature verification across RSA/ECDSA).
func VerifySODSignature(sodBytes []byte, dsc *x509.Certificate) error {
	p7, err := pkcs7.Parse(sodBytes)
	if err != nil {
		return fmt.Errorf("sod: pkcs7 parse: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(dsc)
	return p7.VerifyWithChain(pool)
}
