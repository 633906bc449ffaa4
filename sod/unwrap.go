// Package sod implements the Crypto/ASN.1 Toolbox (spec §4.1): decoding and
// reasoning over the CMS SignedData / LDSSecurityObject structure ICAO 9303
// calls the Security Object Document, plus the X.509 helpers every other
// component builds on.
package sod

// icaoApplicationTag is the BER application-class tag ICAO prepends to a SOD
// when it is read straight off the chip (tag 0x77, "EF.SOD").
const icaoApplicationTag = 0x77

// UnwrapSOD strips the ICAO tag-0x77 TLV wrapper if present, returning the
// inner CMS SignedData unchanged. Passing already-unwrapped bytes back
// through UnwrapSOD is a no-op (spec §8 property 1: unwrap idempotence).
func UnwrapSOD(b []byte) []byte {
	if len(b) == 0 || b[0] != icaoApplicationTag {
		return b
	}
	length, headerLen, ok := decodeLength(b[1:])
	if !ok {
		return b
	}
	start := 1 + headerLen
	end := start + length
	if end > len(b) {
		return b
	}
	return b[start:end]
}

// decodeLength decodes a BER/DER length field starting at b[0], accepting
// both short-form (0..127) and long-form (0x80|n followed by n big-endian
// bytes). It returns the decoded length, the number of bytes the length
// field itself occupied, and whether decoding succeeded.
func decodeLength(b []byte) (length int, headerLen int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	first := b[0]
	if first < 0x80 {
		return int(first), 1, true
	}
	n := int(first &^ 0x80)
	if n == 0 || n > 4 || len(b) < 1+n {
		return 0, 0, false
	}
	length = 0
	for i := 0; i < n; i++ {
		length = length<<8 | int(b[1+i])
	}
	return length, 1 + n, true
}
