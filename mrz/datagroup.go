package mrz

import (
	"bytes"
	"fmt"
)

// tagMRZContent is the BER tag ICAO 9303 uses for the MRZ content element
// inside DG1 (tag 5F1F).
var tagMRZContent = []byte{0x5F, 0x1F}

// facMagic is the ISO 19794-5 FAC (Face Access Container) container magic.
var facMagic = []byte{0x46, 0x41, 0x43, 0x00}

var jpegSOI = []byte{0xFF, 0xD8, 0xFF}
var jpegEOI = []byte{0xFF, 0xD9}
var jp2Signature = []byte("jP ")

// ExtractMRZFromDG1 locates the MRZ string within a DG1 payload by scanning
// for the BER tag 5F1F and its length bytes, per spec §4.3 step 2.
func ExtractMRZFromDG1(dg1 []byte) (string, error) {
	idx := bytes.Index(dg1, tagMRZContent)
	if idx < 0 {
		return "", fmt.Errorf("mrz: tag 5F1F not found in DG1")
	}
	pos := idx + len(tagMRZContent)
	length, headerLen, ok := decodeBERLength(dg1[pos:])
	if !ok {
		return "", fmt.Errorf("mrz: malformed length after tag 5F1F")
	}
	start := pos + headerLen
	end := start + length
	if end > len(dg1) {
		return "", fmt.Errorf("mrz: declared MRZ length exceeds DG1 payload")
	}
	return string(dg1[start:end]), nil
}

// decodeBERLength decodes a BER/DER length field, short- or long-form.
func decodeBERLength(b []byte) (length int, headerLen int, ok bool) {
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

// ImageFormat names the encoding of an extracted DG2 face image.
type ImageFormat string

const (
	ImageJPEG     ImageFormat = "JPEG"
	ImageJPEG2000 ImageFormat = "JPEG2000"
)

// FaceImage is a face image extracted from a DG2 biometric template.
type FaceImage struct {
	Format ImageFormat
	Data   []byte
	Width  int
	Height int
}

// ExtractFaceImage locates the ISO 19794-5 FAC container within a DG2
// payload and extracts the embedded JPEG or JPEG2000 image, per spec §4.3
// step 8. Returns an error if no FAC container or no recognizable image
// signature is found.
func ExtractFaceImage(dg2 []byte) (*FaceImage, error) {
	facIdx := bytes.Index(dg2, facMagic)
	if facIdx < 0 {
		return nil, fmt.Errorf("mrz: FAC container magic not found in DG2")
	}
	body := dg2[facIdx:]

	if jpegStart := bytes.Index(body, jpegSOI); jpegStart >= 0 {
		jpegEnd := bytes.LastIndex(body, jpegEOI)
		if jpegEnd < 0 || jpegEnd < jpegStart {
			return nil, fmt.Errorf("mrz: JPEG SOI found without matching EOI")
		}
		data := body[jpegStart : jpegEnd+len(jpegEOI)]
		w, h := scanJPEGDimensions(data)
		return &FaceImage{Format: ImageJPEG, Data: data, Width: w, Height: h}, nil
	}

	if jp2Start := bytes.Index(body, jp2Signature); jp2Start >= 0 {
		data := body[jp2Start:]
		return &FaceImage{Format: ImageJPEG2000, Data: data}, nil
	}

	return nil, fmt.Errorf("mrz: no JPEG or JPEG2000 signature found in FAC container")
}

// scanJPEGDimensions scans for a JPEG SOF0 (0xFFC0) marker and reads the
// width/height it carries. Returns 0,0 if no SOF0 marker is present (e.g.
// progressive JPEGs using SOF2, which this best-effort scan does not chase).
func scanJPEGDimensions(data []byte) (width, height int) {
	for i := 0; i+9 < len(data); i++ {
		if data[i] != 0xFF || data[i+1] != 0xC0 {
			continue
		}
		// segment layout: FF C0, len(2), precision(1), height(2), width(2)
		height = int(data[i+5])<<8 | int(data[i+6])
		width = int(data[i+7])<<8 | int(data[i+8])
		return width, height
	}
	return 0, 0
}
