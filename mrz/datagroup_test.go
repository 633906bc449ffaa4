package mrz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMRZFromDG1_ShortForm(t *testing.T) {
	mrzBytes := []byte(sampleTD3)
	dg1 := append([]byte{0x61, 0x5B, 0x5F, 0x1F, byte(len(mrzBytes))}, mrzBytes...)

	got, err := ExtractMRZFromDG1(dg1)
	require.NoError(t, err)
	assert.Equal(t, sampleTD3, got)
}

func TestExtractMRZFromDG1_MissingTag(t *testing.T) {
	_, err := ExtractMRZFromDG1([]byte{0x61, 0x00})
	assert.Error(t, err)
}

func TestExtractFaceImage_JPEG(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xC0, 0x00, 0x0B, 0x08, 0x00, 0x64, 0x00, 0x32, 0xFF, 0xD9}
	dg2 := append(append([]byte{0x00, 0x01, 0x02}, facMagic...), jpeg...)

	img, err := ExtractFaceImage(dg2)
	require.NoError(t, err)
	assert.Equal(t, ImageJPEG, img.Format)
	assert.Equal(t, 100, img.Height)
	assert.Equal(t, 50, img.Width)
}

func TestExtractFaceImage_JPEG2000(t *testing.T) {
	jp2 := append([]byte("jP "), []byte{0x0D, 0x0A, 0x87, 0x0A}...)
	dg2 := append(append([]byte{0x00}, facMagic...), jp2...)

	img, err := ExtractFaceImage(dg2)
	require.NoError(t, err)
	assert.Equal(t, ImageJPEG2000, img.Format)
}

func TestExtractFaceImage_NoFAC(t *testing.T) {
	_, err := ExtractFaceImage([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}
