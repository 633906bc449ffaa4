package sod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignedData_RejectsGarbage(t *testing.T) {
	_, err := parseSignedData([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)
}

func TestExtractDSC_RejectsNonCMS(t *testing.T) {
	_, err := ExtractDSC([]byte("definitely not a CMS message"))
	assert.Error(t, err)
}

func TestExtractHashAlgorithm_RejectsGarbage(t *testing.T) {
	_, err := ExtractHashAlgorithm([]byte{0x30, 0x00})
	assert.Error(t, err)
}

func TestParseDGHashes_RejectsGarbage(t *testing.T) {
	_, err := ParseDGHashes([]byte{0x30, 0x00})
	assert.Error(t, err)
}
