package mrz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A textbook TD3 MRZ (ICAO 9303 part 4 worked example), 2x44 characters.
const sampleTD3 = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<" +
	"L898902C36UTO7408122F1204159ZE184226B<<<<<10"

func TestDetectDocType(t *testing.T) {
	dt, ok := DetectDocType(sampleTD3)
	require.True(t, ok)
	assert.Equal(t, TD3, dt)
}

func TestParseTD3_Invariants(t *testing.T) {
	f, ok := Parse(sampleTD3)
	require.True(t, ok)

	assert.Equal(t, "L898902C3", f.DocumentNumber)
	assert.NotContains(t, f.DocumentNumber, "<")
	assert.Equal(t, "1974-08-12", f.DateOfBirth)
	assert.Contains(t, []string{"M", "F", "<"}, f.Sex)
	assert.Equal(t, "UTO", f.Nationality)
	assert.Len(t, f.Nationality, 3)
	assert.Equal(t, "ERIKSSON", f.Surname)
	assert.Equal(t, "ANNA MARIA", f.GivenNames)
}

func TestParseTD3_ExpiryDate(t *testing.T) {
	f, ok := Parse(sampleTD3)
	require.True(t, ok)
	assert.Equal(t, "2012-04-15", f.DateOfExpiry)
}

func TestNormalizeBirthDate_Cutoff(t *testing.T) {
	assert.Equal(t, "2023-01-01", normalizeBirthDate("230101"))
	assert.Equal(t, "1924-01-01", normalizeBirthDate("240101"))
}

func TestNormalizeExpiryDate_Cutoff(t *testing.T) {
	assert.Equal(t, "2049-01-01", normalizeExpiryDate("490101"))
	assert.Equal(t, "1950-01-01", normalizeExpiryDate("500101"))
}

func TestCleanDocNumber(t *testing.T) {
	assert.Equal(t, "L898902C3", cleanDocNumber("L898902C3<"))
}

func TestSplitName(t *testing.T) {
	surname, given := splitName("ERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<")
	assert.Equal(t, "ERIKSSON", surname)
	assert.Equal(t, "ANNA MARIA", given)
}

func TestVerifyCheckDigitsTD3(t *testing.T) {
	report := VerifyCheckDigitsTD3(sampleTD3)
	assert.True(t, report.DocumentNumberValid)
	assert.True(t, report.DateOfBirthValid)
	assert.True(t, report.DateOfExpiryValid)
}

func TestParse_RejectsWrongLength(t *testing.T) {
	_, ok := Parse("too short")
	assert.False(t, ok)
}
