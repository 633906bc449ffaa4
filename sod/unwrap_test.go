package sod

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapSOD_ShortForm(t *testing.T) {
	inner := []byte{0x30, 0x03, 0x01, 0x02, 0x03}
	wrapped := append([]byte{icaoApplicationTag, byte(len(inner))}, inner...)

	got := UnwrapSOD(wrapped)
	assert.True(t, bytes.Equal(inner, got))
}

func TestUnwrapSOD_LongForm(t *testing.T) {
	inner := bytes.Repeat([]byte{0xAB}, 200)
	wrapped := append([]byte{icaoApplicationTag, 0x81, 0xC8}, inner...)

	got := UnwrapSOD(wrapped)
	assert.True(t, bytes.Equal(inner, got))
}

func TestUnwrapSOD_Idempotent(t *testing.T) {
	inner := []byte{0x30, 0x03, 0x01, 0x02, 0x03}
	wrapped := append([]byte{icaoApplicationTag, byte(len(inner))}, inner...)

	once := UnwrapSOD(wrapped)
	twice := UnwrapSOD(once)
	assert.True(t, bytes.Equal(once, twice))
}

func TestUnwrapSOD_NoWrapper(t *testing.T) {
	raw := []byte{0x30, 0x03, 0x01, 0x02, 0x03}
	got := UnwrapSOD(raw)
	assert.True(t, bytes.Equal(raw, got))
}

func TestUnwrapSOD_Empty(t *testing.T) {
	assert.Equal(t, 0, len(UnwrapSOD(nil)))
}

func TestUnwrapSOD_TruncatedLength(t *testing.T) {
	malformed := []byte{icaoApplicationTag, 0x81, 0xFF, 0x01}
	got := UnwrapSOD(malformed)
	assert.True(t, bytes.Equal(malformed, got))
}
