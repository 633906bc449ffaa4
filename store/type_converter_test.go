package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pkd-core/core"
)

func TestTypeConverter_ToDb(t *testing.T) {
	c := pkdTypeConverter{}

	v, err := c.ToDb(core.CertTypeDSC)
	require.NoError(t, err)
	assert.Equal(t, "DSC", v)

	v, err = c.ToDb(core.ValidationInvalid)
	require.NoError(t, err)
	assert.Equal(t, "INVALID", v)

	v, err = c.ToDb("plain string passthrough")
	require.NoError(t, err)
	assert.Equal(t, "plain string passthrough", v)
}

func TestTypeConverter_FromDb_RoundTrip(t *testing.T) {
	c := pkdTypeConverter{}

	var ct core.CertType
	scanner, ok := c.FromDb(&ct)
	require.True(t, ok)
	holder := scanner.Holder.(*string)
	*holder = "CSCA"
	require.NoError(t, scanner.Binder(holder, scanner.Target))
	assert.Equal(t, core.CertTypeCSCA, ct)

	var rs core.RevocationStatus
	scanner, ok = c.FromDb(&rs)
	require.True(t, ok)
	holder = scanner.Holder.(*string)
	*holder = "REVOKED"
	require.NoError(t, scanner.Binder(holder, scanner.Target))
	assert.Equal(t, core.RevocationRevoked, rs)
}

func TestTypeConverter_FromDb_UnknownTypeFallsThrough(t *testing.T) {
	c := pkdTypeConverter{}
	_, ok := c.FromDb(&struct{}{})
	assert.False(t, ok)
}
