package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icao-pkd/pkd-core/core"
)

func TestClassifyDN_Csca(t *testing.T) {
	country, certType, ok := classifyDN("cn=cert-1,o=csca,c=DE,dc=data,dc=download,dc=pkd,dc=icao,dc=int")
	assert.True(t, ok)
	assert.Equal(t, "DE", country)
	assert.Equal(t, core.CertTypeCSCA, certType)
}

func TestClassifyDN_Dsc(t *testing.T) {
	country, certType, ok := classifyDN("cn=cert-2,o=dsc,c=nl,dc=data,dc=download,dc=pkd,dc=icao,dc=int")
	assert.True(t, ok)
	assert.Equal(t, "NL", country)
	assert.Equal(t, core.CertTypeDSC, certType)
}

func TestClassifyDN_Crl(t *testing.T) {
	_, certType, ok := classifyDN("cn=crl-1,o=crl,c=US,dc=data,dc=download,dc=pkd")
	assert.True(t, ok)
	assert.Equal(t, core.CertTypeCRL, certType)
}

func TestClassifyDN_Unrecognized(t *testing.T) {
	_, _, ok := classifyDN("cn=foo,dc=example,dc=com")
	assert.False(t, ok)
}

func TestLdapConfig_SearchLimitDefault(t *testing.T) {
	cfg := LdapConfig{}
	assert.Equal(t, 10000, cfg.searchLimit())
	cfg.SearchLimit = 50
	assert.Equal(t, 50, cfg.searchLimit())
}
