package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icao-pkd/pkd-core/core"
)

func testEngine() *Engine {
	return NewEngine(nil, Config{BaseDN: "dc=icao,dc=int"}, nil)
}

func TestDnFor_CSCA(t *testing.T) {
	e := testEngine()
	cert := core.Certificate{ID: "abc123", Country: "DE"}
	dn, classes := e.dnFor(cert, core.CertTypeCSCA)
	assert.Equal(t, "cn=cert-abc123,o=csca,c=DE,dc=data,dc=download,dc=pkd,dc=icao,dc=int", dn)
	assert.Equal(t, []string{"top", "cscaCertificateObject"}, classes)
}

func TestDnFor_DSC(t *testing.T) {
	e := testEngine()
	cert := core.Certificate{ID: "def456", Country: "NL"}
	dn, classes := e.dnFor(cert, core.CertTypeDSC)
	assert.Equal(t, "cn=cert-def456,o=dsc,c=NL,dc=data,dc=download,dc=pkd,dc=icao,dc=int", dn)
	assert.Equal(t, []string{"top", "pkiCertificate"}, classes)
}

func TestDnFor_DSCNC_UsesNcDataBranch(t *testing.T) {
	e := testEngine()
	cert := core.Certificate{ID: "ghi789", Country: "US"}
	dn, _ := e.dnFor(cert, core.CertTypeDSCNC)
	assert.Equal(t, "cn=cert-ghi789,o=dsc,c=US,dc=nc-data,dc=download,dc=pkd,dc=icao,dc=int", dn)
}

func TestOrderedTypes_CscaFirst(t *testing.T) {
	assert.Equal(t, core.CertTypeCSCA, orderedTypes[0])
	assert.Equal(t, core.CertTypeDSC, orderedTypes[1])
	assert.Equal(t, core.CertTypeDSCNC, orderedTypes[2])
}

func TestConfig_BatchSizeDefault(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, 500, cfg.batchSize())
	cfg.MaxReconcileBatchSize = 10
	assert.Equal(t, 10, cfg.batchSize())
}
