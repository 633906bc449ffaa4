package trust

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCscaSearchBase(t *testing.T) {
	p := NewLdapProvider(Config{BaseDN: "dc=icao,dc=int"}, nil)
	assert.Equal(t, "o=csca,c=DE,dc=data,dc=download,dc=icao,dc=int", p.cscaSearchBase("de"))
}

func TestCrlSearchBase(t *testing.T) {
	p := NewLdapProvider(Config{BaseDN: "dc=icao,dc=int"}, nil)
	assert.Equal(t, "o=crl,c=NL,dc=data,dc=download,dc=icao,dc=int", p.crlSearchBase("nl"))
}

func certWithCN(cn string) *x509.Certificate {
	return &x509.Certificate{Subject: pkix.Name{CommonName: cn}}
}

func TestSelectByCN_ExactMatch(t *testing.T) {
	candidates := []*x509.Certificate{certWithCN("CSCA Germany 02"), certWithCN("CSCA Germany 01")}
	got := selectByCN(candidates, "CN=CSCA Germany 01,C=DE")
	assert.Equal(t, "CSCA Germany 01", got.Subject.CommonName)
}

func TestSelectByCN_SubstringFallback(t *testing.T) {
	candidates := []*x509.Certificate{certWithCN("CSCA Germany Root"), certWithCN("CSCA Netherlands Root")}
	got := selectByCN(candidates, "CN=Germany,C=DE")
	assert.Equal(t, "CSCA Germany Root", got.Subject.CommonName)
}

func TestSelectByCN_FirstFallback(t *testing.T) {
	candidates := []*x509.Certificate{certWithCN("Alpha"), certWithCN("Beta")}
	got := selectByCN(candidates, "CN=NoMatchAtAll,C=XX")
	assert.Equal(t, "Alpha", got.Subject.CommonName)
}

func TestSelectByCN_SingleCandidateShortCircuits(t *testing.T) {
	candidates := []*x509.Certificate{certWithCN("Only")}
	got := selectByCN(candidates, "CN=SomethingElse,C=XX")
	assert.Equal(t, "Only", got.Subject.CommonName)
}
