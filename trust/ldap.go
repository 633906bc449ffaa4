// Package trust implements the Trust Store Providers (spec §4.2): LDAP-backed
// lookup of CSCA certificates and country CRLs, with a read-through cache in
// front of the CSCA path.
package trust

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/errors"
	"github.com/icao-pkd/pkd-core/internal/blog"
	"github.com/icao-pkd/pkd-core/sod"
)

// Config configures a bound LDAP connection against the PKD read endpoint,
// which may itself be a load-balancer URI fronting several directory
// servers.
type Config struct {
	URL          string
	BindDN       string
	BindPassword string
	BaseDN       string
	DialTimeout  time.Duration
	SearchLimit  int
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout <= 0 {
		return 10 * time.Second
	}
	return c.DialTimeout
}

func (c Config) searchLimit() int {
	if c.SearchLimit <= 0 {
		return 100
	}
	return c.SearchLimit
}

// LdapProvider implements core.CscaProvider and core.CrlProvider against a
// directory reachable at Config.URL. Each call dials, binds, searches, and
// closes the connection — this mirrors the short-lived-connection pattern
// the teacher's own database helpers use rather than holding one LDAP
// connection open for the process lifetime, since the read endpoint is
// commonly a load balancer that expects connection churn.
type LdapProvider struct {
	cfg Config
	log blog.Logger
}

// NewLdapProvider constructs an LdapProvider. log may be nil, in which case
// the process-wide default logger is used.
func NewLdapProvider(cfg Config, log blog.Logger) *LdapProvider {
	if log == nil {
		log = blog.Get()
	}
	return &LdapProvider{cfg: cfg, log: log}
}

func (p *LdapProvider) dial(ctx context.Context) (*ldap.Conn, error) {
	conn, err := ldap.DialURL(p.cfg.URL, ldap.DialWithDialer(&net.Dialer{Timeout: p.cfg.dialTimeout()}))
	if err != nil {
		return nil, errors.UnavailableError("trust: dial %s: %s", p.cfg.URL, err)
	}
	if p.cfg.BindDN != "" {
		if err := conn.Bind(p.cfg.BindDN, p.cfg.BindPassword); err != nil {
			conn.Close()
			return nil, errors.UnavailableError("trust: bind: %s", err)
		}
	}
	return conn, nil
}

// cscaSearchBase builds the o=csca,c=<CC>,... search base named in spec §4.2.
func (p *LdapProvider) cscaSearchBase(country string) string {
	return fmt.Sprintf("o=csca,c=%s,dc=data,dc=download,%s", strings.ToUpper(country), p.cfg.BaseDN)
}

// crlSearchBase builds the o=crl,c=<CC>,... search base named in spec §4.2.
func (p *LdapProvider) crlSearchBase(country string) string {
	return fmt.Sprintf("o=crl,c=%s,dc=data,dc=download,%s", strings.ToUpper(country), p.cfg.BaseDN)
}

// FindByIssuerDN resolves a single CSCA certificate for issuerDN, deriving
// country from the DN's C= attribute when country is empty, per spec §4.2.
// Never errors on an empty result — absence is reported as (nil, nil).
func (p *LdapProvider) FindByIssuerDN(ctx context.Context, issuerDN, country string) (*x509.Certificate, error) {
	if country == "" {
		country = sod.ExtractDNAttribute(issuerDN, "C")
	}
	country = strings.ToUpper(country)
	if country == "" {
		return nil, nil
	}

	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		p.cscaSearchBase(country),
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, p.cfg.searchLimit(), 0, false,
		"(objectClass=pkdDownload)",
		[]string{"userCertificate;binary"},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		p.log.Warning(fmt.Sprintf("trust: csca search failed for %s: %s", country, err))
		return nil, nil
	}

	candidates := parseCertificates(result.Entries, "userCertificate;binary", p.log)
	if len(candidates) == 0 {
		return nil, nil
	}
	return selectByCN(candidates, issuerDN), nil
}

// FindAllByIssuerDN returns every CSCA certificate on file for issuerDN's
// country, enumerating the candidates rather than picking one.
func (p *LdapProvider) FindAllByIssuerDN(ctx context.Context, issuerDN string) ([]*x509.Certificate, error) {
	country := sod.ExtractDNAttribute(issuerDN, "C")
	if country == "" {
		return nil, nil
	}

	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		p.cscaSearchBase(country),
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, p.cfg.searchLimit(), 0, false,
		"(objectClass=pkdDownload)",
		[]string{"userCertificate;binary"},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("trust: csca search: %w", err)
	}
	return parseCertificates(result.Entries, "userCertificate;binary", p.log), nil
}

// FindByCountry resolves a country's CRL, per spec §4.2.
func (p *LdapProvider) FindByCountry(ctx context.Context, country string) (*core.CRL, error) {
	country = strings.ToUpper(country)
	if country == "" {
		return nil, nil
	}

	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		p.crlSearchBase(country),
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, p.cfg.searchLimit(), 0, false,
		"(objectClass=pkdDownload)",
		[]string{"certificateRevocationList;binary"},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		p.log.Warning(fmt.Sprintf("trust: crl search failed for %s: %s", country, err))
		return nil, nil
	}
	if len(result.Entries) == 0 {
		return nil, nil
	}

	der := result.Entries[0].GetRawAttributeValue("certificateRevocationList;binary")
	if len(der) == 0 {
		return nil, nil
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		p.log.Warning(fmt.Sprintf("trust: crl parse failed for %s: %s", country, err))
		return nil, nil
	}
	return &core.CRL{
		Country:     country,
		IssuerDN:    crl.Issuer.String(),
		ThisUpdate:  crl.ThisUpdate,
		NextUpdate:  crl.NextUpdate,
		DER:         der,
		Fingerprint: sod.FingerprintSHA256(der),
	}, nil
}

// parseCertificates converts every LDAP entry's binary certificate attribute
// into a *x509.Certificate, falling back to the lenient parser and skipping
// (with a log line) any entry that still fails to parse.
func parseCertificates(entries []*ldap.Entry, attr string, log blog.Logger) []*x509.Certificate {
	out := make([]*x509.Certificate, 0, len(entries))
	for _, e := range entries {
		der := e.GetRawAttributeValue(attr)
		if len(der) == 0 {
			continue
		}
		cert, err := sod.ParseCertificateLenient(der)
		if err != nil {
			log.Warning(fmt.Sprintf("trust: skipping unparseable certificate from %s: %s", e.DN, err))
			continue
		}
		out = append(out, cert)
	}
	return out
}

// selectByCN implements the match policy of spec §4.2: prefer exact
// case-insensitive equality of the extracted CN, then substring match either
// direction, else the first candidate.
func selectByCN(candidates []*x509.Certificate, issuerDN string) *x509.Certificate {
	if len(candidates) == 1 {
		return candidates[0]
	}
	wantCN := strings.ToLower(sod.ExtractDNAttribute(issuerDN, "CN"))
	if wantCN == "" {
		return candidates[0]
	}

	for _, c := range candidates {
		if strings.ToLower(sod.ExtractDNAttribute(c.Subject.String(), "CN")) == wantCN {
			return c
		}
	}
	for _, c := range candidates {
		gotCN := strings.ToLower(sod.ExtractDNAttribute(c.Subject.String(), "CN"))
		if gotCN == "" {
			continue
		}
		if strings.Contains(gotCN, wantCN) || strings.Contains(wantCN, gotCN) {
			return c
		}
	}
	return candidates[0]
}
