// Package stats implements the Stat Collector (spec §4.5): DB-side and
// LDAP-side counts of tracked certificate material, feeding the sync-status
// discrepancy computation of cmd/pkd-scheduler and the admin API's sync
// check.
package stats

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/errors"
)

// DbStats is the result of collect_db_stats, per spec §4.5.
type DbStats struct {
	ByType           map[core.CertType]int
	ByCountryAndType map[string]map[core.CertType]int
	CRLCount         int
	StoredInLDAP     int
}

// CollectDBStats issues the aggregation queries spec §4.5 describes:
// grouped by certificate_type and by (country_code, certificate_type), plus
// a CRL count and a storedInLdap count.
func CollectDBStats(ctx context.Context, store core.Store) (*DbStats, error) {
	byType, err := store.CountCertificatesByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count by type: %w", err)
	}
	byCountry, err := store.CountCertificatesByCountryAndType(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count by country and type: %w", err)
	}
	crlCount, err := store.CountCRLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count crls: %w", err)
	}
	stored, err := store.CountStoredInLDAP(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count stored in ldap: %w", err)
	}
	return &DbStats{
		ByType:           byType,
		ByCountryAndType: byCountry,
		CRLCount:         crlCount,
		StoredInLDAP:     stored,
	}, nil
}

// LdapStats is the result of collect_ldap_stats, per spec §4.5.
type LdapStats struct {
	ByType           map[core.CertType]int
	ByCountryAndType map[string]map[core.CertType]int
	CRLCount         int
	NonConformantDSC int
}

// LdapConfig names the read-endpoint connection and base DNs CollectLDAPStats
// binds against.
type LdapConfig struct {
	URL          string
	BindDN       string
	BindPassword string
	BaseDN       string
	SearchLimit  int
}

func (c LdapConfig) searchLimit() int {
	if c.SearchLimit <= 0 {
		return 10000
	}
	return c.SearchLimit
}

// CollectLDAPStats binds to the read endpoint, subtree-searches under
// dc=data,dc=download,<base> classifying entries by the o=csca|o=dsc|o=crl
// RDN in their DN (country from c=), then runs a second subtree search
// under dc=nc-data,… to count non-conformant DSCs, per spec §4.5.
func CollectLDAPStats(ctx context.Context, cfg LdapConfig) (*LdapStats, error) {
	conn, err := ldap.DialURL(cfg.URL)
	if err != nil {
		return nil, errors.UnavailableError("stats: dial: %s", err)
	}
	defer conn.Close()
	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			return nil, errors.UnavailableError("stats: bind: %s", err)
		}
	}

	out := &LdapStats{
		ByType:           make(map[core.CertType]int),
		ByCountryAndType: make(map[string]map[core.CertType]int),
	}

	dataBase := fmt.Sprintf("dc=data,dc=download,%s", cfg.BaseDN)
	entries, err := searchSubtree(conn, dataBase, cfg.searchLimit())
	if err != nil {
		return nil, fmt.Errorf("stats: data subtree search: %w", err)
	}
	for _, dn := range entries {
		country, certType, ok := classifyDN(dn)
		if !ok {
			continue
		}
		if certType == core.CertTypeCRL {
			out.CRLCount++
			continue
		}
		out.ByType[certType]++
		if out.ByCountryAndType[country] == nil {
			out.ByCountryAndType[country] = make(map[core.CertType]int)
		}
		out.ByCountryAndType[country][certType]++
	}

	ncBase := fmt.Sprintf("dc=nc-data,dc=download,%s", cfg.BaseDN)
	ncEntries, err := searchSubtree(conn, ncBase, cfg.searchLimit())
	if err != nil {
		return nil, fmt.Errorf("stats: nc-data subtree search: %w", err)
	}
	out.NonConformantDSC = len(ncEntries)

	return out, nil
}

func searchSubtree(conn *ldap.Conn, base string, limit int) ([]string, error) {
	req := ldap.NewSearchRequest(
		base,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, limit, 0, false,
		"(objectClass=pkdDownload)",
		[]string{"dn"},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		return nil, err
	}
	dns := make([]string, 0, len(result.Entries))
	for _, e := range result.Entries {
		dns = append(dns, e.DN)
	}
	return dns, nil
}

// classifyDN extracts country (c=) and certificate type (o=csca|o=dsc|o=crl)
// from an entry DN, per spec §4.5. Note core.CertTypeCRL is a sentinel
// declared in package core and used only for classification bucketing; it is not part of the
// persisted CertType enum (§3), which does not track CRLs as certificates.
func classifyDN(dn string) (country string, certType core.CertType, ok bool) {
	parts := strings.Split(dn, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		switch key {
		case "c":
			if country == "" {
				country = strings.ToUpper(val)
			}
		case "o":
			switch strings.ToLower(val) {
			case "csca":
				certType, ok = core.CertTypeCSCA, true
			case "dsc":
				certType, ok = core.CertTypeDSC, true
			case "crl":
				certType, ok = core.CertTypeCRL, true
			}
		}
	}
	return country, certType, ok
}
