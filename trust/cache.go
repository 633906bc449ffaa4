package trust

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/internal/blog"
)

// CachedCscaProvider wraps a core.CscaProvider with a Redis read-through
// cache keyed on issuerDN|country, so repeated PA verifications against the
// same CSCA don't re-hit LDAP on every request. Any cache error (miss,
// connection failure, corrupt entry) transparently falls through to the
// wrapped provider — the cache is an optimization, never a dependency the
// lookup can fail on.
type CachedCscaProvider struct {
	inner core.CscaProvider
	rdb   *redis.Client
	ttl   time.Duration
	log   blog.Logger
}

// NewCachedCscaProvider wraps inner with a cache backed by rdb. ttl <= 0
// defaults to 1 hour.
func NewCachedCscaProvider(inner core.CscaProvider, rdb *redis.Client, ttl time.Duration, log blog.Logger) *CachedCscaProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = blog.Get()
	}
	return &CachedCscaProvider{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(issuerDN, country string) string {
	return fmt.Sprintf("pkd:csca:%s|%s", issuerDN, country)
}

// FindByIssuerDN checks the cache before delegating to the wrapped provider,
// and populates the cache on a successful lookup. A found-but-empty result
// is also cached (as a tombstone) so repeated misses don't keep hammering
// LDAP for a CSCA that genuinely isn't on file.
func (c *CachedCscaProvider) FindByIssuerDN(ctx context.Context, issuerDN, country string) (*x509.Certificate, error) {
	key := cacheKey(issuerDN, country)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		if len(raw) == 0 {
			return nil, nil
		}
		cert, perr := x509.ParseCertificate(raw)
		if perr == nil {
			return cert, nil
		}
		c.log.Warning(fmt.Sprintf("trust: discarding corrupt cache entry %s: %s", key, perr))
	} else if err != redis.Nil {
		c.log.Warning(fmt.Sprintf("trust: cache get failed for %s: %s", key, err))
	}

	cert, err := c.inner.FindByIssuerDN(ctx, issuerDN, country)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if cert != nil {
		payload = cert.Raw
	}
	if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
		c.log.Warning(fmt.Sprintf("trust: cache set failed for %s: %s", key, serr))
	}
	return cert, nil
}

// FindAllByIssuerDN is not cached; it always reads the full candidate set
// from the wrapped provider.
func (c *CachedCscaProvider) FindAllByIssuerDN(ctx context.Context, issuerDN string) ([]*x509.Certificate, error) {
	return c.inner.FindAllByIssuerDN(ctx, issuerDN)
}
