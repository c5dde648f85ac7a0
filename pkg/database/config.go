package database

import (
	"net/url"
	"strings"
	"time"
)

// unsupportedDSNParams are query parameters that hosted-Postgres connection
// URLs commonly carry but that the driver configuration does not accept in
// all versions. They are removed before opening the pool.
var unsupportedDSNParams = []string{"sslmode", "channel_binding"}

// NewConfig builds a Config from a DATABASE_URL with default pool sizing.
func NewConfig(databaseURL string) Config {
	return Config{
		DSN:             NormalizeDSN(databaseURL),
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// NormalizeDSN rewrites legacy scheme prefixes and strips query parameters
// the backend does not support.
func NormalizeDSN(raw string) string {
	normalized := raw
	if strings.HasPrefix(normalized, "postgresql+asyncpg://") {
		normalized = "postgresql://" + strings.TrimPrefix(normalized, "postgresql+asyncpg://")
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return normalized
	}
	q := u.Query()
	changed := false
	for _, param := range unsupportedDSNParams {
		if q.Has(param) {
			q.Del(param)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
		return u.String()
	}
	return normalized
}
