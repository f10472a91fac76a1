// Package checkincache remembers which users already checked in today so
// repeated scans can be refused without a ledger round trip. The ledger stays
// the source of truth; a cache miss only means "ask the ledger".
package checkincache

import (
	"time"

	"nfcattend/pkg/domain"
)

// DefaultGrace keeps keys a little past midnight to absorb clock skew.
const DefaultGrace = 5 * time.Minute

// ttlUntilEndOfDay returns how long a key for day should live at now.
func ttlUntilEndOfDay(day domain.Day, now time.Time, grace time.Duration) time.Duration {
	ttl := day.End().Sub(now) + grace
	if ttl < grace {
		return grace
	}
	return ttl
}
