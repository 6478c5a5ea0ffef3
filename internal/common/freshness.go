// Package common provides shared utilities for Drift
package common

import "time"

// Freshness TTLs for cached market data
const (
	FreshnessQuote   = 15 * time.Minute // current price
	FreshnessHistory = 20 * time.Hour   // daily close series rolls once per trading day
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
