package application

import (
	"time"
)

// FreshnessTier classifies how current the newest stored reading is. The
// sync loop backs off when the monitor has stopped producing data.
type FreshnessTier int

const (
	// TierLive indicates a reading within the last 15 minutes. Syncs every base interval.
	TierLive FreshnessTier = iota
	// TierLagging indicates a reading within the last hour. Syncs every 2x base.
	TierLagging
	// TierStale indicates a reading within the last day. Syncs every 6x base.
	TierStale
	// TierDormant indicates no reading for a day or more, or none at all. Syncs every 12x base.
	TierDormant
)

// String returns a human-readable name for the freshness tier.
func (t FreshnessTier) String() string {
	switch t {
	case TierLive:
		return "live"
	case TierLagging:
		return "lagging"
	case TierStale:
		return "stale"
	case TierDormant:
		return "dormant"
	default:
		return "unknown"
	}
}

// tierInterval scales the base sync interval for the given tier.
func tierInterval(tier FreshnessTier, base time.Duration) time.Duration {
	switch tier {
	case TierLive:
		return base
	case TierLagging:
		return 2 * base
	case TierStale:
		return 6 * base
	case TierDormant:
		return 12 * base
	default:
		return base
	}
}

// classifyFreshness determines the tier from the newest reading's timestamp
// relative to now. A zero-value time is treated as TierDormant.
func classifyFreshness(newest, now time.Time) FreshnessTier {
	if newest.IsZero() {
		return TierDormant
	}

	elapsed := now.Sub(newest)

	switch {
	case elapsed < 15*time.Minute:
		return TierLive
	case elapsed < time.Hour:
		return TierLagging
	case elapsed < 24*time.Hour:
		return TierStale
	default:
		return TierDormant
	}
}

// ScheduleInfo is an exported view of the sync loop's adaptive schedule,
// used for observability and testing.
type ScheduleInfo struct {
	Tier       FreshnessTier
	NextSyncAt time.Time
	LastSynced time.Time
}
