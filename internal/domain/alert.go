package domain

import "time"

// AlertTier classifies a floor alert. Tiers are independent and
// non-exclusive; an item may fire several tiers, but each tier fires at most
// once per item for the lifetime of the stored marks.
type AlertTier string

const (
	// TierTrash fires the first time an item appears in the ranked window,
	// regardless of price.
	TierTrash AlertTier = "trash"
	// TierHalf fires when the effective price drops to floor * half_factor.
	TierHalf AlertTier = "half"
	// TierSuper fires when the effective price drops to floor * super_factor.
	TierSuper AlertTier = "super"
)

// AlertMark records that an alert of a given tier was decided for an item.
// The mark is written before delivery; delivery failures do not remove it.
type AlertMark struct {
	TokenAddress string
	Tier         AlertTier
	SentAt       time.Time
}

// Thresholds computes the floor (rank-1) and second (rank-2) effective
// prices from an ascending ranked list. It returns ok=false when fewer than
// two ranked rows exist, in which case threshold tiers must be skipped.
func Thresholds(effective []float64) (floor, second float64, ok bool) {
	if len(effective) < 2 {
		return 0, 0, false
	}
	return effective[0], effective[1], true
}
