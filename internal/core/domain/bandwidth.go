package domain

// BandwidthTier is a coarse classification of the current network capacity.
type BandwidthTier string

const (
	TierVeryLow  BandwidthTier = "very-low"
	TierLow      BandwidthTier = "low"
	TierMedium   BandwidthTier = "medium"
	TierHigh     BandwidthTier = "high"
	TierVeryHigh BandwidthTier = "very-high"
	TierUnknown  BandwidthTier = "unknown"
)

// TierWeight maps a tier to a numeric weight used when comparing against
// endpoint bandwidth profiles. Unknown carries the same weight as low so
// that an unclassified network is treated conservatively.
var TierWeight = map[BandwidthTier]int{
	TierVeryLow:  1,
	TierLow:      2,
	TierMedium:   3,
	TierHigh:     4,
	TierVeryHigh: 5,
	TierUnknown:  2,
}

// Quality is the recommended stream quality for a bandwidth tier.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityMedium   Quality = "medium"
	QualityHigh     Quality = "high"
	QualityLossless Quality = "lossless"
)

// Constrained reports whether the tier should trigger bandwidth-saving
// behavior (preferring lighter endpoints and lower qualities).
func (t BandwidthTier) Constrained() bool {
	switch t {
	case TierVeryLow, TierLow, TierUnknown:
		return true
	}
	return false
}
