// Package bandwidth classifies network observations into discrete tiers
// and recommends a stream quality per tier. Classification is pure; the
// Watcher holds the most recent observation for the rest of the engine.
package bandwidth

import (
	"github.com/streamforge/resolver/internal/core/domain"
)

// ConnectionType is the coarse link type reported by the platform.
type ConnectionType string

const (
	ConnectionWifi     ConnectionType = "wifi"
	ConnectionEthernet ConnectionType = "ethernet"
	ConnectionCellular ConnectionType = "cellular"
	ConnectionUnknown  ConnectionType = "unknown"
)

// CellularGeneration is the mobile network generation, when known.
type CellularGeneration string

const (
	Cellular2G      CellularGeneration = "2g"
	Cellular3G      CellularGeneration = "3g"
	Cellular4G      CellularGeneration = "4g"
	Cellular5G      CellularGeneration = "5g"
	CellularUnknown CellularGeneration = ""
)

// Observation is one snapshot from the network observation provider.
type Observation struct {
	Connection ConnectionType
	Generation CellularGeneration
	Metered    bool
}

// Classify maps an observation to a bandwidth tier. Pure and side-effect
// free; every component derives quality through RecommendedQuality rather
// than re-deriving it from tiers independently.
func Classify(obs Observation) domain.BandwidthTier {
	switch obs.Connection {
	case ConnectionWifi, ConnectionEthernet:
		return domain.TierVeryHigh
	case ConnectionCellular:
		switch obs.Generation {
		case Cellular2G:
			return domain.TierVeryLow
		case Cellular3G:
			return domain.TierLow
		case Cellular4G:
			if obs.Metered {
				return domain.TierMedium
			}
			return domain.TierHigh
		case Cellular5G:
			return domain.TierVeryHigh
		}
		return domain.TierLow
	}
	// Unclassified networks are treated conservatively.
	return domain.TierLow
}

// RecommendedQuality maps a tier to the stream quality the engine should
// request from extractors.
func RecommendedQuality(tier domain.BandwidthTier) domain.Quality {
	switch tier {
	case domain.TierVeryLow:
		return domain.QualityLow
	case domain.TierLow:
		return domain.QualityLow
	case domain.TierMedium:
		return domain.QualityMedium
	case domain.TierHigh:
		return domain.QualityHigh
	case domain.TierVeryHigh:
		return domain.QualityHigh
	}
	return domain.QualityLow
}
