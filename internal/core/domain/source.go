package domain

import (
	"context"
	"time"
)

// Endpoint is one extraction route offered by a source, tried in the order
// configured. BandwidthProfile uses the same 1..5 scale as TierWeight; an
// endpoint heavier than the current tier allows is skipped.
type Endpoint struct {
	URLTemplate      string        `yaml:"url_template"`
	Timeout          time.Duration `yaml:"timeout"`
	BandwidthProfile int           `yaml:"bandwidth_profile"`
	Optimized        bool          `yaml:"optimized"`
}

// ExtractionHints carries optional per-request context to extractors.
type ExtractionHints struct {
	Genre     string
	DataSaver bool
	Quality   Quality
}

// Extractor resolves a content id through one endpoint of one source.
// Implementations must honor ctx cancellation at every blocking call.
type Extractor func(ctx context.Context, id ContentID, ep Endpoint, tier BandwidthTier, hints ExtractionHints) (*StreamDescriptor, error)

// SourceConfig is the static configuration for one upstream source.
// Loaded at startup and read-only thereafter; the Extractor field is bound
// from the extractor table when the registry is built.
type SourceConfig struct {
	ID               string        `yaml:"id"`
	ExtractorName    string        `yaml:"extractor"`
	Endpoints        []Endpoint    `yaml:"endpoints"`
	GenreAffinities  []string      `yaml:"genre_affinities"`
	SuccessWeight    float64       `yaml:"success_weight"`
	CooldownDuration time.Duration `yaml:"cooldown"`
	FailureThreshold int           `yaml:"failure_threshold"`

	Extractor Extractor `yaml:"-"`
}

// MatchesGenre reports whether the source declares affinity for the genre.
func (s *SourceConfig) MatchesGenre(genre string) bool {
	if genre == "" {
		return false
	}
	for _, g := range s.GenreAffinities {
		if g == genre {
			return true
		}
	}
	return false
}

// BandwidthOptimized reports whether any endpoint is flagged as optimized
// for constrained networks.
func (s *SourceConfig) BandwidthOptimized() bool {
	for _, ep := range s.Endpoints {
		if ep.Optimized {
			return true
		}
	}
	return false
}
