package registry

import (
	"log/slog"
	"sort"

	"github.com/streamforge/resolver/internal/core/domain"
	"github.com/streamforge/resolver/internal/health"
)

// Criteria is the request context the selector orders sources by.
type Criteria struct {
	Genre          string
	DataSaver      bool
	Tier           domain.BandwidthTier
	ForcedSourceID string
}

// Selector builds candidate chains from the registry, consulting the
// health monitor and the request criteria.
type Selector struct {
	registry       *Registry
	health         *health.Monitor
	maxChainLength int
}

// NewSelector creates a selector capping chains at maxChainLength sources.
func NewSelector(r *Registry, m *health.Monitor, maxChainLength int) *Selector {
	return &Selector{registry: r, health: m, maxChainLength: maxChainLength}
}

// BuildChain produces the ordered candidate chain for one resolution.
//
// A forced source id bypasses health filtering and ordering entirely. When
// every source is in cooldown the monitor is reset and the chain rebuilt
// once: one more failed attempt beats a total lockout, at the accepted risk
// of a thundering herd against sources that only just entered cooldown.
func (s *Selector) BuildChain(c Criteria) ([]*domain.SourceConfig, error) {
	if c.ForcedSourceID != "" {
		src, ok := s.registry.Get(c.ForcedSourceID)
		if !ok {
			return nil, domain.NewError(domain.KindInvalidInput, c.ForcedSourceID, "forced source is not configured")
		}
		return []*domain.SourceConfig{src}, nil
	}

	if s.registry.Len() == 0 {
		return nil, domain.NewError(domain.KindNoHealthySources, "", "no sources configured")
	}

	chain := s.healthyChain()
	if len(chain) == 0 {
		slog.Warn("All sources in cooldown, resetting health monitor")
		s.health.Reset()
		chain = s.healthyChain()
	}
	if len(chain) == 0 {
		return nil, domain.NewError(domain.KindNoHealthySources, "", "no healthy sources after reset")
	}

	s.order(chain, c)

	if len(chain) > s.maxChainLength {
		chain = chain[:s.maxChainLength]
	}
	return chain, nil
}

func (s *Selector) healthyChain() []*domain.SourceConfig {
	var chain []*domain.SourceConfig
	for _, src := range s.registry.All() {
		if s.health.IsHealthy(src.ID) {
			chain = append(chain, src)
		}
	}
	return chain
}

// order sorts the chain by genre-affinity match, then bandwidth-optimized
// when constrained, then descending success weight. Stable so configuration
// order breaks ties.
func (s *Selector) order(chain []*domain.SourceConfig, c Criteria) {
	constrained := c.DataSaver || c.Tier.Constrained()

	sort.SliceStable(chain, func(i, j int) bool {
		gi, gj := chain[i].MatchesGenre(c.Genre), chain[j].MatchesGenre(c.Genre)
		if gi != gj {
			return gi
		}
		if constrained {
			oi, oj := chain[i].BandwidthOptimized(), chain[j].BandwidthOptimized()
			if oi != oj {
				return oi
			}
		}
		return chain[i].SuccessWeight > chain[j].SuccessWeight
	})
}
