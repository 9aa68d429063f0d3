package bandwidth

import (
	"testing"

	"github.com/streamforge/resolver/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		obs    Observation
		expect domain.BandwidthTier
	}{
		{"wifi", Observation{Connection: ConnectionWifi}, domain.TierVeryHigh},
		{"ethernet", Observation{Connection: ConnectionEthernet}, domain.TierVeryHigh},
		{"metered wifi still very high", Observation{Connection: ConnectionWifi, Metered: true}, domain.TierVeryHigh},
		{"2g", Observation{Connection: ConnectionCellular, Generation: Cellular2G}, domain.TierVeryLow},
		{"3g", Observation{Connection: ConnectionCellular, Generation: Cellular3G}, domain.TierLow},
		{"4g", Observation{Connection: ConnectionCellular, Generation: Cellular4G}, domain.TierHigh},
		{"4g metered", Observation{Connection: ConnectionCellular, Generation: Cellular4G, Metered: true}, domain.TierMedium},
		{"5g", Observation{Connection: ConnectionCellular, Generation: Cellular5G}, domain.TierVeryHigh},
		{"cellular unknown gen", Observation{Connection: ConnectionCellular}, domain.TierLow},
		{"unknown connection", Observation{Connection: ConnectionUnknown}, domain.TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.obs); got != tt.expect {
				t.Errorf("Classify(%+v) = %s, want %s", tt.obs, got, tt.expect)
			}
		})
	}
}

func TestRecommendedQuality(t *testing.T) {
	tests := []struct {
		tier   domain.BandwidthTier
		expect domain.Quality
	}{
		{domain.TierVeryLow, domain.QualityLow},
		{domain.TierLow, domain.QualityLow},
		{domain.TierMedium, domain.QualityMedium},
		{domain.TierHigh, domain.QualityHigh},
		{domain.TierVeryHigh, domain.QualityHigh},
		{domain.TierUnknown, domain.QualityLow},
	}

	for _, tt := range tests {
		if got := RecommendedQuality(tt.tier); got != tt.expect {
			t.Errorf("RecommendedQuality(%s) = %s, want %s", tt.tier, got, tt.expect)
		}
	}
}

func TestWatcher_ObserveUpdatesTier(t *testing.T) {
	w := NewWatcher()

	if w.Current() != domain.TierUnknown {
		t.Fatalf("expected initial tier unknown, got %s", w.Current())
	}

	w.Observe(Observation{Connection: ConnectionWifi})
	if w.Current() != domain.TierVeryHigh {
		t.Errorf("expected very-high after wifi, got %s", w.Current())
	}

	w.Observe(Observation{Connection: ConnectionCellular, Generation: Cellular3G, Metered: true})
	if w.Current() != domain.TierLow {
		t.Errorf("expected low after 3g, got %s", w.Current())
	}
	if !w.Metered() {
		t.Errorf("expected metered connection")
	}
}
