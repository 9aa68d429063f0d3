package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/streamforge/resolver/internal/core/domain"
)

// extractorTable maps the extractor names usable in configuration to
// implementations. Adding a source is configuration plus, at most, one new
// entry here.
func extractorTable() map[string]domain.Extractor {
	client := &http.Client{}
	return map[string]domain.Extractor{
		"http_json": httpJSONExtractor(client),
	}
}

// httpJSONExtractor fetches the endpoint URL template with {id} expanded
// and expects a stream descriptor as JSON.
func httpJSONExtractor(client *http.Client) domain.Extractor {
	return func(ctx context.Context, id domain.ContentID, ep domain.Endpoint, tier domain.BandwidthTier, hints domain.ExtractionHints) (*domain.StreamDescriptor, error) {
		url := strings.ReplaceAll(ep.URLTemplate, "{id}", string(id))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("extraction request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("extraction returned status %d", resp.StatusCode)
		}

		var desc domain.StreamDescriptor
		if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
			return nil, fmt.Errorf("malformed extraction response: %w", err)
		}

		desc.CacheKey = id.CacheKey()
		desc.ExtractionTime = time.Now()
		if desc.Quality == "" {
			desc.Quality = hints.Quality
		}
		desc.BandwidthAdapted = desc.Quality != domain.QualityHigh && tier.Constrained()
		return &desc, nil
	}
}
