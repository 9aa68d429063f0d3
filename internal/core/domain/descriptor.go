package domain

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Descriptor TTL bounds. TTLs outside this range are clamped at construction.
const (
	MinDescriptorTTL = 1 * time.Minute
	MaxDescriptorTTL = 6 * time.Hour
)

// TrackMetadata carries display metadata attached to a resolved stream.
type TrackMetadata struct {
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Album    string        `json:"album,omitempty"`
	Genre    string        `json:"genre,omitempty"`
	Artwork  string        `json:"artwork,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// StreamDescriptor is the validated result of a successful extraction.
// Immutable once produced; only schema-validated extractions yield one.
type StreamDescriptor struct {
	URL              string        `json:"url"`
	Format           string        `json:"format"`
	Quality          Quality       `json:"quality"`
	SourceID         string        `json:"source_id"`
	SourcePath       string        `json:"source_path,omitempty"`
	Metadata         TrackMetadata `json:"metadata"`
	CacheKey         string        `json:"cache_key"`
	TTL              time.Duration `json:"ttl"`
	ExtractionTime   time.Time     `json:"extraction_time"`
	BandwidthAdapted bool          `json:"bandwidth_adapted"`
}

// Validate enforces the descriptor schema. An extraction result that fails
// here is treated as a source failure, never returned to callers.
func (d *StreamDescriptor) Validate() error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.URL, validation.Required, is.URL),
		validation.Field(&d.Format, validation.Required),
		validation.Field(&d.Quality, validation.Required, validation.In(
			QualityLow, QualityMedium, QualityHigh, QualityLossless,
		)),
		validation.Field(&d.SourceID, validation.Required),
	)
	if err != nil {
		return NewError(KindValidationFailed, d.SourceID, err.Error())
	}
	return nil
}

// ClampTTL returns the descriptor TTL bounded to [MinDescriptorTTL, MaxDescriptorTTL].
func (d *StreamDescriptor) ClampTTL() time.Duration {
	switch {
	case d.TTL < MinDescriptorTTL:
		return MinDescriptorTTL
	case d.TTL > MaxDescriptorTTL:
		return MaxDescriptorTTL
	}
	return d.TTL
}
