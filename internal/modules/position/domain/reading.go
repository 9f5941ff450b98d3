package domain

import (
	"fmt"
	"math"
	"time"

	apperrors "geoattend/internal/platform/errors"
)

// Reading is one fix reported by a position provider.
type Reading struct {
	Latitude  float64
	Longitude float64
	AccuracyM float64
	Provider  string
	SampledAt time.Time
}

func (r Reading) Validate() error {
	if math.IsNaN(r.Latitude) || r.Latitude < -90 || r.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", apperrors.ErrInvalidInput, r.Latitude)
	}
	if math.IsNaN(r.Longitude) || r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", apperrors.ErrInvalidInput, r.Longitude)
	}
	if r.AccuracyM < 0 {
		return fmt.Errorf("%w: negative accuracy", apperrors.ErrInvalidInput)
	}
	return nil
}

type ProviderInfo struct {
	Name    string
	Version string
}
