package out

import (
	"context"

	"geoattend/internal/modules/position/domain"
	positionout "geoattend/internal/modules/position/port/out"
)

// StaticProvider reports a configured fixed position, for desks that do not
// move and for headless runs.
type StaticProvider struct {
	latitude, longitude, accuracy float64
}

func NewStaticProvider(latitude, longitude, accuracyM float64) positionout.Provider {
	return &StaticProvider{latitude: latitude, longitude: longitude, accuracy: accuracyM}
}

func (p *StaticProvider) Describe(context.Context) (domain.ProviderInfo, error) {
	return domain.ProviderInfo{Name: "static"}, nil
}

func (p *StaticProvider) Read(ctx context.Context) (domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reading{}, err
	}
	return domain.Reading{Latitude: p.latitude, Longitude: p.longitude, AccuracyM: p.accuracy, Provider: "static"}, nil
}
