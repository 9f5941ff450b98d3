package out

import (
	"context"

	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	positionin "geoattend/internal/modules/position/port/in"
)

type PositionBridge struct {
	positions positionin.Usecase
}

var _ attendanceout.PositionSource = (*PositionBridge)(nil)

func NewPositionBridge(positions positionin.Usecase) *PositionBridge {
	return &PositionBridge{positions: positions}
}

func (b *PositionBridge) Current(ctx context.Context) (domain.Position, error) {
	r, err := b.positions.Current(ctx)
	if err != nil {
		return domain.Position{}, err
	}
	return domain.Position{
		Coordinates: domain.Coordinates{Latitude: r.Latitude, Longitude: r.Longitude},
		AccuracyM:   r.AccuracyM,
		Provider:    r.Provider,
		SampledAt:   r.SampledAt,
	}, nil
}
