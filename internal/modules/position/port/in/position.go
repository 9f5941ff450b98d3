package in

import (
	"context"

	"geoattend/internal/modules/position/dto"
)

type Usecase interface {
	// Current takes one sample; failures wrap apperrors.ErrPositionUnavailable.
	Current(ctx context.Context) (dto.ReadingOutput, error)
	Provider(ctx context.Context) (dto.ProviderOutput, error)
}
