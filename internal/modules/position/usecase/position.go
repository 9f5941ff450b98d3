package usecase

import (
	"context"

	positiondto "geoattend/internal/modules/position/dto"
	positionin "geoattend/internal/modules/position/port/in"
	"geoattend/internal/modules/position/service"
)

type Interactor struct {
	svc *service.PositionService
}

func NewInteractor(svc *service.PositionService) positionin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Current(ctx context.Context) (positiondto.ReadingOutput, error) {
	r, err := i.svc.Current(ctx)
	if err != nil {
		return positiondto.ReadingOutput{}, err
	}
	return positiondto.ReadingOutput{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		AccuracyM: r.AccuracyM,
		Provider:  r.Provider,
		SampledAt: r.SampledAt,
	}, nil
}

func (i *Interactor) Provider(ctx context.Context) (positiondto.ProviderOutput, error) {
	info, err := i.svc.Describe(ctx)
	if err != nil {
		return positiondto.ProviderOutput{}, err
	}
	return positiondto.ProviderOutput{Name: info.Name, Version: info.Version}, nil
}
