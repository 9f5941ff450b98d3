package in

import (
	"context"

	positiondto "geoattend/internal/modules/position/dto"
	positionin "geoattend/internal/modules/position/port/in"
)

type CLIHandler struct {
	usecase positionin.Usecase
}

func NewCLIHandler(usecase positionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Current(ctx context.Context) (positiondto.ReadingOutput, error) {
	return h.usecase.Current(ctx)
}

func (h CLIHandler) Provider(ctx context.Context) (positiondto.ProviderOutput, error) {
	return h.usecase.Provider(ctx)
}
