package in

import (
	"context"

	officedto "geoattend/internal/modules/office/dto"
	officein "geoattend/internal/modules/office/port/in"
)

type CLIHandler struct {
	usecase officein.Usecase
}

func NewCLIHandler(usecase officein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context) ([]officedto.OfficeOutput, error) {
	return h.usecase.List(ctx)
}

func (h CLIHandler) Show(ctx context.Context, officeID string) (officedto.OfficeOutput, error) {
	return h.usecase.Show(ctx, officeID)
}

func (h CLIHandler) Members(ctx context.Context, officeID string) ([]officedto.MemberOutput, error) {
	return h.usecase.Members(ctx, officeID)
}
