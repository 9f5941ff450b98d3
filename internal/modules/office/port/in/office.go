package in

import (
	"context"

	"geoattend/internal/modules/office/dto"
)

type Usecase interface {
	List(ctx context.Context) ([]dto.OfficeOutput, error)
	Show(ctx context.Context, officeID string) (dto.OfficeOutput, error)
	Members(ctx context.Context, officeID string) ([]dto.MemberOutput, error)
	// Resolve streams the user's office now and after every directory change.
	Resolve(ctx context.Context, userID string) (<-chan dto.ResolutionOutput, error)
}
