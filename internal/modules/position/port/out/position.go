package out

import (
	"context"

	"geoattend/internal/modules/position/domain"
)

type Provider interface {
	Describe(ctx context.Context) (domain.ProviderInfo, error)
	Read(ctx context.Context) (domain.Reading, error)
}
