package out

import (
	"context"

	"geoattend/internal/modules/office/domain"
)

type DirectoryStore interface {
	Load(ctx context.Context) (domain.Directory, error)
	// Watch signals after the directory may have changed. The channel closes
	// when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
