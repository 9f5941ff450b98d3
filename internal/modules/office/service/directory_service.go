package service

import (
	"context"
	"fmt"

	"geoattend/internal/modules/office/domain"
	officeout "geoattend/internal/modules/office/port/out"
	apperrors "geoattend/internal/platform/errors"

	hclog "github.com/hashicorp/go-hclog"
)

type DirectoryService struct {
	store  officeout.DirectoryStore
	logger hclog.Logger
}

func NewDirectoryService(store officeout.DirectoryStore, logger hclog.Logger) *DirectoryService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &DirectoryService{store: store, logger: logger.Named("offices")}
}

// Directory loads and validates the current directory.
func (s *DirectoryService) Directory(ctx context.Context) (domain.Directory, error) {
	dir, err := s.store.Load(ctx)
	if err != nil {
		return domain.Directory{}, err
	}
	if err := dir.Validate(); err != nil {
		return domain.Directory{}, err
	}
	return dir, nil
}

// Resolve emits the user's office and re-emits whenever a directory change
// alters it. Load failures are emitted as ErrOfficeUnresolved resolutions;
// the stream stays open so a later fix is picked up.
func (s *DirectoryService) Resolve(ctx context.Context, userID string) (<-chan domain.Resolution, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	changes, err := s.store.Watch(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan domain.Resolution, 1)
	go func() {
		defer close(out)
		var last *domain.Resolution
		emit := func() bool {
			res := s.resolve(ctx, userID)
			if last != nil && last.Same(res) {
				return true
			}
			select {
			case out <- res:
				last = &res
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok || !emit() {
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *DirectoryService) resolve(ctx context.Context, userID string) domain.Resolution {
	dir, err := s.Directory(ctx)
	if err != nil {
		s.logger.Warn("office directory unavailable", "user", userID, "error", err)
		return domain.Resolution{Err: fmt.Errorf("%w: %v", apperrors.ErrOfficeUnresolved, err)}
	}
	office, ok := dir.OfficeFor(userID)
	if !ok {
		s.logger.Debug("user has no office", "user", userID)
		return domain.Resolution{}
	}
	return domain.Resolution{Office: &office}
}
