package service

import (
	"context"
	"fmt"
	"time"

	"geoattend/internal/modules/position/domain"
	positionout "geoattend/internal/modules/position/port/out"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"

	hclog "github.com/hashicorp/go-hclog"
)

type PositionService struct {
	provider positionout.Provider
	timeout  time.Duration
	clock    clock.Clock
	logger   hclog.Logger
}

func NewPositionService(provider positionout.Provider, timeout time.Duration, clock clock.Clock, logger hclog.Logger) *PositionService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &PositionService{provider: provider, timeout: timeout, clock: clock, logger: logger.Named("position")}
}

// Current bounds one provider read by the configured timeout. Every failure,
// including an implausible fix, is reported as ErrPositionUnavailable.
func (s *PositionService) Current(ctx context.Context) (domain.Reading, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	reading, err := s.provider.Read(ctx)
	if err != nil {
		s.logger.Debug("position read failed", "error", err)
		return domain.Reading{}, fmt.Errorf("%w: %v", apperrors.ErrPositionUnavailable, err)
	}
	if err := reading.Validate(); err != nil {
		s.logger.Warn("provider returned an invalid fix", "error", err)
		return domain.Reading{}, fmt.Errorf("%w: %v", apperrors.ErrPositionUnavailable, err)
	}
	if reading.SampledAt.IsZero() {
		reading.SampledAt = s.clock.Now()
	}
	return reading, nil
}

func (s *PositionService) Describe(ctx context.Context) (domain.ProviderInfo, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.provider.Describe(ctx)
}
