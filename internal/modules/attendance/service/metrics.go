package service

import "geoattend/internal/modules/attendance/domain"

// NopMetrics discards tracker telemetry.
type NopMetrics struct{}

func (NopMetrics) ObserveTick(string)              {}
func (NopMetrics) ObserveTransition(domain.Status) {}
func (NopMetrics) ObserveFailure(string)           {}
func (NopMetrics) ObserveRebuild()                 {}
func (NopMetrics) SetState(domain.TrackerState)    {}
func (NopMetrics) SetDistance(float64)             {}
func (NopMetrics) SetEffectiveMinutes(int)         {}

