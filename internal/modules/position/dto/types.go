package dto

import "time"

type ReadingOutput struct {
	Latitude  float64
	Longitude float64
	AccuracyM float64
	Provider  string
	SampledAt time.Time
}

type ProviderOutput struct {
	Name    string
	Version string
}
