package domain

import (
	"fmt"
	"math"
)

type TrackerState string

const (
	StateUnknown    TrackerState = "UNKNOWN"
	StateOutOfRange TrackerState = "OUT_OF_RANGE"
	StateInRange    TrackerState = "IN_RANGE"
)

const (
	StatusTextUnknown       = "Unknown"
	StatusTextCheckedIn     = "Checked in"
	StatusTextCheckedOut    = "Checked out"
	StatusTextUnavailable   = "Location unavailable"
	StatusTextNotConfigured = "Not configured"
)

// StateFor maps a presence flag to the tracker state once an office and a
// position are both known.
func StateFor(checkedIn bool) TrackerState {
	if checkedIn {
		return StateInRange
	}
	return StateOutOfRange
}

// StatusText is the label shown for a state.
func StatusText(state TrackerState) string {
	switch state {
	case StateInRange:
		return StatusTextCheckedIn
	case StateOutOfRange:
		return StatusTextCheckedOut
	default:
		return StatusTextUnknown
	}
}

// DistanceText formats the distance line. hasCheckIn reports whether today's
// log holds any checkin.
func DistanceText(office Office, d float64, hasCheckIn bool) string {
	if office.Contains(d) {
		return "Within range"
	}
	meters := int(math.Floor(d + 0.5))
	if !hasCheckIn {
		return fmt.Sprintf("You are %d meters away from the office.", meters)
	}
	return fmt.Sprintf("Distance from office: %d meters", meters)
}

// HasCheckIn reports whether any checkin exists in events.
func HasCheckIn(events []Event) bool {
	for _, ev := range events {
		if ev.Status == StatusCheckIn {
			return true
		}
	}
	return false
}
