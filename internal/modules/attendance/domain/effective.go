package domain

import (
	"math"
	"time"
)

// RoundMinutes converts d to whole minutes, rounding half up. Negative
// durations count as zero.
func RoundMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Floor(float64(d)/float64(time.Minute) + 0.5))
}

// Summary is the persisted view of one day's log.
type Summary struct {
	FirstCheckIn  *time.Time
	LastCheckout  *time.Time
	ClosedMinutes int
	// OpenSince is the trailing unmatched checkin, if any.
	OpenSince *time.Time
}

// Summarize walks events in timestamp order and pairs checkins with the
// following checkout. A checkout without an open checkin is ignored.
func Summarize(events []Event) Summary {
	var out Summary
	for _, ev := range Ordered(events) {
		at := ev.Timestamp
		switch ev.Status {
		case StatusCheckIn:
			if out.FirstCheckIn == nil {
				out.FirstCheckIn = &at
			}
			out.OpenSince = &at
		case StatusCheckOut:
			if out.OpenSince == nil {
				continue
			}
			out.ClosedMinutes += RoundMinutes(at.Sub(*out.OpenSince))
			out.LastCheckout = &at
			out.OpenSince = nil
		}
	}
	return out
}

// EffectiveMinutes returns the day's effective time. When checkedIn is true
// and the log ends with an open checkin, the minutes accrued up to now are
// added provisionally; they are never persisted.
func EffectiveMinutes(events []Event, checkedIn bool, now time.Time) int {
	s := Summarize(events)
	total := s.ClosedMinutes
	if checkedIn && s.OpenSince != nil {
		total += RoundMinutes(now.Sub(*s.OpenSince))
	}
	return total
}
