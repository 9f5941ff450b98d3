package domain

import (
	"fmt"
	"sort"
	"time"

	apperrors "geoattend/internal/platform/errors"
)

type Status string

const (
	StatusCheckIn  Status = "checkin"
	StatusCheckOut Status = "checkout"
)

func (s Status) Validate() error {
	switch s {
	case StatusCheckIn, StatusCheckOut:
		return nil
	default:
		return fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidInput, s)
	}
}

// Device carries informational metadata only; no transition logic reads it.
type Device struct {
	Name      string  `json:"name,omitempty"`
	Network   string  `json:"network,omitempty"`
	AccuracyM float64 `json:"accuracy_m,omitempty"`
}

// Event is one immutable entry of a (user, day) log partition.
type Event struct {
	ID        string
	UserID    string
	Day       string
	Seq       int
	Status    Status
	Timestamp time.Time
	Position  Coordinates
	Device    Device
}

// LogSnapshot is one emission of a log subscription.
type LogSnapshot struct {
	UserID string
	Day    string
	Events []Event
	Err    error
}

// DayLayout formats partition keys.
const DayLayout = "2006-01-02"

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// ParseDay validates a partition key and returns local midnight.
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q must be YYYY-MM-DD", apperrors.ErrInvalidInput, day)
	}
	return t, nil
}

// Ordered returns a copy of events sorted by timestamp, ties broken by Seq.
func Ordered(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// LastStatus returns the status of the most recent entry; ok is false for an
// empty log.
func LastStatus(events []Event) (Status, bool) {
	if len(events) == 0 {
		return "", false
	}
	ordered := Ordered(events)
	return ordered[len(ordered)-1].Status, true
}

// CheckedIn reports whether the log ends with an unmatched checkin.
func CheckedIn(events []Event) bool {
	last, ok := LastStatus(events)
	return ok && last == StatusCheckIn
}

// CheckAppend rejects next when it would break the checkin/checkout alternation.
func CheckAppend(events []Event, next Status) error {
	if err := next.Validate(); err != nil {
		return err
	}
	last, ok := LastStatus(events)
	if !ok {
		if next != StatusCheckIn {
			return fmt.Errorf("%w: first entry of the day must be checkin", apperrors.ErrAlternation)
		}
		return nil
	}
	if last == next {
		return fmt.Errorf("%w: last entry is already %s", apperrors.ErrAlternation, last)
	}
	return nil
}

// CheckAlternation validates a whole partition.
func CheckAlternation(events []Event) error {
	ordered := Ordered(events)
	for i := range ordered {
		if err := CheckAppend(ordered[:i], ordered[i].Status); err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	return nil
}
