package domain

import (
	"fmt"
	"time"

	apperrors "geoattend/internal/platform/errors"
)

// DailyRecord is the one summary row per (user, day).
type DailyRecord struct {
	UserID           string
	Day              string
	FirstCheckIn     time.Time
	LastCheckout     *time.Time
	OpenSince        *time.Time
	EffectiveMinutes int
	UpdatedAt        time.Time
}

// ApplyCheckIn opens a session. FirstCheckIn is only stamped on a new record.
func (r *DailyRecord) ApplyCheckIn(at time.Time) {
	if r.FirstCheckIn.IsZero() {
		r.FirstCheckIn = at
	}
	r.OpenSince = &at
	r.UpdatedAt = at
}

// ApplyCheckOut closes the open session and returns the minutes it added.
func (r *DailyRecord) ApplyCheckOut(at time.Time) (int, error) {
	if r.OpenSince == nil {
		return 0, fmt.Errorf("%w: %s/%s has no open session", apperrors.ErrNoDailyRecord, r.UserID, r.Day)
	}
	added := RoundMinutes(at.Sub(*r.OpenSince))
	r.EffectiveMinutes += added
	r.LastCheckout = &at
	r.OpenSince = nil
	r.UpdatedAt = at
	return added, nil
}

// RecordFromLog rebuilds a record from the day's log. ok is false when the log
// has no checkin.
func RecordFromLog(userID, day string, events []Event, now time.Time) (DailyRecord, bool) {
	s := Summarize(events)
	if s.FirstCheckIn == nil {
		return DailyRecord{}, false
	}
	return DailyRecord{
		UserID:           userID,
		Day:              day,
		FirstCheckIn:     *s.FirstCheckIn,
		LastCheckout:     s.LastCheckout,
		OpenSince:        s.OpenSince,
		EffectiveMinutes: s.ClosedMinutes,
		UpdatedAt:        now,
	}, true
}

// SameAs compares the persisted fields, ignoring UpdatedAt.
func (r DailyRecord) SameAs(other DailyRecord) bool {
	return r.UserID == other.UserID &&
		r.Day == other.Day &&
		r.FirstCheckIn.Equal(other.FirstCheckIn) &&
		equalTime(r.LastCheckout, other.LastCheckout) &&
		equalTime(r.OpenSince, other.OpenSince) &&
		r.EffectiveMinutes == other.EffectiveMinutes
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
