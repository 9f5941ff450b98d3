package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"
)

// Reconciler keeps the daily record in step with the log. CheckIn and CheckOut
// run right after the matching append; Rebuild recomputes the record from the
// log and is the recovery path when those steps fail.
type Reconciler struct {
	records attendanceout.DailyRecordStore
	log     attendanceout.EventLog
	clock   clock.Clock
}

func NewReconciler(records attendanceout.DailyRecordStore, log attendanceout.EventLog, clock clock.Clock) *Reconciler {
	return &Reconciler{records: records, log: log, clock: clock}
}

func (r *Reconciler) CheckIn(ctx context.Context, userID, day string, at time.Time) (domain.DailyRecord, error) {
	record, err := r.records.Get(ctx, userID, day)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		record = domain.DailyRecord{UserID: userID, Day: day}
	case err != nil:
		return domain.DailyRecord{}, err
	}
	record.ApplyCheckIn(at)
	if err := r.records.UpsertDailyRecord(ctx, record); err != nil {
		return domain.DailyRecord{}, err
	}
	return record, nil
}

// CheckOut returns the updated record and the minutes the closed session added.
func (r *Reconciler) CheckOut(ctx context.Context, userID, day string, at time.Time) (domain.DailyRecord, int, error) {
	record, err := r.records.Get(ctx, userID, day)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.DailyRecord{}, 0, fmt.Errorf("%w: %s/%s", apperrors.ErrNoDailyRecord, userID, day)
	}
	if err != nil {
		return domain.DailyRecord{}, 0, err
	}
	added, err := record.ApplyCheckOut(at)
	if err != nil {
		return domain.DailyRecord{}, 0, err
	}
	if err := r.records.UpsertDailyRecord(ctx, record); err != nil {
		return domain.DailyRecord{}, 0, err
	}
	return record, added, nil
}

// Rebuild recomputes the (user, day) record from the log. found is false when
// the log has no checkin; an existing record is then left untouched.
func (r *Reconciler) Rebuild(ctx context.Context, userID, day string) (record domain.DailyRecord, found bool, err error) {
	events, err := r.log.List(ctx, userID, day)
	if err != nil {
		return domain.DailyRecord{}, false, err
	}
	rebuilt, ok := domain.RecordFromLog(userID, day, events, r.clock.Now())
	if !ok {
		return domain.DailyRecord{}, false, nil
	}
	existing, err := r.records.Get(ctx, userID, day)
	switch {
	case err == nil && existing.SameAs(rebuilt):
		return existing, true, nil
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return domain.DailyRecord{}, false, err
	}
	if err := r.records.UpsertDailyRecord(ctx, rebuilt); err != nil {
		return domain.DailyRecord{}, false, err
	}
	return rebuilt, true, nil
}
