package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"
	"geoattend/internal/platform/tx"

	hclog "github.com/hashicorp/go-hclog"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteStore keeps the event log and daily records in one sqlite database.
// Pushes are delivered in-process after the appending transaction commits.
type SQLiteStore struct {
	db     *sql.DB
	tx     *tx.SQLManager
	clock  clock.Clock
	hub    *logHub
	logger hclog.Logger
}

var (
	_ attendanceout.EventLog         = (*SQLiteStore)(nil)
	_ attendanceout.DailyRecordStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore expects a migrated database. txm must wrap the same db.
func NewSQLiteStore(db *sql.DB, txm *tx.SQLManager, clock clock.Clock, logger hclog.Logger) *SQLiteStore {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &SQLiteStore{db: db, tx: txm, clock: clock, hub: newLogHub(), logger: logger.Named("sqlite-store")}
}

func (s *SQLiteStore) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	if err := validateNewEvent(event); err != nil {
		return domain.Event{}, err
	}
	var stored domain.Event
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		q := tx.Conn(ctx, s.db)
		existing, err := s.list(ctx, q, event.UserID, event.Day)
		if err != nil {
			return err
		}
		if err := domain.CheckAppend(existing, event.Status); err != nil {
			return err
		}
		event.Seq = len(existing) + 1
		event.Timestamp = s.clock.Now().UTC()
		if n := len(existing); n > 0 && event.Timestamp.Before(existing[n-1].Timestamp) {
			event.Timestamp = existing[n-1].Timestamp
		}
		const stmt = `
INSERT INTO attendance_events (id, user_id, day, seq, status, ts, latitude, longitude, device_name, network, accuracy_m)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := q.ExecContext(ctx, stmt,
			event.ID, event.UserID, event.Day, event.Seq, string(event.Status), event.Timestamp.Format(sqliteTimeLayout),
			event.Position.Latitude, event.Position.Longitude, event.Device.Name, event.Device.Network, event.Device.AccuracyM,
		); err != nil {
			return fmt.Errorf("%w: insert event: %v", apperrors.ErrStoreWrite, err)
		}
		stored = event
		key := partitionKey{userID: event.UserID, day: event.Day}
		tx.AfterCommit(ctx, func() { s.hub.publish(key) })
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return stored, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID, day string) ([]domain.Event, error) {
	return s.list(ctx, tx.Conn(ctx, s.db), userID, day)
}

func (s *SQLiteStore) Subscribe(ctx context.Context, userID, day string) (<-chan domain.LogSnapshot, error) {
	if userID == "" || day == "" {
		return nil, fmt.Errorf("%w: user and day are required", apperrors.ErrInvalidInput)
	}
	key := partitionKey{userID: userID, day: day}
	signals := s.hub.register(key)
	return streamPartition(ctx, key, signals, s.List, s.logger, func() { s.hub.unregister(key, signals) }), nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID, day string) (domain.DailyRecord, error) {
	const query = `
SELECT user_id, day, first_checkin, last_checkout, open_since, effective_minutes, updated_at
FROM daily_records WHERE user_id = ? AND day = ?`
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, userID, day)
	record, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyRecord{}, fmt.Errorf("%w: daily record %s/%s", apperrors.ErrNotFound, userID, day)
	}
	if err != nil {
		return domain.DailyRecord{}, fmt.Errorf("%w: daily record: %v", apperrors.ErrStoreRead, err)
	}
	return record, nil
}

func (s *SQLiteStore) UpsertDailyRecord(ctx context.Context, record domain.DailyRecord) error {
	if record.UserID == "" || record.Day == "" || record.FirstCheckIn.IsZero() {
		return fmt.Errorf("%w: daily record needs user, day and first checkin", apperrors.ErrInvalidInput)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.clock.Now()
	}
	const stmt = `
INSERT INTO daily_records (user_id, day, first_checkin, last_checkout, open_since, effective_minutes, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, day) DO UPDATE SET
  first_checkin=excluded.first_checkin,
  last_checkout=excluded.last_checkout,
  open_since=excluded.open_since,
  effective_minutes=excluded.effective_minutes,
  updated_at=excluded.updated_at;
`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, stmt,
		record.UserID,
		record.Day,
		record.FirstCheckIn.UTC().Format(sqliteTimeLayout),
		formatNullableTime(record.LastCheckout),
		formatNullableTime(record.OpenSince),
		record.EffectiveMinutes,
		record.UpdatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert daily record: %v", apperrors.ErrStoreWrite, err)
	}
	return nil
}

func (s *SQLiteStore) ListByDay(ctx context.Context, day string) ([]domain.DailyRecord, error) {
	const query = `
SELECT user_id, day, first_checkin, last_checkout, open_since, effective_minutes, updated_at
FROM daily_records WHERE day = ? ORDER BY user_id`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("%w: list daily records: %v", apperrors.ErrStoreRead, err)
	}
	defer rows.Close()
	var out []domain.DailyRecord
	for rows.Next() {
		record, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan daily record: %v", apperrors.ErrStoreRead, err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list daily records: %v", apperrors.ErrStoreRead, err)
	}
	return out, nil
}

func (s *SQLiteStore) list(ctx context.Context, q tx.Querier, userID, day string) ([]domain.Event, error) {
	const query = `
SELECT id, user_id, day, seq, status, ts, latitude, longitude, device_name, network, accuracy_m
FROM attendance_events WHERE user_id = ? AND day = ? ORDER BY seq`
	rows, err := q.QueryContext(ctx, query, userID, day)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", apperrors.ErrStoreRead, err)
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var (
			ev     domain.Event
			status string
			ts     string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Day, &ev.Seq, &status, &ts,
			&ev.Position.Latitude, &ev.Position.Longitude, &ev.Device.Name, &ev.Device.Network, &ev.Device.AccuracyM); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", apperrors.ErrStoreRead, err)
		}
		ev.Status = domain.Status(status)
		if ev.Timestamp, err = time.Parse(sqliteTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("%w: event %s timestamp: %v", apperrors.ErrStoreRead, ev.ID, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list events: %v", apperrors.ErrStoreRead, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (domain.DailyRecord, error) {
	var (
		record       domain.DailyRecord
		first        string
		lastCheckout sql.NullString
		openSince    sql.NullString
		updated      string
	)
	if err := row.Scan(&record.UserID, &record.Day, &first, &lastCheckout, &openSince, &record.EffectiveMinutes, &updated); err != nil {
		return domain.DailyRecord{}, err
	}
	var err error
	if record.FirstCheckIn, err = time.Parse(sqliteTimeLayout, first); err != nil {
		return domain.DailyRecord{}, err
	}
	if record.UpdatedAt, err = time.Parse(sqliteTimeLayout, updated); err != nil {
		return domain.DailyRecord{}, err
	}
	if record.LastCheckout, err = parseNullableTime(lastCheckout); err != nil {
		return domain.DailyRecord{}, err
	}
	if record.OpenSince, err = parseNullableTime(openSince); err != nil {
		return domain.DailyRecord{}, err
	}
	return record, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func validateNewEvent(event domain.Event) error {
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.UserID) == "" {
		return fmt.Errorf("%w: event id and user id are required", apperrors.ErrInvalidInput)
	}
	if _, err := domain.ParseDay(event.Day, time.UTC); err != nil {
		return err
	}
	if err := event.Status.Validate(); err != nil {
		return err
	}
	if err := event.Position.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}
