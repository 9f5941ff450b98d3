package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"
	"geoattend/internal/platform/tx"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/jackc/pgx/v5"
)

const postgresNotifyChannel = "geoattend_events"

// PostgresStore is the shared multi-device store. Appends for one partition
// serialize on an advisory lock and notify listeners on commit.
type PostgresStore struct {
	db     *sql.DB
	tx     *tx.SQLManager
	dsn    string
	clock  clock.Clock
	logger hclog.Logger
}

var (
	_ attendanceout.EventLog         = (*PostgresStore)(nil)
	_ attendanceout.DailyRecordStore = (*PostgresStore)(nil)
)

// NewPostgresStore needs the dsn again because every subscription holds its
// own LISTEN connection outside the pool.
func NewPostgresStore(db *sql.DB, txm *tx.SQLManager, dsn string, clock clock.Clock, logger hclog.Logger) *PostgresStore {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &PostgresStore{db: db, tx: txm, dsn: dsn, clock: clock, logger: logger.Named("postgres-store")}
}

func (s *PostgresStore) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	if err := validateNewEvent(event); err != nil {
		return domain.Event{}, err
	}
	var stored domain.Event
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		q := tx.Conn(ctx, s.db)
		payload := notifyPayload(event.UserID, event.Day)
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, payload); err != nil {
			return fmt.Errorf("%w: partition lock: %v", apperrors.ErrStoreWrite, err)
		}
		existing, err := s.list(ctx, q, event.UserID, event.Day)
		if err != nil {
			return err
		}
		if err := domain.CheckAppend(existing, event.Status); err != nil {
			return err
		}
		event.Seq = len(existing) + 1
		const stmt = `
INSERT INTO attendance_events (id, user_id, day, seq, status, ts, latitude, longitude, device_name, network, accuracy_m)
SELECT $1, $2, $3::text::date, $4, $5,
  GREATEST(now(), COALESCE((SELECT max(ts) FROM attendance_events WHERE user_id = $2 AND day = $3::text::date), now())),
  $6, $7, $8, $9, $10
RETURNING ts`
		if err := q.QueryRowContext(ctx, stmt,
			event.ID, event.UserID, event.Day, event.Seq, string(event.Status),
			event.Position.Latitude, event.Position.Longitude, event.Device.Name, event.Device.Network, event.Device.AccuracyM,
		).Scan(&event.Timestamp); err != nil {
			return fmt.Errorf("%w: insert event: %v", apperrors.ErrStoreWrite, err)
		}
		event.Timestamp = event.Timestamp.UTC()
		if _, err := q.ExecContext(ctx, `SELECT pg_notify($1, $2)`, postgresNotifyChannel, payload); err != nil {
			return fmt.Errorf("%w: notify: %v", apperrors.ErrStoreWrite, err)
		}
		stored = event
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return stored, nil
}

func (s *PostgresStore) List(ctx context.Context, userID, day string) ([]domain.Event, error) {
	return s.list(ctx, tx.Conn(ctx, s.db), userID, day)
}

// Subscribe opens a dedicated connection and LISTENs before the first read,
// so no commit between the read and the LISTEN is missed. Losing that
// connection closes the returned channel.
func (s *PostgresStore) Subscribe(ctx context.Context, userID, day string) (<-chan domain.LogSnapshot, error) {
	if userID == "" || day == "" {
		return nil, fmt.Errorf("%w: user and day are required", apperrors.ErrInvalidInput)
	}
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: listen connect: %v", apperrors.ErrStoreRead, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{postgresNotifyChannel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("%w: listen: %v", apperrors.ErrStoreRead, err)
	}
	key := partitionKey{userID: userID, day: day}
	listenCtx, cancel := context.WithCancel(ctx)
	signals := make(chan struct{}, 1)
	go s.listen(listenCtx, conn, key, signals)
	return streamPartition(ctx, key, signals, s.List, s.logger, cancel), nil
}

func (s *PostgresStore) listen(ctx context.Context, conn *pgx.Conn, key partitionKey, signals chan<- struct{}) {
	defer close(signals)
	defer func() { _ = conn.Close(context.Background()) }()
	want := notifyPayload(key.userID, key.day)
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("listen connection lost", "user", key.userID, "day", key.day, "error", err)
			}
			return
		}
		if n.Payload != want {
			continue
		}
		select {
		case signals <- struct{}{}:
		default:
		}
	}
}

func (s *PostgresStore) Get(ctx context.Context, userID, day string) (domain.DailyRecord, error) {
	const query = `
SELECT user_id, to_char(day, 'YYYY-MM-DD'), first_checkin, last_checkout, open_since, effective_minutes, updated_at
FROM daily_records WHERE user_id = $1 AND day = $2::text::date`
	record, err := scanPostgresRecord(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, userID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyRecord{}, fmt.Errorf("%w: daily record %s/%s", apperrors.ErrNotFound, userID, day)
	}
	if err != nil {
		return domain.DailyRecord{}, fmt.Errorf("%w: daily record: %v", apperrors.ErrStoreRead, err)
	}
	return record, nil
}

func (s *PostgresStore) UpsertDailyRecord(ctx context.Context, record domain.DailyRecord) error {
	if record.UserID == "" || record.Day == "" || record.FirstCheckIn.IsZero() {
		return fmt.Errorf("%w: daily record needs user, day and first checkin", apperrors.ErrInvalidInput)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.clock.Now()
	}
	const stmt = `
INSERT INTO daily_records (user_id, day, first_checkin, last_checkout, open_since, effective_minutes, updated_at)
VALUES ($1, $2::text::date, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, day) DO UPDATE SET
  first_checkin = EXCLUDED.first_checkin,
  last_checkout = EXCLUDED.last_checkout,
  open_since = EXCLUDED.open_since,
  effective_minutes = EXCLUDED.effective_minutes,
  updated_at = EXCLUDED.updated_at`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, stmt,
		record.UserID,
		record.Day,
		record.FirstCheckIn.UTC(),
		nullableTime(record.LastCheckout),
		nullableTime(record.OpenSince),
		record.EffectiveMinutes,
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert daily record: %v", apperrors.ErrStoreWrite, err)
	}
	return nil
}

func (s *PostgresStore) ListByDay(ctx context.Context, day string) ([]domain.DailyRecord, error) {
	const query = `
SELECT user_id, to_char(day, 'YYYY-MM-DD'), first_checkin, last_checkout, open_since, effective_minutes, updated_at
FROM daily_records WHERE day = $1::text::date ORDER BY user_id`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("%w: list daily records: %v", apperrors.ErrStoreRead, err)
	}
	defer rows.Close()
	var out []domain.DailyRecord
	for rows.Next() {
		record, err := scanPostgresRecord(rows)
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

func (s *PostgresStore) list(ctx context.Context, q tx.Querier, userID, day string) ([]domain.Event, error) {
	const query = `
SELECT id, user_id, to_char(day, 'YYYY-MM-DD'), seq, status, ts, latitude, longitude, device_name, network, accuracy_m
FROM attendance_events WHERE user_id = $1 AND day = $2::text::date ORDER BY seq`
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
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Day, &ev.Seq, &status, &ev.Timestamp,
			&ev.Position.Latitude, &ev.Position.Longitude, &ev.Device.Name, &ev.Device.Network, &ev.Device.AccuracyM); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", apperrors.ErrStoreRead, err)
		}
		ev.Status = domain.Status(status)
		ev.Timestamp = ev.Timestamp.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list events: %v", apperrors.ErrStoreRead, err)
	}
	return out, nil
}

func scanPostgresRecord(row rowScanner) (domain.DailyRecord, error) {
	var (
		record       domain.DailyRecord
		lastCheckout sql.NullTime
		openSince    sql.NullTime
	)
	if err := row.Scan(&record.UserID, &record.Day, &record.FirstCheckIn, &lastCheckout, &openSince, &record.EffectiveMinutes, &record.UpdatedAt); err != nil {
		return domain.DailyRecord{}, err
	}
	record.FirstCheckIn = record.FirstCheckIn.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	if lastCheckout.Valid {
		t := lastCheckout.Time.UTC()
		record.LastCheckout = &t
	}
	if openSince.Valid {
		t := openSince.Time.UTC()
		record.OpenSince = &t
	}
	return record, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func notifyPayload(userID, day string) string {
	return userID + "/" + day
}
