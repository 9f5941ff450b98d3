package out_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	out "geoattend/internal/modules/attendance/adapter/out"
	"geoattend/internal/modules/attendance/domain"
	"geoattend/internal/platform/db"
	apperrors "geoattend/internal/platform/errors"
	"geoattend/internal/platform/tx"

	"github.com/google/uuid"
)

func TestPostgresStoreAppendAndListen(t *testing.T) {
	dsn := os.Getenv("GEOATTEND_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GEOATTEND_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := db.Migrate(db.DriverPostgres, dsn, db.DirectionUp); err != nil && !errors.Is(err, db.ErrNoChange) {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	clk := &fakeClock{now: time.Now().UTC()}
	store := out.NewPostgresStore(conn, tx.NewSQLManager(conn), dsn, clk, nil)

	userID := "it-" + uuid.NewString()
	day := domain.DayOf(time.Now(), time.UTC)
	snaps, err := store.Subscribe(ctx, userID, day)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if snap := receive(t, snaps); len(snap.Events) != 0 {
		t.Fatalf("fresh partition should be empty, got %+v", snap)
	}

	in := event(uuid.NewString(), domain.StatusCheckIn)
	in.UserID, in.Day = userID, day
	first, err := store.Append(ctx, in)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if snap := receive(t, snaps); len(snap.Events) != 1 || snap.Events[0].ID != first.ID {
		t.Fatalf("expected pushed checkin, got %+v", snap)
	}
	again := event(uuid.NewString(), domain.StatusCheckIn)
	again.UserID, again.Day = userID, day
	if _, err := store.Append(ctx, again); !errors.Is(err, apperrors.ErrAlternation) {
		t.Fatalf("double checkin must fail, got %v", err)
	}

	outEv := event(uuid.NewString(), domain.StatusCheckOut)
	outEv.UserID, outEv.Day = userID, day
	second, err := store.Append(ctx, outEv)
	if err != nil {
		t.Fatalf("append checkout: %v", err)
	}
	if second.Seq != 2 || second.Timestamp.Before(first.Timestamp) {
		t.Fatalf("unexpected checkout %+v after %+v", second, first)
	}

	record := domain.DailyRecord{UserID: userID, Day: day, FirstCheckIn: first.Timestamp, LastCheckout: &second.Timestamp}
	if err := store.UpsertDailyRecord(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := store.Get(ctx, userID, day)
	if err != nil || !got.SameAs(record) {
		t.Fatalf("record mismatch: got %+v err=%v", got, err)
	}
}
