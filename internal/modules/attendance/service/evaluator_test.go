package service_test

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"geoattend/internal/modules/attendance/domain"
	"geoattend/internal/modules/attendance/service"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fakeClock) NewTicker(time.Duration) clock.Ticker { return nil }

type seqID struct {
	mu sync.Mutex
	n  int
}

func (s *seqID) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "ev-" + strconv.Itoa(s.n)
}

type memLog struct {
	mu        sync.Mutex
	events    []domain.Event
	appends   int
	appendErr error
	listErr   error
}

func (m *memLog) Append(_ context.Context, ev domain.Event) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.appendErr != nil {
		return domain.Event{}, m.appendErr
	}
	if err := domain.CheckAppend(m.events, ev.Status); err != nil {
		return domain.Event{}, err
	}
	ev.Seq = len(m.events) + 1
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memLog) List(_ context.Context, userID, day string) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Event
	for _, ev := range m.events {
		if ev.UserID == userID && ev.Day == day {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memLog) Subscribe(context.Context, string, string) (<-chan domain.LogSnapshot, error) {
	return nil, errors.New("not supported")
}

type memRecords struct {
	mu        sync.Mutex
	records   map[string]domain.DailyRecord
	upserts   int
	upsertErr error
}

func newMemRecords() *memRecords {
	return &memRecords{records: map[string]domain.DailyRecord{}}
}

func (m *memRecords) Get(_ context.Context, userID, day string) (domain.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID+"/"+day]
	if !ok {
		return domain.DailyRecord{}, apperrors.ErrNotFound
	}
	return rec, nil
}

func (m *memRecords) UpsertDailyRecord(_ context.Context, rec domain.DailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.records[rec.UserID+"/"+rec.Day] = rec
	return nil
}

func (m *memRecords) ListByDay(context.Context, string) ([]domain.DailyRecord, error) {
	return nil, nil
}

var office = domain.Office{ID: "ahmedabad", Name: "Ahmedabad", Location: domain.Coordinates{Latitude: 23.091, Longitude: 72.538}, CheckinRadius: 100}

func offset(m float64) domain.Position {
	return domain.Position{Coordinates: domain.Coordinates{
		Latitude:  office.Location.Latitude + m/(domain.EarthRadiusMeters*math.Pi/180),
		Longitude: office.Location.Longitude,
	}}
}

func observe(m float64) service.Observation {
	return service.Observation{UserID: "u1", Day: "2026-03-02", Office: office, Position: offset(m)}
}

type fixture struct {
	clk        *fakeClock
	log        *memLog
	records    *memRecords
	reconciler *service.Reconciler
	evaluator  *service.Evaluator
}

func newFixture() fixture {
	clk := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	log := &memLog{}
	records := newMemRecords()
	reconciler := service.NewReconciler(records, log, clk)
	return fixture{
		clk:        clk,
		log:        log,
		records:    records,
		reconciler: reconciler,
		evaluator:  service.NewEvaluator(log, reconciler, nil, clk, &seqID{}, nil, nil),
	}
}

func TestEvaluateChecksInOnceWithinRadius(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	first, err := f.evaluator.Evaluate(ctx, observe(40))
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	if first.Appended == nil || first.Appended.Status != domain.StatusCheckIn {
		t.Fatalf("expected a checkin, got %+v", first.Appended)
	}
	if !first.Within || !first.CheckedIn || math.Abs(first.Distance-40) > 0.01 {
		t.Fatalf("unexpected outcome %+v", first)
	}

	second, err := f.evaluator.Evaluate(ctx, observe(40))
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if second.Appended != nil {
		t.Fatalf("second tick must not write, got %+v", second.Appended)
	}
	if len(f.log.events) != 1 || f.log.appends != 1 {
		t.Fatalf("expected exactly one checkin, log=%+v appends=%d", f.log.events, f.log.appends)
	}
	rec, err := f.records.Get(ctx, "u1", "2026-03-02")
	if err != nil {
		t.Fatalf("daily record should exist: %v", err)
	}
	if !rec.FirstCheckIn.Equal(f.clk.Now()) || rec.OpenSince == nil {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestEvaluateChecksOutAndAddsElapsedMinutes(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	if _, err := f.evaluator.Evaluate(ctx, observe(40)); err != nil {
		t.Fatalf("checkin: %v", err)
	}

	f.clk.Set(time.Date(2026, 3, 2, 9, 47, 31, 0, time.UTC))
	out, err := f.evaluator.Evaluate(ctx, observe(250))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if out.Appended == nil || out.Appended.Status != domain.StatusCheckOut || out.CheckedIn {
		t.Fatalf("expected one checkout, got %+v", out)
	}
	if out.Record == nil || out.Record.EffectiveMinutes != 48 {
		t.Fatalf("expected 48 accumulated minutes, got %+v", out.Record)
	}
	if out.Record.LastCheckout == nil || out.Record.OpenSince != nil {
		t.Fatalf("checkout must stamp last checkout and close the session: %+v", out.Record)
	}

	again, err := f.evaluator.Evaluate(ctx, observe(250))
	if err != nil {
		t.Fatalf("out of range again: %v", err)
	}
	if again.Appended != nil || len(f.log.events) != 2 {
		t.Fatalf("no write expected while already checked out, log=%+v", f.log.events)
	}
}

func TestEvaluateOutOfRangeWithoutCheckinWritesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture()
	out, err := f.evaluator.Evaluate(context.Background(), observe(250))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Appended != nil || f.log.appends != 0 || f.records.upserts != 0 {
		t.Fatalf("nothing should be written, got %+v", out)
	}
}

func TestEvaluateClassifiesStoreFailures(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	f.log.listErr = errors.New("connection reset")
	if _, err := f.evaluator.Evaluate(ctx, observe(40)); !errors.Is(err, apperrors.ErrStoreRead) {
		t.Fatalf("expected store read error, got %v", err)
	}
	f.log.listErr = nil

	f.log.appendErr = errors.New("disk full")
	if _, err := f.evaluator.Evaluate(ctx, observe(40)); !errors.Is(err, apperrors.ErrStoreWrite) {
		t.Fatalf("expected store write error, got %v", err)
	}
	if f.records.upserts != 0 {
		t.Fatalf("daily record must not be touched after a failed append")
	}
	f.log.appendErr = nil

	f.records.upsertErr = errors.New("record table locked")
	out, err := f.evaluator.Evaluate(ctx, observe(40))
	if !errors.Is(err, apperrors.ErrStoreWrite) {
		t.Fatalf("expected store write error for record update, got %v", err)
	}
	if out.Appended != nil {
		t.Fatalf("failed evaluation must not report an appended event")
	}
	f.records.upsertErr = nil

	// The append above went through without a shared transaction; rebuilding
	// from the log repairs the record.
	rec, found, err := f.reconciler.Rebuild(ctx, "u1", "2026-03-02")
	if err != nil || !found {
		t.Fatalf("rebuild: found=%v err=%v", found, err)
	}
	if rec.OpenSince == nil || rec.EffectiveMinutes != 0 {
		t.Fatalf("unexpected rebuilt record %+v", rec)
	}
}

func TestEvaluateWritesAfterCallerCancels(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.evaluator = service.NewEvaluator(f.log, f.reconciler, cancelAfterBegin{cancel: cancel}, f.clk, &seqID{}, nil, nil)

	if _, err := f.evaluator.Evaluate(ctx, observe(40)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(f.log.events) != 1 || f.records.upserts != 1 {
		t.Fatalf("write must complete after cancellation, log=%d upserts=%d", len(f.log.events), f.records.upserts)
	}
}

// cancelAfterBegin cancels the caller's context as the write starts and
// fails fn if the context it receives is cancelled.
type cancelAfterBegin struct {
	cancel context.CancelFunc
}

func (c cancelAfterBegin) Within(ctx context.Context, fn func(context.Context) error) error {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
