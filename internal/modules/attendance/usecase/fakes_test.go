package usecase_test

import (
	"context"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"geoattend/internal/modules/attendance/domain"
	attendancedto "geoattend/internal/modules/attendance/dto"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"
)

var testOffice = domain.Office{
	ID:            "ahmedabad",
	Name:          "Ahmedabad",
	Location:      domain.Coordinates{Latitude: 23.091, Longitude: 72.538},
	CheckinRadius: 100,
}

func metersFromOffice(m float64) domain.Position {
	return domain.Position{Coordinates: domain.Coordinates{
		Latitude:  testOffice.Location.Latitude + m/(domain.EarthRadiusMeters*math.Pi/180),
		Longitude: testOffice.Location.Longitude,
	}}
}

type manualTicker struct {
	c chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               {}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers chan *manualTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, tickers: make(chan *manualTicker, 1)}
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

func (f *fakeClock) NewTicker(time.Duration) clock.Ticker {
	tk := &manualTicker{c: make(chan time.Time)}
	f.tickers <- tk
	return tk
}

func (f *fakeClock) ticker(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-f.tickers:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatalf("tracker never created its ticker")
		return nil
	}
}

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

type staticOffices struct {
	updates []domain.OfficeUpdate
}

func (s staticOffices) Resolve(ctx context.Context, _ string) (<-chan domain.OfficeUpdate, error) {
	ch := make(chan domain.OfficeUpdate, len(s.updates))
	for _, u := range s.updates {
		ch <- u
	}
	return ch, nil
}

func officeAt(o domain.Office) staticOffices {
	return staticOffices{updates: []domain.OfficeUpdate{{Office: &o}}}
}

// streamOffices hands the tracker a resolution stream the test feeds.
type streamOffices struct {
	ch chan domain.OfficeUpdate
}

func (s streamOffices) Resolve(context.Context, string) (<-chan domain.OfficeUpdate, error) {
	return s.ch, nil
}

type scriptedPositions struct {
	mu     sync.Mutex
	pos    domain.Position
	err    error
	panics bool
	calls  int
}

func (s *scriptedPositions) Current(context.Context) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.panics {
		panic("gps driver crashed")
	}
	if s.err != nil {
		return domain.Position{}, s.err
	}
	return s.pos, nil
}

func (s *scriptedPositions) Set(pos domain.Position, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos, s.err = pos, err
}

func (s *scriptedPositions) SetPanics(panics bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics = panics
}

func (s *scriptedPositions) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type subscriber struct {
	userID, day string
	ch          chan domain.LogSnapshot
	closed      bool
}

// memLog is an in-memory event log with push. When gate is set, Append
// signals entered and blocks until gate is closed.
type memLog struct {
	mu      sync.Mutex
	clock   *fakeClock
	events  []domain.Event
	subs    []*subscriber
	appends int
	gate    chan struct{}
	entered chan struct{}
}

func newMemLog(clk *fakeClock) *memLog {
	return &memLog{clock: clk}
}

func (m *memLog) Append(_ context.Context, ev domain.Event) (domain.Event, error) {
	m.mu.Lock()
	gate, entered := m.gate, m.entered
	m.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	partition := m.partitionLocked(ev.UserID, ev.Day)
	if err := domain.CheckAppend(partition, ev.Status); err != nil {
		return domain.Event{}, err
	}
	ev.Seq = len(partition) + 1
	ev.Timestamp = m.clock.Now()
	m.events = append(m.events, ev)
	m.notifyLocked(ev.UserID, ev.Day)
	return ev, nil
}

func (m *memLog) List(_ context.Context, userID, day string) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partitionLocked(userID, day), nil
}

func (m *memLog) Subscribe(ctx context.Context, userID, day string) (<-chan domain.LogSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &subscriber{userID: userID, day: day, ch: make(chan domain.LogSnapshot, 64)}
	sub.ch <- domain.LogSnapshot{UserID: userID, Day: day, Events: m.partitionLocked(userID, day)}
	m.subs = append(m.subs, sub)
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}()
	return sub.ch, nil
}

// Drop closes every open subscription as a lost connection would.
func (m *memLog) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
}

func (m *memLog) OpenSubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sub := range m.subs {
		if !sub.closed {
			n++
		}
	}
	return n
}

func (m *memLog) Appends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appends
}

func (m *memLog) Events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Event(nil), m.events...)
}

func (m *memLog) partitionLocked(userID, day string) []domain.Event {
	var out []domain.Event
	for _, ev := range m.events {
		if ev.UserID == userID && ev.Day == day {
			out = append(out, ev)
		}
	}
	return out
}

func (m *memLog) notifyLocked(userID, day string) {
	for _, sub := range m.subs {
		if sub.closed || sub.userID != userID || sub.day != day {
			continue
		}
		select {
		case sub.ch <- domain.LogSnapshot{UserID: userID, Day: day, Events: m.partitionLocked(userID, day)}:
		default:
		}
	}
}

type memRecords struct {
	mu        sync.Mutex
	records   map[string]domain.DailyRecord
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
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.records[rec.UserID+"/"+rec.Day] = rec
	return nil
}

func (m *memRecords) ListByDay(_ context.Context, day string) ([]domain.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DailyRecord
	for _, rec := range m.records {
		if rec.Day == day {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memRecords) SetUpsertErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

type fakeMetrics struct {
	mu       sync.Mutex
	ticks    map[string]int
	rebuilds int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{ticks: map[string]int{}}
}

func (f *fakeMetrics) ObserveTick(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks[outcome]++
}
func (f *fakeMetrics) ObserveTransition(domain.Status) {}
func (f *fakeMetrics) ObserveFailure(string)           {}
func (f *fakeMetrics) ObserveRebuild() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds++
}
func (f *fakeMetrics) SetState(domain.TrackerState) {}
func (f *fakeMetrics) SetDistance(float64)          {}
func (f *fakeMetrics) SetEffectiveMinutes(int)      {}

func (f *fakeMetrics) Ticks(outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks[outcome]
}

func (f *fakeMetrics) Rebuilds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rebuilds
}

// eventually polls cond until it holds or two seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type snapshotter interface {
	Snapshot() attendancedto.SnapshotOutput
}

func waitSnapshot(t *testing.T, tr snapshotter, what string, cond func(attendancedto.SnapshotOutput) bool) attendancedto.SnapshotOutput {
	t.Helper()
	eventually(t, what, func() bool { return cond(tr.Snapshot()) })
	return tr.Snapshot()
}
