package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"geoattend/internal/modules/attendance/domain"
	attendancedto "geoattend/internal/modules/attendance/dto"
	attendancein "geoattend/internal/modules/attendance/port/in"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	"geoattend/internal/modules/attendance/service"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"

	hclog "github.com/hashicorp/go-hclog"
)

const defaultTickInterval = 30 * time.Second

type TrackerConfig struct {
	UserID   string
	Device   domain.Device
	Interval time.Duration
	Location *time.Location
}

// Tracker runs the attendance state machine for one user. Run owns all
// session state; ticks, office updates, log pushes and evaluation results
// are all consumed by that one goroutine.
type Tracker struct {
	cfg        TrackerConfig
	offices    attendanceout.OfficeResolver
	positions  attendanceout.PositionSource
	log        attendanceout.EventLog
	evaluator  *service.Evaluator
	reconciler *service.Reconciler
	clock      clock.Clock
	metrics    attendanceout.Metrics
	logger     hclog.Logger

	trigger chan struct{}
	running atomic.Bool

	mu       sync.RWMutex
	snapshot attendancedto.SnapshotOutput
	watchers map[chan attendancedto.SnapshotOutput]struct{}
}

func NewTracker(
	cfg TrackerConfig,
	offices attendanceout.OfficeResolver,
	positions attendanceout.PositionSource,
	log attendanceout.EventLog,
	evaluator *service.Evaluator,
	reconciler *service.Reconciler,
	clk clock.Clock,
	metrics attendanceout.Metrics,
	logger hclog.Logger,
) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultTickInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if metrics == nil {
		metrics = service.NopMetrics{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Tracker{
		cfg:        cfg,
		offices:    offices,
		positions:  positions,
		log:        log,
		evaluator:  evaluator,
		reconciler: reconciler,
		clock:      clk,
		metrics:    metrics,
		logger:     logger.Named("tracker"),
		trigger:    make(chan struct{}, 1),
		snapshot: attendancedto.SnapshotOutput{
			UserID: cfg.UserID,
			State:  string(domain.StateUnknown),
			Status: domain.StatusTextUnknown,
		},
		watchers: map[chan attendancedto.SnapshotOutput]struct{}{},
	}
}

var _ attendancein.TrackerUsecase = (*Tracker)(nil)

// Run blocks until ctx is cancelled. An evaluation in flight at that point
// finishes its write before Run returns.
func (t *Tracker) Run(ctx context.Context) error {
	if t.cfg.UserID == "" {
		return fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	if !t.running.CompareAndSwap(false, true) {
		return errors.New("tracker is already running")
	}
	defer t.running.Store(false)

	officeCh, err := t.offices.Resolve(ctx, t.cfg.UserID)
	if err != nil {
		return fmt.Errorf("resolve office: %w", err)
	}

	l := &loop{t: t, results: make(chan evalResult, 1), s: session{state: domain.StateUnknown}}
	defer l.shutdown()

	select {
	case update, ok := <-officeCh:
		if ok {
			l.applyOffice(update)
		} else {
			officeCh = nil
		}
	case <-ctx.Done():
		return nil
	}
	l.rollover(ctx, t.clock.Now())

	ticker := t.clock.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	t.logger.Info("tracker started", "user", t.cfg.UserID, "interval", t.cfg.Interval)
	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopping", "user", t.cfg.UserID)
			return nil
		case <-ticker.C():
			l.tick(ctx)
		case <-t.trigger:
			l.tick(ctx)
		case update, ok := <-officeCh:
			if !ok {
				t.logger.Warn("office stream closed; keeping last office")
				officeCh = nil
				continue
			}
			l.applyOffice(update)
			if update.Office != nil {
				l.tick(ctx)
			}
		case snap, ok := <-l.logCh:
			if !ok {
				l.dropSubscription(fmt.Errorf("%w: log subscription closed", apperrors.ErrStoreRead))
				continue
			}
			l.applyLog(snap)
		case res := <-l.results:
			l.finish(res)
		}
	}
}

func (t *Tracker) Snapshot() attendancedto.SnapshotOutput {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Watch delivers the current snapshot and then every change. Slow readers
// only see the latest value. The channel closes when ctx is done.
func (t *Tracker) Watch(ctx context.Context) <-chan attendancedto.SnapshotOutput {
	ch := make(chan attendancedto.SnapshotOutput, 1)
	t.mu.Lock()
	t.watchers[ch] = struct{}{}
	ch <- t.snapshot
	t.mu.Unlock()
	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.watchers, ch)
		close(ch)
		t.mu.Unlock()
	}()
	return ch
}

// Trigger requests an evaluation without waiting for the next tick.
func (t *Tracker) Trigger() {
	select {
	case t.trigger <- struct{}{}:
	default:
	}
}

func (t *Tracker) publish(snap attendancedto.SnapshotOutput) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = snap
	for ch := range t.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// session is the in-memory tracker state. Only the Run goroutine touches it.
type session struct {
	day         string
	office      *domain.Office
	officeErr   error
	position    *domain.Position
	distance    float64
	hasDistance bool
	events      []domain.Event
	checkedIn   bool
	state       domain.TrackerState
	positionErr error
	lastErr     error
	stale       bool
	evaluating  bool
	// dirtyDay names a day whose daily record may disagree with its log.
	dirtyDay string
}

type evalJob struct {
	userID   string
	day      string
	office   domain.Office
	device   domain.Device
	dirtyDay string
}

type evalResult struct {
	day         string
	position    *domain.Position
	positionErr error
	outcome     service.Outcome
	err         error
	panicked    bool
	rebuilt     bool
	rebuildErr  error
}

type loop struct {
	t       *Tracker
	s       session
	logCh   <-chan domain.LogSnapshot
	unsub   context.CancelFunc
	results chan evalResult
	wg      sync.WaitGroup
}

func (l *loop) shutdown() {
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
	}
	l.wg.Wait()
}

func (l *loop) tick(ctx context.Context) {
	now := l.t.clock.Now()
	if day := domain.DayOf(now, l.t.cfg.Location); day != l.s.day {
		l.rollover(ctx, now)
	} else if l.logCh == nil {
		l.subscribe(ctx)
	}

	if l.s.evaluating {
		l.t.metrics.ObserveTick("skipped")
		l.publish()
		return
	}
	if l.s.office == nil {
		l.t.metrics.ObserveTick("unresolved")
		l.s.state = domain.StateUnknown
		l.publish()
		return
	}

	l.s.evaluating = true
	job := evalJob{
		userID:   l.t.cfg.UserID,
		day:      l.s.day,
		office:   *l.s.office,
		device:   l.t.cfg.Device,
		dirtyDay: l.s.dirtyDay,
	}
	l.wg.Add(1)
	go l.evaluate(ctx, job)
	l.publish()
}

// evaluate runs off the loop goroutine. It always delivers exactly one result
// so the in-flight guard is released, including after a panic.
func (l *loop) evaluate(ctx context.Context, job evalJob) {
	defer l.wg.Done()
	res := evalResult{day: job.day}
	defer func() {
		if r := recover(); r != nil {
			res.panicked = true
			res.err = fmt.Errorf("evaluation panicked: %v", r)
		}
		l.results <- res
	}()

	if job.dirtyDay != "" {
		if _, _, err := l.t.reconciler.Rebuild(context.WithoutCancel(ctx), job.userID, job.dirtyDay); err != nil {
			res.rebuildErr = err
		} else {
			res.rebuilt = true
		}
	}

	pos, err := l.t.positions.Current(ctx)
	if err != nil {
		res.positionErr = err
		return
	}
	res.position = &pos
	res.outcome, res.err = l.t.evaluator.Evaluate(ctx, service.Observation{
		UserID:   job.userID,
		Day:      job.day,
		Office:   job.office,
		Position: pos,
		Device:   job.device,
	})
}

func (l *loop) finish(res evalResult) {
	l.s.evaluating = false
	switch {
	case res.rebuilt:
		l.s.dirtyDay = ""
		l.t.metrics.ObserveRebuild()
	case res.rebuildErr != nil:
		l.t.logger.Warn("daily record rebuild failed", "day", l.s.dirtyDay, "error", res.rebuildErr)
	}

	switch {
	case res.positionErr != nil:
		l.s.positionErr = res.positionErr
		l.s.lastErr = res.positionErr
		l.t.metrics.ObserveTick("position_unavailable")
		l.t.metrics.ObserveFailure("position")
		l.t.logger.Warn("position unavailable", "error", res.positionErr)
	case res.err != nil:
		l.s.positionErr = nil
		l.s.lastErr = res.err
		l.observePosition(res)
		if res.panicked || errors.Is(res.err, apperrors.ErrStoreWrite) {
			l.s.dirtyDay = res.day
		}
		l.t.metrics.ObserveTick("store_error")
		l.t.logger.Error("attendance evaluation failed", "day", res.day, "error", res.err)
	default:
		l.s.positionErr = nil
		l.s.lastErr = nil
		l.observePosition(res)
		if res.day == l.s.day && len(res.outcome.Events) >= len(l.s.events) {
			l.s.events = res.outcome.Events
		}
		l.s.checkedIn = domain.CheckedIn(l.s.events)
		l.s.state = domain.StateFor(l.s.checkedIn)
		if res.outcome.Appended != nil {
			l.t.metrics.ObserveTick("transition")
		} else {
			l.t.metrics.ObserveTick("steady")
		}
	}
	l.publish()
}

func (l *loop) observePosition(res evalResult) {
	if res.position == nil {
		return
	}
	l.s.position = res.position
	l.s.distance = res.outcome.Distance
	l.s.hasDistance = true
}

func (l *loop) applyOffice(update domain.OfficeUpdate) {
	switch {
	case update.Err != nil:
		l.s.office = nil
		l.s.officeErr = update.Err
		l.t.metrics.ObserveFailure("office")
		l.t.logger.Warn("office unresolved", "user", l.t.cfg.UserID, "error", update.Err)
	case update.Office == nil:
		l.s.office = nil
		l.s.officeErr = nil
		l.t.logger.Info("user has no office", "user", l.t.cfg.UserID)
	default:
		office := *update.Office
		l.s.office = &office
		l.s.officeErr = nil
		if l.s.position != nil {
			l.s.distance = domain.Distance(l.s.position.Coordinates, office.Location)
			l.s.hasDistance = true
		}
		l.t.logger.Info("office resolved", "office", office.ID, "radius_m", office.CheckinRadius)
	}
	if l.s.office == nil {
		l.s.state = domain.StateUnknown
		l.s.hasDistance = false
	}
	l.publish()
}

// rollover moves the session to the day of now and resubscribes to its log.
// An open session from the previous day is not carried over.
func (l *loop) rollover(ctx context.Context, now time.Time) {
	day := domain.DayOf(now, l.t.cfg.Location)
	if l.s.day != "" {
		l.t.logger.Info("day rollover", "from", l.s.day, "to", day)
	}
	l.s.day = day
	l.s.events = nil
	l.s.checkedIn = false
	if l.s.state != domain.StateUnknown {
		l.s.state = domain.StateOutOfRange
	}
	l.subscribe(ctx)
}

// subscribe replaces the log subscription and applies its first snapshot
// synchronously.
func (l *loop) subscribe(ctx context.Context) {
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
	}
	l.logCh = nil
	subCtx, cancel := context.WithCancel(ctx)
	ch, err := l.t.log.Subscribe(subCtx, l.t.cfg.UserID, l.s.day)
	if err != nil {
		cancel()
		l.dropSubscription(err)
		return
	}
	l.unsub = cancel
	l.logCh = ch
	select {
	case snap, ok := <-ch:
		if !ok {
			l.dropSubscription(fmt.Errorf("%w: log subscription closed", apperrors.ErrStoreRead))
			return
		}
		l.applyLog(snap)
	case <-ctx.Done():
	}
}

func (l *loop) dropSubscription(err error) {
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
	}
	l.logCh = nil
	l.s.stale = true
	l.s.lastErr = err
	l.t.metrics.ObserveFailure("subscription")
	l.t.logger.Warn("log subscription lost; retrying next tick", "day", l.s.day, "error", err)
	l.publish()
}

func (l *loop) applyLog(snap domain.LogSnapshot) {
	if snap.Day != "" && snap.Day != l.s.day {
		return
	}
	if snap.Err != nil {
		l.s.stale = true
		l.s.lastErr = snap.Err
		l.t.logger.Warn("log snapshot failed; keeping last known log", "error", snap.Err)
		l.publish()
		return
	}
	l.s.stale = false
	if len(snap.Events) >= len(l.s.events) {
		l.s.events = snap.Events
	}
	l.s.checkedIn = domain.CheckedIn(l.s.events)
	if l.s.state != domain.StateUnknown {
		l.s.state = domain.StateFor(l.s.checkedIn)
	}
	l.publish()
}

func (l *loop) publish() {
	now := l.t.clock.Now()
	s := l.s
	snap := attendancedto.SnapshotOutput{
		UserID:           l.t.cfg.UserID,
		Day:              s.day,
		State:            string(s.state),
		Status:           statusText(s),
		EffectiveMinutes: domain.EffectiveMinutes(s.events, s.checkedIn, now),
		CheckedIn:        s.checkedIn,
		IsLoading:        s.evaluating,
		Stale:            s.stale,
		Events:           toEventOutputs(s.events),
		UpdatedAt:        now,
	}
	if s.office != nil {
		snap.OfficeName = s.office.Name
		if s.hasDistance {
			snap.Distance = s.distance
			snap.DistanceText = domain.DistanceText(*s.office, s.distance, domain.HasCheckIn(s.events))
		}
	}
	if s.position != nil {
		snap.HasLocation = true
		snap.Latitude = s.position.Latitude
		snap.Longitude = s.position.Longitude
	}
	switch {
	case s.lastErr != nil:
		snap.Err = s.lastErr.Error()
	case s.officeErr != nil:
		snap.Err = s.officeErr.Error()
	}

	l.t.metrics.SetState(s.state)
	l.t.metrics.SetEffectiveMinutes(snap.EffectiveMinutes)
	if s.hasDistance {
		l.t.metrics.SetDistance(s.distance)
	}
	l.t.publish(snap)
}

func statusText(s session) string {
	switch {
	case s.office == nil:
		return domain.StatusTextNotConfigured
	case s.positionErr != nil:
		return domain.StatusTextUnavailable
	default:
		return domain.StatusText(s.state)
	}
}

func toEventOutputs(events []domain.Event) []attendancedto.EventOutput {
	out := make([]attendancedto.EventOutput, 0, len(events))
	for _, ev := range domain.Ordered(events) {
		out = append(out, attendancedto.EventOutput{
			ID:        ev.ID,
			Seq:       ev.Seq,
			Status:    string(ev.Status),
			Timestamp: ev.Timestamp,
			Latitude:  ev.Position.Latitude,
			Longitude: ev.Position.Longitude,
			Device:    ev.Device.Name,
			Network:   ev.Device.Network,
		})
	}
	return out
}
