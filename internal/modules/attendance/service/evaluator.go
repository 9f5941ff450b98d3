package service

import (
	"context"
	"errors"
	"fmt"

	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"
	"geoattend/internal/platform/id"
	"geoattend/internal/platform/tx"

	hclog "github.com/hashicorp/go-hclog"
)

// Observation is one sample evaluated against the resolved office.
type Observation struct {
	UserID   string
	Day      string
	Office   domain.Office
	Position domain.Position
	Device   domain.Device
}

type Outcome struct {
	Distance float64
	Within   bool
	// Events is the day's log after the evaluation, including Appended.
	Events    []domain.Event
	Appended  *domain.Event
	Record    *domain.DailyRecord
	CheckedIn bool
}

// Evaluator runs one transition decision: read the log, compare the distance
// with the radius, and append plus reconcile when the presence flips.
type Evaluator struct {
	log        attendanceout.EventLog
	reconciler *Reconciler
	tx         tx.Manager
	clock      clock.Clock
	ids        id.Generator
	metrics    attendanceout.Metrics
	logger     hclog.Logger
}

func NewEvaluator(log attendanceout.EventLog, reconciler *Reconciler, txManager tx.Manager, clock clock.Clock, ids id.Generator, metrics attendanceout.Metrics, logger hclog.Logger) *Evaluator {
	if txManager == nil {
		txManager = tx.NoopManager{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Evaluator{
		log:        log,
		reconciler: reconciler,
		tx:         txManager,
		clock:      clock,
		ids:        ids,
		metrics:    metrics,
		logger:     logger.Named("evaluator"),
	}
}

// Evaluate reads with ctx but writes on a context detached from its
// cancellation, so a stop during the write cannot leave half a transition.
// Errors wrap ErrStoreRead or ErrStoreWrite.
func (e *Evaluator) Evaluate(ctx context.Context, obs Observation) (Outcome, error) {
	d := domain.Distance(obs.Position.Coordinates, obs.Office.Location)
	out := Outcome{Distance: d, Within: obs.Office.Contains(d)}

	events, err := e.log.List(ctx, obs.UserID, obs.Day)
	if err != nil {
		return out, asStoreError(apperrors.ErrStoreRead, fmt.Errorf("read log: %w", err))
	}
	next, write := decide(events, out.Within)
	if !write {
		out.Events = events
		out.CheckedIn = domain.CheckedIn(events)
		return out, nil
	}

	var (
		appended domain.Event
		record   domain.DailyRecord
	)
	err = e.tx.Within(context.WithoutCancel(ctx), func(ctx context.Context) error {
		ev, err := e.log.Append(ctx, domain.Event{
			ID:        e.ids.New(),
			UserID:    obs.UserID,
			Day:       obs.Day,
			Status:    next,
			Timestamp: e.clock.Now(),
			Position:  obs.Position.Coordinates,
			Device:    obs.Device,
		})
		if err != nil {
			return fmt.Errorf("append %s: %w", next, err)
		}
		appended = ev
		switch next {
		case domain.StatusCheckIn:
			record, err = e.reconciler.CheckIn(ctx, obs.UserID, obs.Day, ev.Timestamp)
		case domain.StatusCheckOut:
			record, _, err = e.reconciler.CheckOut(ctx, obs.UserID, obs.Day, ev.Timestamp)
		}
		if err != nil {
			return fmt.Errorf("update daily record: %w", err)
		}
		return nil
	})
	if err != nil {
		e.metrics.ObserveFailure("store_write")
		return out, asStoreError(apperrors.ErrStoreWrite, err)
	}

	e.metrics.ObserveTransition(next)
	e.logger.Info("attendance transition", "user", obs.UserID, "day", obs.Day, "status", next, "seq", appended.Seq, "distance_m", d)
	out.Appended = &appended
	out.Record = &record
	out.Events = append(append(make([]domain.Event, 0, len(events)+1), events...), appended)
	out.CheckedIn = next == domain.StatusCheckIn
	return out, nil
}

// decide returns the status to append, if any.
func decide(events []domain.Event, within bool) (domain.Status, bool) {
	last, _ := domain.LastStatus(events)
	switch {
	case within && last != domain.StatusCheckIn:
		return domain.StatusCheckIn, true
	case !within && last == domain.StatusCheckIn:
		return domain.StatusCheckOut, true
	default:
		return "", false
	}
}

func asStoreError(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
