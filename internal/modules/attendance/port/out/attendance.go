package out

import (
	"context"
	"time"

	"geoattend/internal/modules/attendance/domain"
)

// OfficeResolver streams the user's office. It emits the current resolution
// first and again on every change.
type OfficeResolver interface {
	Resolve(ctx context.Context, userID string) (<-chan domain.OfficeUpdate, error)
}

type PositionSource interface {
	Current(ctx context.Context) (domain.Position, error)
}

// EventLog is the append-only (user, day) attendance log. Append assigns ID,
// Seq and Timestamp and rejects entries that break alternation. Subscribe
// emits the current log first; a closed channel means the subscription dropped.
type EventLog interface {
	Append(ctx context.Context, event domain.Event) (domain.Event, error)
	List(ctx context.Context, userID, day string) ([]domain.Event, error)
	Subscribe(ctx context.Context, userID, day string) (<-chan domain.LogSnapshot, error)
}

type DailyRecordStore interface {
	Get(ctx context.Context, userID, day string) (domain.DailyRecord, error)
	UpsertDailyRecord(ctx context.Context, record domain.DailyRecord) error
	ListByDay(ctx context.Context, day string) ([]domain.DailyRecord, error)
}

type Roster interface {
	Office(ctx context.Context, officeID string) (domain.Office, error)
	Members(ctx context.Context, officeID string) ([]domain.Member, error)
}

// DayNote is what the note exporter writes for one (user, day).
type DayNote struct {
	UserID    string
	Day       string
	Office    string
	Events    []domain.Event
	Record    *domain.DailyRecord
	Generated time.Time
}

type NoteExporter interface {
	ExportDay(ctx context.Context, note DayNote) (string, error)
}

type Metrics interface {
	ObserveTick(outcome string)
	ObserveTransition(status domain.Status)
	ObserveFailure(kind string)
	ObserveRebuild()
	SetState(state domain.TrackerState)
	SetDistance(meters float64)
	SetEffectiveMinutes(minutes int)
}
