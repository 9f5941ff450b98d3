package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"geoattend/internal/modules/attendance/domain"
	attendancedto "geoattend/internal/modules/attendance/dto"
	attendancein "geoattend/internal/modules/attendance/port/in"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	"geoattend/internal/modules/attendance/service"
	"geoattend/internal/platform/clock"
	apperrors "geoattend/internal/platform/errors"
)

type Dependencies struct {
	Offices    attendanceout.OfficeResolver
	Positions  attendanceout.PositionSource
	Log        attendanceout.EventLog
	Records    attendanceout.DailyRecordStore
	Roster     attendanceout.Roster
	Notes      attendanceout.NoteExporter
	Evaluator  *service.Evaluator
	Reconciler *service.Reconciler
	Clock      clock.Clock
	Location   *time.Location
	// DefaultUser is used when an input leaves UserID empty.
	DefaultUser string
	Device      domain.Device
}

type Interactor struct {
	deps Dependencies
}

func NewInteractor(deps Dependencies) attendancein.Usecase {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Interactor{deps: deps}
}

func (i *Interactor) Check(ctx context.Context, input attendancedto.CheckInput) (attendancedto.CheckOutput, error) {
	userID, err := i.user(input.UserID)
	if err != nil {
		return attendancedto.CheckOutput{}, err
	}
	day := i.today()
	out := attendancedto.CheckOutput{UserID: userID, Day: day, State: string(domain.StateUnknown), Status: domain.StatusTextNotConfigured}

	office, err := i.officeFor(ctx, userID)
	if err != nil {
		return out, err
	}
	out.OfficeName = office.Name

	pos, err := i.deps.Positions.Current(ctx)
	if err != nil {
		out.Status = domain.StatusTextUnavailable
		return out, err
	}
	outcome, err := i.deps.Evaluator.Evaluate(ctx, service.Observation{
		UserID:   userID,
		Day:      day,
		Office:   office,
		Position: pos,
		Device:   i.deps.Device,
	})
	out.Distance = outcome.Distance
	if err != nil {
		out.Status = domain.StatusTextUnknown
		return out, err
	}
	state := domain.StateFor(outcome.CheckedIn)
	out.State = string(state)
	out.Status = domain.StatusText(state)
	out.DistanceText = domain.DistanceText(office, outcome.Distance, domain.HasCheckIn(outcome.Events))
	out.EffectiveMinutes = domain.EffectiveMinutes(outcome.Events, outcome.CheckedIn, i.deps.Clock.Now())
	if outcome.Appended != nil {
		out.Transition = string(outcome.Appended.Status)
	}
	return out, nil
}

func (i *Interactor) TodayLog(ctx context.Context, input attendancedto.LogInput) ([]attendancedto.EventOutput, error) {
	userID, err := i.user(input.UserID)
	if err != nil {
		return nil, err
	}
	day, err := i.day(input.Day)
	if err != nil {
		return nil, err
	}
	events, err := i.deps.Log.List(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	return toEventOutputs(events), nil
}

func (i *Interactor) ShowRecord(ctx context.Context, input attendancedto.RecordInput) (attendancedto.RecordOutput, error) {
	userID, err := i.user(input.UserID)
	if err != nil {
		return attendancedto.RecordOutput{}, err
	}
	day, err := i.day(input.Day)
	if err != nil {
		return attendancedto.RecordOutput{}, err
	}
	record, err := i.deps.Records.Get(ctx, userID, day)
	if errors.Is(err, apperrors.ErrNotFound) {
		return attendancedto.RecordOutput{UserID: userID, Day: day}, nil
	}
	if err != nil {
		return attendancedto.RecordOutput{}, err
	}
	return i.recordOutput(record), nil
}

func (i *Interactor) RebuildRecord(ctx context.Context, input attendancedto.RecordInput) (attendancedto.RecordOutput, error) {
	userID, err := i.user(input.UserID)
	if err != nil {
		return attendancedto.RecordOutput{}, err
	}
	day, err := i.day(input.Day)
	if err != nil {
		return attendancedto.RecordOutput{}, err
	}
	record, found, err := i.deps.Reconciler.Rebuild(ctx, userID, day)
	if err != nil {
		return attendancedto.RecordOutput{}, err
	}
	if !found {
		return attendancedto.RecordOutput{UserID: userID, Day: day}, nil
	}
	return i.recordOutput(record), nil
}

func (i *Interactor) Distance(ctx context.Context, input attendancedto.DistanceInput) (attendancedto.DistanceOutput, error) {
	userID, err := i.user(input.UserID)
	if err != nil {
		return attendancedto.DistanceOutput{}, err
	}
	office, err := i.officeFor(ctx, userID)
	if err != nil {
		return attendancedto.DistanceOutput{}, err
	}
	at := domain.Coordinates{Latitude: input.Latitude, Longitude: input.Longitude}
	if input.UseCurrent {
		pos, err := i.deps.Positions.Current(ctx)
		if err != nil {
			return attendancedto.DistanceOutput{}, err
		}
		at = pos.Coordinates
	}
	if err := at.Validate(); err != nil {
		return attendancedto.DistanceOutput{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	events, err := i.deps.Log.List(ctx, userID, i.today())
	if err != nil {
		return attendancedto.DistanceOutput{}, err
	}
	d := domain.Distance(at, office.Location)
	return attendancedto.DistanceOutput{
		OfficeID:      office.ID,
		OfficeName:    office.Name,
		Distance:      d,
		CheckinRadius: office.CheckinRadius,
		Within:        office.Contains(d),
		DistanceText:  domain.DistanceText(office, d, domain.HasCheckIn(events)),
	}, nil
}

func (i *Interactor) OfficeReport(ctx context.Context, input attendancedto.ReportInput) (attendancedto.ReportOutput, error) {
	if i.deps.Roster == nil {
		return attendancedto.ReportOutput{}, fmt.Errorf("office roster is not configured")
	}
	officeID := strings.TrimSpace(input.OfficeID)
	if officeID == "" {
		return attendancedto.ReportOutput{}, fmt.Errorf("%w: office id is required", apperrors.ErrInvalidInput)
	}
	day, err := i.day(input.Day)
	if err != nil {
		return attendancedto.ReportOutput{}, err
	}
	office, err := i.deps.Roster.Office(ctx, officeID)
	if err != nil {
		return attendancedto.ReportOutput{}, err
	}
	members, err := i.deps.Roster.Members(ctx, officeID)
	if err != nil {
		return attendancedto.ReportOutput{}, err
	}
	records, err := i.deps.Records.ListByDay(ctx, day)
	if err != nil {
		return attendancedto.ReportOutput{}, err
	}
	byUser := make(map[string]domain.DailyRecord, len(records))
	for _, rec := range records {
		byUser[rec.UserID] = rec
	}

	out := attendancedto.ReportOutput{OfficeID: office.ID, OfficeName: office.Name, Day: day}
	for _, member := range members {
		row := attendancedto.ReportRow{UserID: member.UserID, Role: member.Role}
		if rec, ok := byUser[member.UserID]; ok {
			first := rec.FirstCheckIn
			row.FirstCheckIn = &first
			row.LastCheckout = rec.LastCheckout
			row.EffectiveMinutes = rec.EffectiveMinutes
			row.CheckedIn = rec.OpenSince != nil
		}
		out.Rows = append(out.Rows, row)
	}
	sort.Slice(out.Rows, func(a, b int) bool { return out.Rows[a].UserID < out.Rows[b].UserID })
	return out, nil
}

func (i *Interactor) ExportDay(ctx context.Context, input attendancedto.ExportInput) (attendancedto.ExportOutput, error) {
	if i.deps.Notes == nil {
		return attendancedto.ExportOutput{}, fmt.Errorf("note exporter is not configured")
	}
	userID, err := i.user(input.UserID)
	if err != nil {
		return attendancedto.ExportOutput{}, err
	}
	day, err := i.day(input.Day)
	if err != nil {
		return attendancedto.ExportOutput{}, err
	}
	events, err := i.deps.Log.List(ctx, userID, day)
	if err != nil {
		return attendancedto.ExportOutput{}, err
	}
	note := attendanceout.DayNote{UserID: userID, Day: day, Events: events, Generated: i.deps.Clock.Now()}
	record, err := i.deps.Records.Get(ctx, userID, day)
	switch {
	case err == nil:
		note.Record = &record
	case !errors.Is(err, apperrors.ErrNotFound):
		return attendancedto.ExportOutput{}, err
	}
	if office, err := i.officeFor(ctx, userID); err == nil {
		note.Office = office.Name
	}
	path, err := i.deps.Notes.ExportDay(ctx, note)
	if err != nil {
		return attendancedto.ExportOutput{}, err
	}
	minutes := domain.Summarize(events).ClosedMinutes
	return attendancedto.ExportOutput{Path: path, Events: len(events), EffectiveMinutes: minutes}, nil
}

// officeFor takes the first emission of the office stream.
func (i *Interactor) officeFor(ctx context.Context, userID string) (domain.Office, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates, err := i.deps.Offices.Resolve(streamCtx, userID)
	if err != nil {
		return domain.Office{}, err
	}
	select {
	case update, ok := <-updates:
		switch {
		case !ok:
			return domain.Office{}, fmt.Errorf("%w: office stream closed", apperrors.ErrOfficeUnresolved)
		case update.Err != nil:
			return domain.Office{}, update.Err
		case update.Office == nil:
			return domain.Office{}, fmt.Errorf("%w: user %s has no office", apperrors.ErrOfficeUnresolved, userID)
		}
		return *update.Office, nil
	case <-ctx.Done():
		return domain.Office{}, ctx.Err()
	}
}

func (i *Interactor) recordOutput(record domain.DailyRecord) attendancedto.RecordOutput {
	first := record.FirstCheckIn
	out := attendancedto.RecordOutput{
		UserID:           record.UserID,
		Day:              record.Day,
		FirstCheckIn:     &first,
		LastCheckout:     record.LastCheckout,
		OpenSince:        record.OpenSince,
		EffectiveMinutes: record.EffectiveMinutes,
		UpdatedAt:        record.UpdatedAt,
		Found:            true,
	}
	if record.OpenSince != nil && record.Day == i.today() {
		out.ProvisionalMinutes = domain.RoundMinutes(i.deps.Clock.Now().Sub(*record.OpenSince))
	}
	return out
}

func (i *Interactor) user(userID string) (string, error) {
	if userID = strings.TrimSpace(userID); userID != "" {
		return userID, nil
	}
	if i.deps.DefaultUser != "" {
		return i.deps.DefaultUser, nil
	}
	return "", fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
}

func (i *Interactor) today() string {
	return domain.DayOf(i.deps.Clock.Now(), i.deps.Location)
}

func (i *Interactor) day(day string) (string, error) {
	if strings.TrimSpace(day) == "" {
		return i.today(), nil
	}
	if _, err := domain.ParseDay(day, i.deps.Location); err != nil {
		return "", err
	}
	return day, nil
}
