package in_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	attendanceinadapter "geoattend/internal/modules/attendance/adapter/in"
	attendancedto "geoattend/internal/modules/attendance/dto"
	"geoattend/internal/platform/clock"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) NewTicker(d time.Duration) clock.Ticker { return clock.SystemClock{}.NewTicker(d) }

type recordingUsecase struct {
	mu       sync.Mutex
	rebuilds []attendancedto.RecordInput
	exports  []attendancedto.ExportInput
	found    map[string]bool
	fail     map[string]error
}

func (u *recordingUsecase) Check(context.Context, attendancedto.CheckInput) (attendancedto.CheckOutput, error) {
	return attendancedto.CheckOutput{}, nil
}
func (u *recordingUsecase) TodayLog(context.Context, attendancedto.LogInput) ([]attendancedto.EventOutput, error) {
	return nil, nil
}
func (u *recordingUsecase) ShowRecord(context.Context, attendancedto.RecordInput) (attendancedto.RecordOutput, error) {
	return attendancedto.RecordOutput{}, nil
}
func (u *recordingUsecase) RebuildRecord(_ context.Context, in attendancedto.RecordInput) (attendancedto.RecordOutput, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rebuilds = append(u.rebuilds, in)
	if err := u.fail[in.UserID]; err != nil {
		return attendancedto.RecordOutput{}, err
	}
	return attendancedto.RecordOutput{UserID: in.UserID, Day: in.Day, Found: u.found[in.UserID]}, nil
}
func (u *recordingUsecase) Distance(context.Context, attendancedto.DistanceInput) (attendancedto.DistanceOutput, error) {
	return attendancedto.DistanceOutput{}, nil
}
func (u *recordingUsecase) OfficeReport(context.Context, attendancedto.ReportInput) (attendancedto.ReportOutput, error) {
	return attendancedto.ReportOutput{}, nil
}
func (u *recordingUsecase) ExportDay(_ context.Context, in attendancedto.ExportInput) (attendancedto.ExportOutput, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.exports = append(u.exports, in)
	return attendancedto.ExportOutput{Path: "/notes/" + in.UserID}, nil
}

func TestRunNightlyRebuildsYesterday(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("IST", 5*3600+1800)
	// 00:10 IST on March 3rd is still March 2nd in UTC; yesterday is March 2nd local.
	now := time.Date(2026, 3, 2, 18, 40, 0, 0, time.UTC)
	uc := &recordingUsecase{
		found: map[string]bool{"u1": true},
		fail:  map[string]error{"u3": errors.New("store down")},
	}
	s := attendanceinadapter.NewScheduler(uc, fixedClock{now: now}, loc, []string{"u1", "u2", "u3"}, true, nil)

	if failed := s.RunNightly(context.Background()); failed != 1 {
		t.Fatalf("expected one failure, got %d", failed)
	}
	if len(uc.rebuilds) != 3 || uc.rebuilds[0].Day != "2026-03-02" {
		t.Fatalf("unexpected rebuilds %+v", uc.rebuilds)
	}
	if len(uc.exports) != 1 || uc.exports[0].UserID != "u1" {
		t.Fatalf("only users with a record are exported, got %+v", uc.exports)
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	t.Parallel()
	s := attendanceinadapter.NewScheduler(&recordingUsecase{}, fixedClock{}, time.UTC, nil, false, nil)
	if err := s.Schedule("every night"); err == nil {
		t.Fatalf("expected a parse error")
	}
	if err := s.Schedule("5 0 * * *"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	s.Start()
	s.Stop()
}
