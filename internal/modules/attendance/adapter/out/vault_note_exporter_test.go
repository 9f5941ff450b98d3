package out_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	out "geoattend/internal/modules/attendance/adapter/out"
	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	"geoattend/internal/platform/markdown"
)

func TestVaultNoteExporterKeepsUserText(t *testing.T) {
	t.Parallel()
	exporter := out.NewVaultNoteExporter(t.TempDir())
	ctx := context.Background()
	checkin := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	first := event("e1", domain.StatusCheckIn)
	first.Seq, first.Timestamp = 1, checkin

	note := attendanceout.DayNote{
		UserID:    "u1",
		Day:       "2026-03-02",
		Office:    "Ahmedabad",
		Events:    []domain.Event{first},
		Record:    &domain.DailyRecord{UserID: "u1", Day: "2026-03-02", FirstCheckIn: checkin, OpenSince: &checkin},
		Generated: checkin,
	}
	path, err := exporter.ExportDay(ctx, note)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasSuffix(path, "attendance/u1/2026-03-02.md") {
		t.Fatalf("unexpected path %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	edited := string(raw) + "\nLeft early for the client visit.\n"
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("edit: %v", err)
	}

	checkout := checkin.Add(48 * time.Minute)
	second := event("e2", domain.StatusCheckOut)
	second.Seq, second.Timestamp = 2, checkout
	note.Events = append(note.Events, second)
	note.Record = &domain.DailyRecord{UserID: "u1", Day: "2026-03-02", FirstCheckIn: checkin, LastCheckout: &checkout, EffectiveMinutes: 48}
	if _, err := exporter.ExportDay(ctx, note); err != nil {
		t.Fatalf("re-export: %v", err)
	}

	raw, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	meta, body, err := markdown.SplitFrontmatter(string(raw))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if meta["effective_minutes"] != 48 || meta["events"] != 2 || meta["checked_in"] != false {
		t.Fatalf("unexpected frontmatter %+v", meta)
	}
	if !strings.Contains(body, "Left early for the client visit.") {
		t.Fatalf("user text lost:\n%s", body)
	}
	if strings.Count(body, "<!-- geoattend:log:start -->") != 1 || !strings.Contains(body, "| 2 | checkout | 09:48:00 |") {
		t.Fatalf("managed block not replaced:\n%s", body)
	}
}
