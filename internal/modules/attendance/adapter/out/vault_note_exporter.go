package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	"geoattend/internal/platform/markdown"
	"geoattend/internal/platform/slug"
)

const (
	noteSchemaVersion = 1
	noteBlockStart    = "<!-- geoattend:log:start -->"
	noteBlockEnd      = "<!-- geoattend:log:end -->"
)

// VaultNoteExporter writes one markdown note per (user, day). Re-exporting
// replaces the frontmatter and the managed log block and keeps everything
// else the user wrote.
type VaultNoteExporter struct {
	root string
}

var _ attendanceout.NoteExporter = (*VaultNoteExporter)(nil)

func NewVaultNoteExporter(root string) *VaultNoteExporter {
	return &VaultNoteExporter{root: root}
}

func (e *VaultNoteExporter) ExportDay(_ context.Context, note attendanceout.DayNote) (string, error) {
	dir := filepath.Join(e.root, "attendance", slug.Make(note.UserID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create attendance note dir: %w", err)
	}
	path := filepath.Join(dir, note.Day+".md")

	body := fmt.Sprintf("# Attendance %s\n\n", note.Day)
	if existing, err := os.ReadFile(path); err == nil {
		_, prevBody, err := markdown.SplitFrontmatter(string(existing))
		if err != nil {
			return "", fmt.Errorf("read attendance note %s: %w", path, err)
		}
		body = prevBody
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read attendance note: %w", err)
	}
	body = markdown.ReplaceManagedBlock(body, noteBlockStart, noteBlockEnd, renderLogTable(note.Events))

	rendered, err := markdown.RenderFrontmatter(noteMeta(note), body)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write attendance note: %w", err)
	}
	return path, nil
}

func noteMeta(note attendanceout.DayNote) []markdown.Field {
	meta := []markdown.Field{
		{Key: "schema_version", Value: noteSchemaVersion},
		{Key: "user_id", Value: note.UserID},
		{Key: "day", Value: note.Day},
		{Key: "office", Value: note.Office},
		{Key: "events", Value: len(note.Events)},
	}
	if rec := note.Record; rec != nil {
		meta = append(meta,
			markdown.Field{Key: "first_checkin", Value: rec.FirstCheckIn.UTC().Format(time.RFC3339)},
			markdown.Field{Key: "last_checkout", Value: formatOptional(rec.LastCheckout)},
			markdown.Field{Key: "effective_minutes", Value: rec.EffectiveMinutes},
			markdown.Field{Key: "checked_in", Value: rec.OpenSince != nil},
		)
	}
	return append(meta, markdown.Field{Key: "generated_at", Value: note.Generated.UTC().Format(time.RFC3339)})
}

// formatOptional returns nil for a missing time so the key is left out.
func formatOptional(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func renderLogTable(events []domain.Event) string {
	if len(events) == 0 {
		return "_No attendance entries._"
	}
	var b strings.Builder
	b.WriteString("| # | Status | Time (UTC) | Position | Device |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, ev := range domain.Ordered(events) {
		device := ev.Device.Name
		if ev.Device.Network != "" {
			device += " (" + ev.Device.Network + ")"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n", ev.Seq, ev.Status, ev.Timestamp.UTC().Format("15:04:05"), ev.Position.String(), device)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
