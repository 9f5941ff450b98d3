package out_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	officeout "geoattend/internal/modules/office/adapter/out"
)

const officesYAML = `offices:
  - id: ahmedabad
    name: Ahmedabad
    latitude: 23.091
    longitude: 72.538
    checkin_radius: 100
    admin_id: admin-1
assignments:
  - user_id: u1
    office_id: ahmedabad
    role: employee
  - user_id: u2
    office_id: N/A
`

func TestYAMLDirectoryStoreLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "offices.yaml")
	store := officeout.NewYAMLDirectoryStore(path, nil)

	empty, err := store.Load(context.Background())
	if err != nil || len(empty.Offices) != 0 {
		t.Fatalf("missing file should load empty, got %+v err=%v", empty, err)
	}

	if err := os.WriteFile(path, []byte(officesYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dir, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := dir.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	office, ok := dir.OfficeFor("u1")
	if !ok || office.CheckinRadius != 100 || office.AdminID != "admin-1" {
		t.Fatalf("unexpected office %+v ok=%v", office, ok)
	}
	if _, ok := dir.OfficeFor("u2"); ok {
		t.Fatalf("u2 is unassigned")
	}

	if err := os.WriteFile(path, []byte("offices:\n  - id: x\n    radius: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("unknown fields should be rejected")
	}
}

func TestYAMLDirectoryStoreWatchSignalsRewrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "offices.yaml")
	if err := os.WriteFile(path, []byte(officesYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := officeout.NewYAMLDirectoryStore(path, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := os.WriteFile(path, []byte(officesYAML+"  - user_id: u3\n    office_id: ahmedabad\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected a change signal")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("watch channel should close on cancel")
		}
	}
}
