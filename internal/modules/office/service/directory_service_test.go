package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"geoattend/internal/modules/office/domain"
	apperrors "geoattend/internal/platform/errors"
)

type fakeDirectoryStore struct {
	mu      sync.Mutex
	dir     domain.Directory
	err     error
	changes chan struct{}
}

func newFakeDirectoryStore(dir domain.Directory) *fakeDirectoryStore {
	return &fakeDirectoryStore{dir: dir, changes: make(chan struct{}, 8)}
}

func (f *fakeDirectoryStore) Load(context.Context) (domain.Directory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dir, f.err
}

func (f *fakeDirectoryStore) Watch(context.Context) (<-chan struct{}, error) {
	return f.changes, nil
}

func (f *fakeDirectoryStore) set(dir domain.Directory, err error) {
	f.mu.Lock()
	f.dir, f.err = dir, err
	f.mu.Unlock()
	f.changes <- struct{}{}
}

func directory(radius float64, officeID string) domain.Directory {
	return domain.Directory{
		Offices:     []domain.Office{{ID: "ahmedabad", Name: "Ahmedabad", Latitude: 23.091, Longitude: 72.538, CheckinRadius: radius}},
		Assignments: []domain.Assignment{{UserID: "u1", OfficeID: officeID}},
	}
}

func next(t *testing.T, ch <-chan domain.Resolution) domain.Resolution {
	t.Helper()
	select {
	case res, ok := <-ch:
		if !ok {
			t.Fatalf("resolution stream closed")
		}
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("no resolution emitted")
	}
	return domain.Resolution{}
}

func TestResolveEmitsChangesOnly(t *testing.T) {
	t.Parallel()
	store := newFakeDirectoryStore(directory(100, "ahmedabad"))
	svc := NewDirectoryService(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res := next(t, ch); res.Office == nil || res.Office.CheckinRadius != 100 {
		t.Fatalf("unexpected first resolution %+v", res)
	}

	// Same content twice is deduplicated; the radius change is not.
	store.set(directory(100, "ahmedabad"), nil)
	store.set(directory(250, "ahmedabad"), nil)
	if res := next(t, ch); res.Office == nil || res.Office.CheckinRadius != 250 {
		t.Fatalf("expected radius update, got %+v", res)
	}

	store.set(directory(250, domain.Unassigned), nil)
	if res := next(t, ch); res.Office != nil || res.Err != nil {
		t.Fatalf("expected unassigned, got %+v", res)
	}

	store.set(domain.Directory{}, errors.New("disk gone"))
	if res := next(t, ch); !errors.Is(res.Err, apperrors.ErrOfficeUnresolved) {
		t.Fatalf("expected unresolved error, got %+v", res)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("no emission expected after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream should close on cancel")
	}
}

func TestResolveRejectsInvalidDirectory(t *testing.T) {
	t.Parallel()
	store := newFakeDirectoryStore(directory(-1, "ahmedabad"))
	svc := NewDirectoryService(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res := next(t, ch); !errors.Is(res.Err, apperrors.ErrOfficeUnresolved) {
		t.Fatalf("invalid directory must not resolve, got %+v", res)
	}
	if _, err := svc.Resolve(ctx, ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
