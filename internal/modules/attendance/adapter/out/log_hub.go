package out

import (
	"context"
	"sync"

	"geoattend/internal/modules/attendance/domain"

	hclog "github.com/hashicorp/go-hclog"
)

type partitionKey struct {
	userID string
	day    string
}

// logHub fans change signals for a (user, day) partition out to in-process
// subscribers. Signals coalesce; subscribers re-read the partition.
type logHub struct {
	mu   sync.Mutex
	subs map[partitionKey]map[chan struct{}]struct{}
}

func newLogHub() *logHub {
	return &logHub{subs: map[partitionKey]map[chan struct{}]struct{}{}}
}

func (h *logHub) register(key partitionKey) chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = map[chan struct{}]struct{}{}
	}
	h.subs[key][ch] = struct{}{}
	return ch
}

func (h *logHub) unregister(key partitionKey, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[key], ch)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}

func (h *logHub) publish(key partitionKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *logHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

type listFunc func(ctx context.Context, userID, day string) ([]domain.Event, error)

// streamPartition emits the partition now and after every signal until ctx
// is done. Read failures are delivered as snapshots with Err set.
func streamPartition(ctx context.Context, key partitionKey, signals <-chan struct{}, list listFunc, logger hclog.Logger, done func()) <-chan domain.LogSnapshot {
	out := make(chan domain.LogSnapshot, 1)
	go func() {
		defer close(out)
		defer done()
		for {
			events, err := list(ctx, key.userID, key.day)
			if ctx.Err() != nil {
				return
			}
			snap := domain.LogSnapshot{UserID: key.userID, Day: key.day, Events: events, Err: err}
			if err != nil {
				logger.Warn("log snapshot read failed", "user", key.userID, "day", key.day, "error", err)
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
