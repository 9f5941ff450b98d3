package in

import (
	"context"

	attendancedto "geoattend/internal/modules/attendance/dto"
	attendancein "geoattend/internal/modules/attendance/port/in"
)

// TUIHandler is what the tracker screen sees of a running tracker.
type TUIHandler struct {
	tracker attendancein.TrackerUsecase
}

func NewTUIHandler(tracker attendancein.TrackerUsecase) TUIHandler {
	return TUIHandler{tracker: tracker}
}

func (h TUIHandler) Snapshot() attendancedto.SnapshotOutput {
	return h.tracker.Snapshot()
}

func (h TUIHandler) Watch(ctx context.Context) <-chan attendancedto.SnapshotOutput {
	return h.tracker.Watch(ctx)
}

// Refresh asks for an immediate evaluation.
func (h TUIHandler) Refresh() {
	h.tracker.Trigger()
}
