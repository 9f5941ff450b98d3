package in

import (
	"context"

	"geoattend/internal/modules/attendance/dto"
)

type Usecase interface {
	Check(ctx context.Context, input dto.CheckInput) (dto.CheckOutput, error)
	TodayLog(ctx context.Context, input dto.LogInput) ([]dto.EventOutput, error)
	ShowRecord(ctx context.Context, input dto.RecordInput) (dto.RecordOutput, error)
	RebuildRecord(ctx context.Context, input dto.RecordInput) (dto.RecordOutput, error)
	Distance(ctx context.Context, input dto.DistanceInput) (dto.DistanceOutput, error)
	OfficeReport(ctx context.Context, input dto.ReportInput) (dto.ReportOutput, error)
	ExportDay(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error)
}

// TrackerUsecase is the presentation boundary of the running tracker.
type TrackerUsecase interface {
	Run(ctx context.Context) error
	Snapshot() dto.SnapshotOutput
	Watch(ctx context.Context) <-chan dto.SnapshotOutput
	Trigger()
}
