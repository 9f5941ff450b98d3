package in

import (
	"context"

	attendancedto "geoattend/internal/modules/attendance/dto"
	attendancein "geoattend/internal/modules/attendance/port/in"
)

type CLIHandler struct {
	usecase attendancein.Usecase
}

func NewCLIHandler(usecase attendancein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Check(ctx context.Context, userID string) (attendancedto.CheckOutput, error) {
	return h.usecase.Check(ctx, attendancedto.CheckInput{UserID: userID})
}

func (h CLIHandler) Log(ctx context.Context, userID, day string) ([]attendancedto.EventOutput, error) {
	return h.usecase.TodayLog(ctx, attendancedto.LogInput{UserID: userID, Day: day})
}

func (h CLIHandler) ShowRecord(ctx context.Context, userID, day string) (attendancedto.RecordOutput, error) {
	return h.usecase.ShowRecord(ctx, attendancedto.RecordInput{UserID: userID, Day: day})
}

func (h CLIHandler) RebuildRecord(ctx context.Context, userID, day string) (attendancedto.RecordOutput, error) {
	return h.usecase.RebuildRecord(ctx, attendancedto.RecordInput{UserID: userID, Day: day})
}

func (h CLIHandler) Distance(ctx context.Context, userID string, useCurrent bool, lat, lon float64) (attendancedto.DistanceOutput, error) {
	return h.usecase.Distance(ctx, attendancedto.DistanceInput{UserID: userID, UseCurrent: useCurrent, Latitude: lat, Longitude: lon})
}

func (h CLIHandler) Report(ctx context.Context, officeID, day string) (attendancedto.ReportOutput, error) {
	return h.usecase.OfficeReport(ctx, attendancedto.ReportInput{OfficeID: officeID, Day: day})
}

func (h CLIHandler) Export(ctx context.Context, userID, day string) (attendancedto.ExportOutput, error) {
	return h.usecase.ExportDay(ctx, attendancedto.ExportInput{UserID: userID, Day: day})
}
