package in

import (
	"context"
	"time"

	attendancedto "geoattend/internal/modules/attendance/dto"
	attendancein "geoattend/internal/modules/attendance/port/in"
	"geoattend/internal/platform/clock"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the nightly reconciliation: yesterday's daily record is
// rebuilt from the log for every user, then optionally exported as a note.
type Scheduler struct {
	usecase attendancein.Usecase
	clock   clock.Clock
	loc     *time.Location
	users   []string
	export  bool
	logger  hclog.Logger
	cron    *cron.Cron
}

func NewScheduler(usecase attendancein.Usecase, clk clock.Clock, loc *time.Location, users []string, export bool, logger hclog.Logger) *Scheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.Named("nightly")
	cronLogger := cron.PrintfLogger(logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}))
	return &Scheduler{
		usecase: usecase,
		clock:   clk,
		loc:     loc,
		users:   users,
		export:  export,
		logger:  logger,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Schedule registers the nightly job with a standard five-field cron spec.
func (s *Scheduler) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, func() { s.RunNightly(context.Background()) })
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNightly reconciles the previous calendar day. It returns the number of
// users whose record could not be rebuilt.
func (s *Scheduler) RunNightly(ctx context.Context) int {
	day := s.clock.Now().In(s.loc).AddDate(0, 0, -1).Format("2006-01-02")
	failed := 0
	for _, userID := range s.users {
		rec, err := s.usecase.RebuildRecord(ctx, attendancedto.RecordInput{UserID: userID, Day: day})
		if err != nil {
			failed++
			s.logger.Error("nightly rebuild failed", "user", userID, "day", day, "error", err)
			continue
		}
		s.logger.Info("nightly rebuild", "user", userID, "day", day, "found", rec.Found, "effective_minutes", rec.EffectiveMinutes)
		if !s.export || !rec.Found {
			continue
		}
		out, err := s.usecase.ExportDay(ctx, attendancedto.ExportInput{UserID: userID, Day: day})
		if err != nil {
			s.logger.Warn("nightly export failed", "user", userID, "day", day, "error", err)
			continue
		}
		s.logger.Debug("nightly export", "user", userID, "path", out.Path)
	}
	return failed
}
