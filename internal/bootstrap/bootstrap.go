package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	attendanceinadapter "geoattend/internal/modules/attendance/adapter/in"
	attendanceoutadapter "geoattend/internal/modules/attendance/adapter/out"
	attendancedomain "geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	attendanceservice "geoattend/internal/modules/attendance/service"
	attendanceusecase "geoattend/internal/modules/attendance/usecase"
	officeinadapter "geoattend/internal/modules/office/adapter/in"
	officeoutadapter "geoattend/internal/modules/office/adapter/out"
	officeservice "geoattend/internal/modules/office/service"
	officeusecase "geoattend/internal/modules/office/usecase"
	positioninadapter "geoattend/internal/modules/position/adapter/in"
	positionoutadapter "geoattend/internal/modules/position/adapter/out"
	positionout "geoattend/internal/modules/position/port/out"
	positionservice "geoattend/internal/modules/position/service"
	positionusecase "geoattend/internal/modules/position/usecase"
	"geoattend/internal/platform/clock"
	"geoattend/internal/platform/config"
	"geoattend/internal/platform/db"
	"geoattend/internal/platform/id"
	"geoattend/internal/platform/tx"
	uiapp "geoattend/internal/ui/app"
)

type App struct {
	Config config.Config
	Logger hclog.Logger

	AttendanceCLI attendanceinadapter.CLIHandler
	OfficeCLI     officeinadapter.CLIHandler
	PositionCLI   positioninadapter.CLIHandler
	TrackerTUI    attendanceinadapter.TUIHandler

	tracker   *attendanceusecase.Tracker
	scheduler *attendanceinadapter.Scheduler
	registry  *prometheus.Registry
	closers   []func() error
}

// New wires every module against the configured store and position
// provider. The schema is migrated up before the store is used.
func New(ctx context.Context, cfg config.Config, logger hclog.Logger) (*App, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	clk := clock.SystemClock{}
	app := &App{Config: cfg, Logger: logger}

	conn, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, conn.Close)
	txm := tx.NewSQLManager(conn)

	var (
		eventLog attendanceout.EventLog
		records  attendanceout.DailyRecordStore
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		store := attendanceoutadapter.NewPostgresStore(conn, txm, cfg.Store.DSN, clk, logger)
		eventLog, records = store, store
	default:
		store := attendanceoutadapter.NewSQLiteStore(conn, txm, clk, logger)
		eventLog, records = store, store
	}

	officeSvc := officeservice.NewDirectoryService(officeoutadapter.NewYAMLDirectoryStore(cfg.OfficesFile, logger), logger)
	officeUC := officeusecase.NewInteractor(officeSvc)
	offices := attendanceoutadapter.NewOfficeBridge(officeUC)

	provider, err := app.positionProvider(cfg, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	positionUC := positionusecase.NewInteractor(positionservice.NewPositionService(provider, cfg.Position.Timeout, clk, logger))
	positions := attendanceoutadapter.NewPositionBridge(positionUC)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := attendanceoutadapter.NewPrometheusMetrics(app.registry)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	device := attendancedomain.Device{Name: cfg.Device, Network: cfg.Network, AccuracyM: cfg.Position.AccuracyM}
	reconciler := attendanceservice.NewReconciler(records, eventLog, clk)
	evaluator := attendanceservice.NewEvaluator(eventLog, reconciler, txm, clk, id.UUID{}, metrics, logger)
	attendanceUC := attendanceusecase.NewInteractor(attendanceusecase.Dependencies{
		Offices:     offices,
		Positions:   positions,
		Log:         eventLog,
		Records:     records,
		Roster:      offices,
		Notes:       attendanceoutadapter.NewVaultNoteExporter(cfg.NotesDir),
		Evaluator:   evaluator,
		Reconciler:  reconciler,
		Clock:       clk,
		Location:    loc,
		DefaultUser: cfg.UserID,
		Device:      device,
	})
	app.tracker = attendanceusecase.NewTracker(
		attendanceusecase.TrackerConfig{UserID: cfg.UserID, Device: device, Interval: cfg.TickInterval, Location: loc},
		offices, positions, eventLog, evaluator, reconciler, clk, metrics, logger,
	)

	if cfg.ReconcileSchedule != "" && cfg.UserID != "" {
		app.scheduler = attendanceinadapter.NewScheduler(attendanceUC, clk, loc, []string{cfg.UserID}, true, logger)
		if err := app.scheduler.Schedule(cfg.ReconcileSchedule); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("reconcile_schedule %q: %w", cfg.ReconcileSchedule, err)
		}
	}

	app.AttendanceCLI = attendanceinadapter.NewCLIHandler(attendanceUC)
	app.OfficeCLI = officeinadapter.NewCLIHandler(officeUC)
	app.PositionCLI = positioninadapter.NewCLIHandler(positionUC)
	app.TrackerTUI = attendanceinadapter.NewTUIHandler(app.tracker)
	return app, nil
}

func openStore(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	var (
		conn *sql.DB
		err  error
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		conn, err = db.OpenPostgres(ctx, cfg.Store.DSN)
	default:
		conn, err = db.OpenSQLite(ctx, cfg.Store.DSN)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cfg.Store.Driver, cfg.Store.DSN, db.DirectionUp); err != nil && !errors.Is(err, db.ErrNoChange) {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (a *App) positionProvider(cfg config.Config, logger hclog.Logger) (positionout.Provider, error) {
	switch cfg.Position.Provider {
	case config.ProviderPlugin:
		p := positionoutadapter.NewPluginProvider(positionoutadapter.PluginConfig{
			Binary: cfg.Position.PluginBinary,
			Env: []string{
				"GEOATTEND_FIXED_LATITUDE=" + strconv.FormatFloat(cfg.Position.Latitude, 'f', -1, 64),
				"GEOATTEND_FIXED_LONGITUDE=" + strconv.FormatFloat(cfg.Position.Longitude, 'f', -1, 64),
				"GEOATTEND_FIXED_ACCURACY_M=" + strconv.FormatFloat(cfg.Position.AccuracyM, 'f', -1, 64),
			},
		}, logger)
		a.closers = append(a.closers, p.Close)
		return p, nil
	case config.ProviderStatic:
		return positionoutadapter.NewStaticProvider(cfg.Position.Latitude, cfg.Position.Longitude, cfg.Position.AccuracyM), nil
	default:
		return nil, fmt.Errorf("unknown position provider %q", cfg.Position.Provider)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunTracker runs the tracker until ctx is done, together with the nightly
// scheduler and the metrics endpoint when they are configured.
func (a *App) RunTracker(ctx context.Context) error {
	if err := a.Config.RequireUser(); err != nil {
		return err
	}
	if a.scheduler != nil {
		a.scheduler.Start()
		defer a.scheduler.Stop()
	}
	if a.Config.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              a.Config.MetricsAddr,
			Handler:           a.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("metrics server stopped", "addr", a.Config.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.Logger.Info("serving metrics", "addr", a.Config.MetricsAddr)
	}
	err := a.tracker.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	return mux
}

// RunTUI drives the tracker behind the terminal UI. Quitting the UI stops
// the tracker and waits for it to wind down.
func RunTUI(ctx context.Context, app *App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.RunTracker(ctx) }()

	model := uiapp.NewModel(ctx, app.TrackerTUI)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, uiErr := program.Run()
	cancel()
	runErr := <-done
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return runErr
}
