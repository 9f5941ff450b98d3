package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"geoattend/internal/bootstrap"
	"geoattend/internal/platform/config"
	"geoattend/internal/platform/db"
	"geoattend/internal/platform/logging"
	"geoattend/internal/platform/markdown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	dataDir    string
	configFile string
	userID     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "geoattend",
		Short:         "Geo-fenced office attendance tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", ".", "directory holding geoattend.yaml, offices.yaml and the local database")
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "explicit config file (overrides <data-dir>/geoattend.yaml)")
	root.PersistentFlags().StringVar(&opts.userID, "user", "", "user id (overrides user_id)")

	root.AddCommand(newTrackCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newLogCmd(opts))
	root.AddCommand(newRecordCmd(opts))
	root.AddCommand(newOfficeCmd(opts))
	root.AddCommand(newReportCmd(opts))
	root.AddCommand(newDistanceCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newPositionCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	return root
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.dataDir, opts.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if opts.userID != "" {
		cfg.UserID = opts.userID
	}
	return cfg, nil
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close", "error", err)
		}
	}()
	return fn(ctx, app)
}

func newTrackCmd(opts *rootOptions) *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Run the live tracker (terminal UI unless --headless)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				if headless {
					return app.RunTracker(ctx)
				}
				return bootstrap.RunTUI(ctx, app)
			})
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "run without the terminal UI")
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Sample the position once and apply any check-in or checkout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.AttendanceCLI.Check(ctx, opts.userID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user=%s day=%s office=%q state=%s status=%q\n", out.UserID, out.Day, out.OfficeName, out.State, out.Status)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out.DistanceText)
				if out.Transition != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recorded %s\n", out.Transition)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "effective=%dmin\n", out.EffectiveMinutes)
				return nil
			})
		},
	}
}

func newLogCmd(opts *rootOptions) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the attendance log of a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				events, err := app.AttendanceCLI.Log(ctx, opts.userID, day)
				if err != nil {
					return err
				}
				if len(events) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no events")
					return nil
				}
				for _, ev := range events {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%.6f,%.6f\t%s\n",
						ev.Seq, ev.Status, ev.Timestamp.Format(time.RFC3339), ev.Latitude, ev.Longitude, ev.Device)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "calendar day YYYY-MM-DD (default today)")
	return cmd
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	record := &cobra.Command{Use: "record", Short: "Inspect or rebuild the daily record"}

	var showDay string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the daily record (today office time)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.AttendanceCLI.ShowRecord(ctx, opts.userID, showDay)
				if err != nil {
					return err
				}
				if !out.Found {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no record for %s on %s\n", out.UserID, out.Day)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user=%s day=%s\nfirst_checkin=%s\nlast_checkout=%s\neffective=%dmin\n",
					out.UserID, out.Day, formatTime(out.FirstCheckIn), formatTime(out.LastCheckout), out.EffectiveMinutes)
				if out.OpenSince != nil {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "open_since=%s provisional=%dmin\n", formatTime(out.OpenSince), out.ProvisionalMinutes)
				}
				return nil
			})
		},
	}
	show.Flags().StringVar(&showDay, "day", "", "calendar day YYYY-MM-DD (default today)")

	var rebuildDay string
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the daily record from the log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.AttendanceCLI.RebuildRecord(ctx, opts.userID, rebuildDay)
				if err != nil {
					return err
				}
				if !out.Found {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no events for %s on %s\n", out.UserID, out.Day)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s/%s effective=%dmin\n", out.UserID, out.Day, out.EffectiveMinutes)
				return nil
			})
		},
	}
	rebuild.Flags().StringVar(&rebuildDay, "day", "", "calendar day YYYY-MM-DD (default today)")

	record.AddCommand(show, rebuild)
	return record
}

func newOfficeCmd(opts *rootOptions) *cobra.Command {
	office := &cobra.Command{Use: "office", Short: "Inspect the office directory"}

	office.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List offices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.OfficeCLI.List(ctx)
				if err != nil {
					return err
				}
				if len(out) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no offices configured")
					return nil
				}
				for _, o := range out {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tradius=%.0fm\tmembers=%d\n", o.ID, o.Name, o.CheckinRadius, o.Members)
				}
				return nil
			})
		},
	})

	office.AddCommand(&cobra.Command{
		Use:   "show <office-id>",
		Short: "Show one office",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				o, err := app.OfficeCLI.Show(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "id: %s\nname: %s\nlocation: %.6f,%.6f\nradius: %.0fm\nadmin: %s\nmembers: %d\n",
					o.ID, o.Name, o.Latitude, o.Longitude, o.CheckinRadius, o.AdminID, o.Members)
				return nil
			})
		},
	})

	office.AddCommand(&cobra.Command{
		Use:   "members <office-id>",
		Short: "List users assigned to an office",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.OfficeCLI.Members(ctx, args[0])
				if err != nil {
					return err
				}
				for _, m := range out {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.UserID, m.Role)
				}
				return nil
			})
		},
	})
	return office
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var officeID, day string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Attendance of every member of an office for a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if officeID == "" {
				return errors.New("--office is required")
			}
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.AttendanceCLI.Report(ctx, officeID, day)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) %s\n", out.OfficeName, out.OfficeID, out.Day)
				for _, row := range out.Rows {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tin=%s\tout=%s\teffective=%dmin\tchecked_in=%t\n",
						row.UserID, row.Role, formatTime(row.FirstCheckIn), formatTime(row.LastCheckout), row.EffectiveMinutes, row.CheckedIn)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&officeID, "office", "", "office id")
	cmd.Flags().StringVar(&day, "day", "", "calendar day YYYY-MM-DD (default today)")
	return cmd
}

func newDistanceCmd(opts *rootOptions) *cobra.Command {
	var (
		current  bool
		lat, lon float64
	)
	cmd := &cobra.Command{
		Use:   "distance",
		Short: "Distance from the user's office to a position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !current && !cmd.Flags().Changed("lat") && !cmd.Flags().Changed("lon") {
				return errors.New("pass --current or --lat and --lon")
			}
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.AttendanceCLI.Distance(ctx, opts.userID, current, lat, lon)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "office=%s distance=%.1fm radius=%.0fm within=%t\n%s\n",
					out.OfficeID, out.Distance, out.CheckinRadius, out.Within, out.DistanceText)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&current, "current", false, "use the configured position provider")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		day  string
		show bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the day's attendance note into the notes directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.AttendanceCLI.Export(ctx, opts.userID, day)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %s events=%d effective=%dmin\n", out.Path, out.Events, out.EffectiveMinutes)
				if !show {
					return nil
				}
				return renderNote(cmd, out.Path)
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "calendar day YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&show, "show", false, "render the exported note in the terminal")
	return cmd
}

func renderNote(cmd *cobra.Command, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read note: %w", err)
	}
	_, body, err := markdown.SplitFrontmatter(string(raw))
	if err != nil {
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("note renderer: %w", err)
	}
	rendered, err := r.Render(body)
	if err != nil {
		return fmt.Errorf("render note: %w", err)
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

func newPositionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "position",
		Short: "Describe the position provider and take one reading",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				info, err := app.PositionCLI.Provider(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "provider=%s version=%s\n", info.Name, info.Version)
				r, err := app.PositionCLI.Current(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "position=%.6f,%.6f accuracy=%.0fm at=%s\n",
					r.Latitude, r.Longitude, r.AccuracyM, r.SampledAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}

	for _, direction := range []string{db.DirectionUp, db.DirectionDown} {
		migrateCmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: "Apply all " + direction + " migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				if direction == db.DirectionUp {
					// sqlite needs the database directory before migrating.
					if cfg.Store.Driver == config.DriverSQLite {
						conn, err := db.OpenSQLite(cmd.Context(), cfg.Store.DSN)
						if err != nil {
							return err
						}
						_ = conn.Close()
					}
				}
				err = db.Migrate(cfg.Store.Driver, cfg.Store.DSN, direction)
				if errors.Is(err, db.ErrNoChange) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no change")
					return nil
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", direction)
				return nil
			},
		})
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			version, dirty, ok, err := db.Version(cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	})
	return migrateCmd
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("15:04:05")
}
