// Command nudge runs single engine operations, meant for cron and operators.
//
// Usage:
//
//	nudge migrate
//	nudge participant add --id P001 --destination D0123 --access-token ... --refresh-token ...
//	nudge participant list
//	nudge schedule --date 2026-04-08
//	nudge cycle
//	nudge summarize --date 2026-04-07
//	nudge export --from 2026-04-01 --to 2026-04-08 --format csv --out interventions.csv
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"activity-nudge-lab/internal/app"
	"activity-nudge-lab/internal/config"
	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/logging"
	"activity-nudge-lab/internal/reporting"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "nudge",
		Short:         "Activity nudge engine CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(participantCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(cycleCmd())
	root.AddCommand(summarizeCmd())
	root.AddCommand(exportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is what every command runs against.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	stores *app.Stores
}

// withStores loads config, logger and stores, and releases them after fn.
func withStores(fn func(ctx context.Context, e *env) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	return fn(ctx, &env{cfg: cfg, logger: logger, stores: stores})
}

// withApp is withStores plus the assembled engine.
func withApp(fn func(ctx context.Context, e *env, a *app.App) error) error {
	return withStores(func(ctx context.Context, e *env) error {
		a, err := app.New(e.cfg, e.stores, e.logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, e, a)
	})
}

// dateOrToday parses s, defaulting to today plus offset days in the study timezone.
func dateOrToday(s string, loc *time.Location, offset int) (domain.Date, error) {
	if s == "" {
		return domain.DateOf(time.Now().In(loc)).AddDays(offset), nil
	}
	return domain.ParseDate(s)
}

// --------------------------------------------------------------------------
// migrate
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, e *env) error {
				if !e.stores.Persistent() {
					return fmt.Errorf("migrate requires STORAGE_BACKEND=postgres")
				}
				if err := e.stores.Migrate(ctx); err != nil {
					return err
				}
				e.logger.Info("migrations applied")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// participant
// --------------------------------------------------------------------------

func participantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participant",
		Short: "Manage study participants",
	}
	cmd.AddCommand(participantAddCmd())
	cmd.AddCommand(participantListCmd())
	return cmd
}

func participantAddCmd() *cobra.Command {
	var p domain.Participant
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a participant and its upstream credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, e *env) error {
				p.Active = true
				p.CreatedAt = time.Now().UTC()
				if err := e.stores.Participants.Insert(ctx, &p); err != nil {
					return fmt.Errorf("add participant %s: %w", p.ExperimentID, err)
				}
				e.logger.Info("participant added", zap.String("participant", p.ExperimentID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&p.ExperimentID, "id", "", "Experiment identifier")
	cmd.Flags().StringVar(&p.DisplayName, "name", "", "Display name")
	cmd.Flags().StringVar(&p.NotificationDestination, "destination", "", "Chat destination (Slack DM channel)")
	cmd.Flags().StringVar(&p.Credential.AccessToken, "access-token", "", "OAuth access token")
	cmd.Flags().StringVar(&p.Credential.RefreshToken, "refresh-token", "", "OAuth refresh token")
	cmd.Flags().StringVar(&p.Credential.ClientID, "client-id", "", "OAuth client id")
	cmd.Flags().StringVar(&p.Credential.ClientSecret, "client-secret", "", "OAuth client secret")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("refresh-token")
	return cmd
}

func participantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, e *env) error {
				ps, err := e.stores.Participants.ListActive(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, p := range ps {
					fmt.Fprintf(out, "%s\t%s\t%s\n", p.ExperimentID, p.DisplayName, p.NotificationDestination)
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// schedule
// --------------------------------------------------------------------------

func scheduleCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate (or show) the intervention schedule of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, e *env, a *app.App) error {
				d, err := dateOrToday(date, e.cfg.Location, 0)
				if err != nil {
					return err
				}
				sched, err := a.Schedules.Generate(ctx, d)
				if err != nil {
					return err
				}
				hours := make([]string, len(sched.Hours))
				for i, h := range sched.Hours {
					hours[i] = fmt.Sprintf("%02d:00", h)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sched.Date, strings.Join(hours, " "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD), default today in the study timezone")
	return cmd
}

// --------------------------------------------------------------------------
// cycle
// --------------------------------------------------------------------------

func cycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one ingestion and decision pass for all active participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, e *env, a *app.App) error {
				res, err := a.Orchestrator.RunCycle(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "date=%s hour=%02d participants=%d inserted=%d executed=%d skipped=%v errors=%d\n",
					res.Date, res.Hour, res.Participants, res.Inserted, res.Executed, res.Skipped, len(res.Errors))
				for _, msg := range res.Errors {
					e.logger.Warn("cycle error", zap.String("error", msg))
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// summarize
// --------------------------------------------------------------------------

func summarizeCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Store daily metric means, default yesterday",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, e *env, a *app.App) error {
				d, err := dateOrToday(date, e.cfg.Location, -1)
				if err != nil {
					return err
				}
				res, err := a.Summarizer.SummarizeDay(ctx, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "date=%s stored=%d existing=%d empty=%d errors=%d\n",
					res.Date, res.Stored, res.Existing, res.Empty, len(res.Errors))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD), default yesterday in the study timezone")
	return cmd
}

// --------------------------------------------------------------------------
// export
// --------------------------------------------------------------------------

func exportCmd() *cobra.Command {
	var from, to, format, out, archiveKey string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export intervention logs of a date range as CSV or a Markdown report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, e *env, a *app.App) error {
				fromDate, err := domain.ParseDate(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				toDate, err := dateOrToday(to, e.cfg.Location, 1)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}

				var buf bytes.Buffer
				contentType, err := renderExport(ctx, a.Reports, format, fromDate, toDate, &buf)
				if err != nil {
					return err
				}

				if archiveKey != "" {
					archiver, err := a.Archiver(ctx)
					if err != nil {
						return err
					}
					loc, err := archiver.Archive(ctx, archiveKey, buf.Bytes(), contentType)
					if err != nil {
						return err
					}
					e.logger.Info("export archived", zap.String("location", loc))
					return nil
				}

				if out == "" || out == "-" {
					_, err = io.Copy(cmd.OutOrStdout(), &buf)
					return err
				}
				return os.WriteFile(out, buf.Bytes(), 0o644)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD), exclusive, default tomorrow")
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or md")
	cmd.Flags().StringVar(&out, "out", "", "Output file, default stdout")
	cmd.Flags().StringVar(&archiveKey, "archive", "", "Archive under this key (S3 when S3_BUCKET is set, else REPORT_DIR)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// renderExport writes the range in format and returns its content type.
func renderExport(ctx context.Context, g *reporting.Generator, format string, from, to domain.Date, w io.Writer) (string, error) {
	switch format {
	case "csv":
		entries, err := g.Entries(ctx, from, to)
		if err != nil {
			return "", err
		}
		return "text/csv", reporting.WriteInterventionCSV(w, entries)
	case "md", "markdown":
		r, err := g.Generate(ctx, from, to)
		if err != nil {
			return "", err
		}
		_, err = io.WriteString(w, reporting.RenderMarkdown(r))
		return "text/markdown", err
	default:
		return "", fmt.Errorf("unknown format %q: want csv or md", format)
	}
}
