package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobpilot/internal/batch"
	"jobpilot/internal/bridge"
	"jobpilot/internal/config"
	"jobpilot/internal/db"
	"jobpilot/internal/domain"
	"jobpilot/internal/leads"
	"jobpilot/internal/logger"
	"jobpilot/internal/migrate"
	"jobpilot/internal/queue"
	"jobpilot/internal/scoring"
	"jobpilot/internal/server"
	"jobpilot/internal/tracker"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "jobpilot",
	Short: "JobPilot batch job application pipeline",
	Long: `JobPilot deduplicates job applications and runs autonomous batches.
Leads go in as a plain text file of posting URLs; every posting is
fingerprinted, checked against the tracker, scored against your
profile, and the survivors are applied to one at a time. The tracker
guarantees no posting is ever applied to twice.`,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("JOBPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringP("config", "c", "jobpilot.yaml", "configuration file")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(singleCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
}

// env bundles everything a command needs once the workspace is open.
type env struct {
	settings config.Settings
	store    *tracker.Store
	log      *zap.Logger
}

func withEnv(fn func(ctx context.Context, e env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(viper.GetString("config"))
		if err != nil {
			return err
		}
		settings.Debug = settings.Debug || viper.GetBool("debug")

		log, err := logger.New(viper.GetBool("json"), settings.Debug)
		if err != nil {
			return err
		}
		defer log.Sync()

		conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := migrate.Migrate(conn); err != nil {
			return err
		}
		return fn(cmd.Context(), env{settings: settings, store: tracker.New(conn), log: log})
	}
}

func runCmd() *cobra.Command {
	var (
		profilePath string
		dryRun      bool
		yes         bool
		maxJobs     int
		minScore    float64
	)
	cmd := &cobra.Command{
		Use:   "run <leads-file>",
		Short: "Build a queue from a leads file and apply to each job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e env) error {
				if cmd.Flags().Changed("min-score") {
					e.settings.MinScore = minScore
				}
				if profilePath == "" {
					profilePath = e.settings.ProfilePath
				}
				profile, err := config.LoadProfile(profilePath)
				if err != nil {
					return err
				}

				items, err := leads.Parse(args[0])
				if err != nil {
					return err
				}
				for _, item := range items {
					if !item.Valid {
						fmt.Fprintf(os.Stderr, "line %d: %s (%s)\n", item.LineNumber, item.Error, item.URL)
					}
				}
				if len(leads.Valid(items)) == 0 {
					fmt.Println("no valid leads, nothing to do")
					return nil
				}

				runID := uuid.NewString()
				outputDir := filepath.Join(e.settings.OutputDir, runID)
				evaluator := scoring.NewEvaluator(e.settings.Scoring, e.log)
				if len(e.settings.Bridge.AdvisorCommand) > 0 {
					evaluator.Advisor = bridge.NewAdvisor(e.settings.Bridge.AdvisorCommand, e.log)
				}
				builder := queue.NewBuilder(
					bridge.NewExtractor(e.settings.Bridge.ExtractCommand, e.log),
					e.store, evaluator, e.log,
				)
				builder.MinScore = e.settings.MinScore
				builder.IncludeSkips = e.settings.IncludeSkips

				q, err := builder.Build(ctx, items, profile)
				if err != nil {
					return err
				}
				stats, _ := builder.Stats()
				printQueueStats(stats)
				if len(q) == 0 {
					return nil
				}

				q, err = capQueue(ctx, e, q, maxJobs)
				if err != nil {
					return err
				}
				if len(q) == 0 {
					fmt.Println("daily submission cap reached, nothing to do")
					return nil
				}

				if !yes && !dryRun {
					if !confirm(fmt.Sprintf("Apply to %d job(s)", len(q))) {
						fmt.Println("aborted")
						return nil
					}
				}

				runner := batch.NewRunner(
					bridge.NewRunner(e.settings.Bridge.RunCommand, outputDir, e.log),
					bridge.NewTailor(e.settings.Bridge.TailorCommand, outputDir, e.log),
					e.store, e.log,
				)
				runner.Progress = func(ev domain.ProgressEvent) {
					fmt.Printf("[%d/%d] %-10s %s\n", ev.Index, ev.Total, ev.State, ev.URL)
				}

				e.log.Info("starting batch run",
					zap.String("run_id", runID),
					zap.Int("jobs", len(q)),
					zap.Bool("dry_run", dryRun),
				)
				result := runner.Run(ctx, q, profile, dryRun)
				printBatchResult(result)
				if result.Failed > 0 {
					return fmt.Errorf("%d job(s) failed", result.Failed)
				}
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "candidate profile (defaults to config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "tailor artifacts only, never submit")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().IntVar(&maxJobs, "max", 0, "cap the number of jobs this run (0 = config max_per_day)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum total score to queue")
	return cmd
}

// capQueue truncates the queue to the remaining daily budget.
func capQueue(ctx context.Context, e env, q []domain.QueuedJob, maxJobs int) ([]domain.QueuedJob, error) {
	budget := maxJobs
	if budget <= 0 {
		budget = e.settings.MaxPerDay
	}
	if budget <= 0 {
		return q, nil
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	submitted, err := e.store.SubmittedSince(ctx, midnight)
	if err != nil {
		return nil, err
	}
	remaining := budget - submitted
	if remaining < 0 {
		remaining = 0
	}
	if len(q) > remaining {
		e.log.Info("truncating queue to daily cap",
			zap.Int("queued", len(q)),
			zap.Int("remaining", remaining),
		)
		q = q[:remaining]
	}
	return q, nil
}

func singleCmd() *cobra.Command {
	var (
		profilePath string
		apply       bool
		force       bool
		reason      string
	)
	cmd := &cobra.Command{
		Use:   "single <url>",
		Short: "Score one posting, optionally applying to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e env) error {
				url := args[0]
				if profilePath == "" {
					profilePath = e.settings.ProfilePath
				}
				profile, err := config.LoadProfile(profilePath)
				if err != nil {
					return err
				}

				record, fp, err := e.store.CheckDuplicate(ctx, url, "", "", "")
				if err != nil {
					return err
				}
				if record != nil && record.Status == domain.StatusSubmitted && !force {
					fmt.Printf("already submitted on %s (fingerprint %s); use --force to override\n",
						orEmpty(record.SubmittedAt), record.Fingerprint)
					return nil
				}

				extractor := bridge.NewExtractor(e.settings.Bridge.ExtractCommand, e.log)
				job, err := extractor.Extract(ctx, url)
				if err != nil {
					return err
				}
				evaluator := scoring.NewEvaluator(e.settings.Scoring, e.log)
				if len(e.settings.Bridge.AdvisorCommand) > 0 {
					evaluator.Advisor = bridge.NewAdvisor(e.settings.Bridge.AdvisorCommand, e.log)
				}
				fit, err := evaluator.Evaluate(ctx, job, profile)
				if err != nil {
					return err
				}
				if err := printJSON(fit); err != nil {
					return err
				}
				if !apply {
					return nil
				}
				if fit.Recommendation == domain.RecommendSkip && !force {
					fmt.Println("recommendation is skip; use --force to apply anyway")
					return nil
				}

				if record != nil && force {
					r := reason
					if r == "" {
						r = "manual override via single --force"
					}
					if err := e.store.RecordOverride(ctx, record.Fingerprint, &r); err != nil {
						return err
					}
				}

				outputDir := filepath.Join(e.settings.OutputDir, uuid.NewString())
				runner := batch.NewRunner(
					bridge.NewRunner(e.settings.Bridge.RunCommand, outputDir, e.log),
					bridge.NewTailor(e.settings.Bridge.TailorCommand, outputDir, e.log),
					e.store, e.log,
				)
				q := []domain.QueuedJob{{
					URL:         url,
					Fingerprint: fp,
					Job:         job,
					Fit:         fit,
					State:       domain.JobPending,
				}}
				result := runner.Run(ctx, q, profile, false)
				printBatchResult(result)
				if result.Failed > 0 {
					return fmt.Errorf("application failed")
				}
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "candidate profile (defaults to config)")
	cmd.Flags().BoolVar(&apply, "apply", false, "apply after scoring")
	cmd.Flags().BoolVar(&force, "force", false, "override duplicate or skip recommendation")
	cmd.Flags().StringVar(&reason, "reason", "", "override reason recorded in the tracker")
	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Check whether a posting was already applied to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e env) error {
				record, fp, err := e.store.CheckDuplicate(ctx, args[0], "", "", "")
				if err != nil {
					return err
				}
				if record == nil {
					fmt.Printf("not seen before (fingerprint %s)\n", fp)
					return nil
				}
				return printJSON(record)
			})(cmd, args)
		},
	}
	return cmd
}

func listCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e env) error {
				if status != "" && !domain.ValidStatus(domain.Status(status)) {
					return fmt.Errorf("invalid status %q", status)
				}
				items, err := e.store.ListRecent(ctx, limit, domain.Status(status))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"FINGERPRINT", "COMPANY", "ROLE", "STATUS", "FIRST SEEN"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.Fingerprint[:12], r.Company, r.RoleTitle, r.Status, r.FirstSeenAt})
				}
				tw.Render()
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show tracker status counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e env) error {
				counts, err := e.store.StatusCounts(ctx)
				if err != nil {
					return err
				}
				midnight := time.Now().UTC().Truncate(24 * time.Hour)
				today, err := e.store.SubmittedSince(ctx, midnight)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"counts": counts, "submitted_today": today})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"STATUS", "COUNT"})
				for _, s := range domain.Statuses {
					if counts[s] > 0 {
						tw.AppendRow(table.Row{s, counts[s]})
					}
				}
				tw.AppendFooter(table.Row{"submitted today", today})
				tw.Render()
				return nil
			})(cmd, args)
		},
	}
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <fingerprint>",
		Short: "Show the event history for one application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e env) error {
				events, err := e.store.History(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "TYPE", "DETAIL"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.TS, ev.Type, ev.Detail})
				}
				tw.Render()
				return nil
			})(cmd, args)
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e env) error {
				if addr == "" {
					addr = e.settings.ServerAddr
				}
				handler, err := server.New(server.Config{Store: e.store, BasePath: basePath, Version: version})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving JobPilot API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("jobpilot", version)
		},
	}
}

func confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

func printQueueStats(stats domain.QueueStats) {
	fmt.Printf("leads: %d total, %d valid, %d duplicate, %d below threshold, %d queued\n",
		stats.Total, stats.Valid, stats.Duplicates, stats.BelowThreshold, stats.Queued)
}

func printBatchResult(result domain.BatchResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"URL", "STATE", "ERROR", "SECONDS"})
	for _, r := range result.Results {
		tw.AppendRow(table.Row{r.URL, r.State, r.Error, fmt.Sprintf("%.1f", r.DurationSeconds)})
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d processed", result.Processed),
		fmt.Sprintf("%d submitted", result.Submitted),
		fmt.Sprintf("%d skipped / %d failed", result.Skipped, result.Failed),
		fmt.Sprintf("%.1f", result.DurationSeconds),
	})
	tw.Render()
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
