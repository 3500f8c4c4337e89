package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/revdep-regress/internal/buildrunner"
	"github.com/hochfrequenz/revdep-regress/internal/config"
	"github.com/hochfrequenz/revdep-regress/internal/cratecache"
	"github.com/hochfrequenz/revdep-regress/internal/manifest"
	"github.com/hochfrequenz/revdep-regress/internal/notify"
	"github.com/hochfrequenz/revdep-regress/internal/orchestrator"
	"github.com/hochfrequenz/revdep-regress/internal/registry"
	"github.com/hochfrequenz/revdep-regress/internal/resolver"
	"github.com/hochfrequenz/revdep-regress/internal/resultstore"
	"github.com/hochfrequenz/revdep-regress/internal/status"
)

// Command flags
var (
	manifestPath  string
	jobs          int
	noHistory     bool
	failOnRegress bool
	historyCrate  string
	historyLimit  int
)

// ErrRegressions is returned with --fail-on-regress when anything regressed
var ErrRegressions = errors.New("regressions found")

func init() {
	rootCmd.Flags().StringVar(&manifestPath, "manifest", "", "library manifest (default $"+config.ManifestEnv+" or ./Cargo.toml)")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "parallel builds (default: one per CPU)")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run")
	rootCmd.Flags().BoolVar(&failOnRegress, "fail-on-regress", false, "exit non-zero when any reverse dependency regressed")

	// history command
	historyCmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List recorded runs, or the results of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	historyCmd.Flags().StringVar(&historyCrate, "crate", "", "filter by library")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs")
	rootCmd.AddCommand(historyCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithLocalFallback(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)

	if manifestPath != "" {
		cfg.General.ManifestPath = config.ExpandPath(manifestPath)
	}
	if cmd.Flags().Changed("jobs") {
		cfg.General.MaxParallelBuilds = jobs
	}
	if debug {
		cfg.General.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runRegress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	crateName, err := manifest.CrateName(cfg.General.ManifestPath)
	if err != nil {
		return err
	}

	client := registry.New(registry.Config{
		BaseURL:   cfg.Registry.BaseURL,
		UserAgent: cfg.Registry.UserAgent,
		Debug:     cfg.General.Debug,
	})
	cache := cratecache.New(cratecache.Config{
		Root:  cfg.General.CacheDir,
		Debug: cfg.General.Debug,
	}, client)
	runner := buildrunner.New(buildrunner.Config{
		ScratchDir: cfg.General.ScratchDir,
		Command:    cfg.Build.Command,
		Env:        cfg.Build.Env,
		Debug:      cfg.General.Debug,
	}, cache)
	if cfg.General.Debug {
		runner.SetOutputCallback(func(stream, data string) {
			log.Printf("[build] %s: %s", stream, data)
		})
	}

	sink := status.NewSink(os.Stdout)
	report, err := orchestrator.Execute(cmd.Context(), cfg.NewRunConfig(crateName), orchestrator.Deps{
		Lister:   client,
		Resolver: resolver.New(client, cfg.General.Debug),
		Builder:  runner,
		Sink:     sink,
	})
	if err != nil {
		return err
	}

	sink.Dump(report.Results)
	sink.Summary(report.Summary)

	if !noHistory && cfg.General.DatabasePath != "" {
		if err := saveHistory(cfg.General.DatabasePath, report); err != nil {
			log.Printf("[history] failed to record run %s: %v", report.ID, err)
		} else if cfg.General.Debug {
			log.Printf("[history] recorded run %s", report.ID)
		}
	}

	notifier := notify.New(cfg.Notifications.Desktop, cfg.Notifications.SlackWebhook)
	n := notify.RunFinished(crateName, report.ID, report.Summary, report.Duration())
	if err := notifier.Send(n); err != nil {
		log.Printf("[notify] %v", err)
	}

	if failOnRegress && !report.Summary.Clean() {
		return fmt.Errorf("%s: %w", crateName, ErrRegressions)
	}
	return nil
}

func saveHistory(dbPath string, report *orchestrator.Report) error {
	store, err := resultstore.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(report)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.General.DatabasePath == "" {
		return fmt.Errorf("history is disabled (general.database_path is empty)")
	}

	store, err := resultstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		return printRunResults(store, args[0])
	}

	runs, err := store.ListRuns(resultstore.ListOptions{
		CrateName: historyCrate,
		Limit:     historyLimit,
	})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCRATE\tSTARTED\tDURATION\tTOTAL\tPASS\tREGRESSED\tBROKEN\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.CrateName, humanize.Time(r.StartedAt),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Summary.Total, r.Summary.Pass, r.Summary.Regressed, r.Summary.Broken, r.Summary.Errored)
	}
	return w.Flush()
}

func printRunResults(store *resultstore.Store, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	results, err := store.GetRunResults(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s of %s, started %s (%s)\n",
		run.ID, run.CrateName, run.StartedAt.Format(time.RFC3339), humanize.Time(run.StartedAt))
	fmt.Println(run.Summary)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCRATE\tVERSION\tVERDICT\tBASE\tNEXT")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Position, r.Name, r.Version, r.Verdict,
			formatDuration(r.BaseDuration), formatDuration(r.NextDuration))
	}
	return w.Flush()
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(100 * time.Millisecond).String()
}
