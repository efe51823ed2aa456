package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greatstep93/client-app/internal/config"
	"github.com/greatstep93/client-app/internal/dispatch"
	"github.com/greatstep93/client-app/internal/history"
	"github.com/greatstep93/client-app/internal/httpclient"
	"github.com/greatstep93/client-app/internal/logger"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "client-app",
	Short: "Fire concurrent GET requests at one target and time them",
	Long: `client-app launches a fixed number of concurrent GET requests against one
target URL, waits for them and prints how long the run took.

Each request runs in its own unit of work: a dedicated OS thread by default,
or a pooled lightweight task with --virtual. The process always exits with
the configured exit code (255 by default) once the run is done.

Settings come from built-in defaults, then the config file (--config, or
./client-app.yaml when present), then flags given on the command line.

Examples:
  client-app                                   # 1 request to the default target
  client-app -n 1000 --virtual                 # 1000 requests on lightweight tasks
  client-app -n 50 --url http://localhost:8080 # custom target
  client-app --measure dispatch -n 200         # time the launch loop only
  client-app runs --limit 5                    # show recent runs from the journal`,
	Version:      version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		return runLoad(settings)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		return listRuns(cmd.OutOrStdout(), settings.History.Path, flagLimit)
	},
}

var initCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default settings to a config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFile
		if len(args) > 0 {
			path = args[0]
		}
		return writeDefaults(cmd.OutOrStdout(), path)
	},
}

// Flags for root command
var (
	flagConfig      string
	flagCount       int
	flagVirtual     bool
	flagURL         string
	flagMeasure     string
	flagExitCode    int
	flagLogLevel    string
	flagLogFormat   string
	flagHistory     bool
	flagHistoryPath string
)

// Flags for runs
var (
	flagLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Settings file (yaml/json)")
	rootCmd.PersistentFlags().StringVar(&flagHistoryPath, "history-path", "", "Run journal database (default ~/.client-app/history.db)")

	rootCmd.Flags().IntVarP(&flagCount, "count", "n", 1, "Number of GET requests to launch")
	rootCmd.Flags().BoolVar(&flagVirtual, "virtual", false, "Run requests on pooled lightweight tasks instead of OS threads")
	rootCmd.Flags().StringVarP(&flagURL, "url", "u", config.DefaultTarget, "Target URL")
	rootCmd.Flags().StringVar(&flagMeasure, "measure", string(dispatch.MeasureCompletion), "What the elapsed time covers (completion/dispatch)")
	rootCmd.Flags().IntVar(&flagExitCode, "exit-code", dispatch.DefaultExitCode, "Exit code once the run is done")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (trace/debug/info/warn/error)")
	rootCmd.Flags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text/json)")
	rootCmd.Flags().BoolVar(&flagHistory, "history", false, "Record the run in the journal")

	runsCmd.Flags().IntVarP(&flagLimit, "limit", "l", 20, "Number of runs to show")

	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(initCmd)
}

// loadSettings layers defaults, the config file and explicitly set flags
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path := flagConfig
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		}
	}

	settings := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		settings = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("count") {
		settings.Count = flagCount
	}
	if flags.Changed("virtual") {
		settings.Virtual = flagVirtual
	}
	if flags.Changed("url") {
		settings.Target = flagURL
	}
	if flags.Changed("measure") {
		settings.Measure = flagMeasure
	}
	if flags.Changed("exit-code") {
		settings.ExitCode = flagExitCode
	}
	if flags.Changed("log-level") {
		settings.Log.Level = flagLogLevel
	}
	if flags.Changed("log-format") {
		settings.Log.Format = flagLogFormat
	}
	if flags.Changed("history") {
		settings.History.Enabled = flagHistory
	}
	if flags.Changed("history-path") {
		settings.History.Path = flagHistoryPath
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := config.Initialize(settings); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	return settings, nil
}

// runLoad performs one run and exits the process
func runLoad(settings *config.Settings) error {
	level, err := logger.ParseLevel(settings.Log.Level)
	if err != nil {
		return err
	}
	log := logger.New(level, settings.Log.Format, os.Stdout)

	client, err := httpclient.New(settings.ClientConfig(), log)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	launcher, err := dispatch.LauncherFor(settings.Virtual, settings.Count)
	if err != nil {
		client.Close()
		return err
	}

	var journal *history.Journal
	if settings.History.Enabled {
		journal, err = history.Open(settings.History.Path)
		if err != nil {
			launcher.Close()
			client.Close()
			return fmt.Errorf("failed to open run journal: %w", err)
		}
	}

	// os.Exit skips deferred calls, so resources are released in the exit hook
	exit := func(code int) {
		launcher.Close()
		client.Close()
		if journal != nil {
			journal.Close()
		}
		os.Exit(code)
	}

	options := []dispatch.Option{dispatch.WithExit(exit)}
	if journal != nil {
		options = append(options, dispatch.WithJournal(journal))
	}

	d, err := dispatch.New(settings.Options(), client, launcher, log, options...)
	if err != nil {
		launcher.Close()
		client.Close()
		if journal != nil {
			journal.Close()
		}
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = d.Start(ctx)
	return err
}

// writeDefaults creates a settings file holding the built-in defaults
func writeDefaults(w io.Writer, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote default settings to %s\n", path)
	return nil
}

// listRuns prints the most recent journal entries
func listRuns(w io.Writer, dbPath string, limit int) error {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(w, "No runs recorded yet (enable with --history)")
		return nil
	}

	journal, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open run journal: %w", err)
	}
	defer journal.Close()

	runs, err := journal.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet")
		return nil
	}

	fmt.Fprintf(w, "%-5s %-20s %-11s %-10s %7s %9s %7s %10s  %s\n",
		"ID", "STARTED", "MODE", "MEASURE", "COUNT", "SUCCEEDED", "FAILED", "ELAPSED", "TARGET")
	for _, run := range runs {
		elapsed := "-"
		if run.IsCompleted() {
			elapsed = (time.Duration(run.ElapsedMs) * time.Millisecond).String()
		}
		fmt.Fprintf(w, "%-5d %-20s %-11s %-10s %7d %9d %7d %10s  %s\n",
			run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Mode, run.Measure,
			run.Count, run.Succeeded, run.Failed, elapsed, run.Target)
	}
	return nil
}
