// Command entitycheck parses declarative experiment documents and verifies
// their checks against NRDB, reporting aggregated pass/fail results.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cgast/entitycheck/internal/config"
	"github.com/cgast/entitycheck/internal/history"
	"github.com/cgast/entitycheck/internal/notify"
	"github.com/cgast/entitycheck/pkg/experiment"
	"github.com/cgast/entitycheck/pkg/guid"
	"github.com/cgast/entitycheck/pkg/nrdb"
	"github.com/cgast/entitycheck/pkg/verify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	verbose bool
	envFile string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "entitycheck",
		Short:         "Experiment definition and verification framework for telemetry entity synthesis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file to seed the environment from")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newGUIDCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))
	return cmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newLoader builds the experiment loader for the selected document dialect.
func newLoader(legacy bool) *experiment.Loader {
	if legacy {
		return experiment.NewLoader(experiment.WithDecoder(experiment.SubsetDecoder{}))
	}
	return experiment.NewLoader()
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		legacy       bool
		concurrency  int
		checkTimeout time.Duration
		noSave       bool
	)

	cmd := &cobra.Command{
		Use:   "run <experiment-file>",
		Short: "Run an experiment's verification checks against NRDB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.verbose)

			cfg, err := config.LoadFrom(flags.envFile)
			if err != nil {
				return err
			}

			def, err := newLoader(legacy).Load(args[0])
			if err != nil {
				return err
			}

			client, err := nrdb.NewClient(cfg.APIKey, cfg.AccountID,
				nrdb.WithRegion(cfg.Region),
				nrdb.WithTimeout(checkTimeout))
			if err != nil {
				return err
			}

			executor := verify.NewExecutor(client,
				verify.WithLogger(logger),
				verify.WithConcurrency(concurrency),
				verify.WithCheckTimeout(checkTimeout))
			report, err := executor.Execute(cmd.Context(), def)
			if err != nil {
				return err
			}

			for _, line := range report.SummaryLines() {
				fmt.Println(line)
			}

			reportPath := ""
			if !noSave {
				reportPath, err = verify.Save(report, cfg.ResultsDir, def.Metadata.ID)
				if err != nil {
					fmt.Fprintf(os.Stderr, "warning: saving report: %v\n", err)
				} else {
					fmt.Printf("report written to %s\n", reportPath)
				}
				recordRun(cfg, report, reportPath)
			}

			if !report.OK() && cfg.NotifierEnabled() {
				notifyFailure(cmd.Context(), cfg, report)
			}

			if !report.OK() {
				return fmt.Errorf("%d of %d checks failed", report.Summary.Failed, report.Summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy-format", false, "read the experiment file in the restricted legacy dialect")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum checks in flight at once")
	cmd.Flags().DurationVar(&checkTimeout, "check-timeout", 30*time.Second, "per-check backend timeout")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "skip writing the report file and history record")
	return cmd
}

func recordRun(cfg config.Config, report verify.Report, reportPath string) {
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: opening history: %v\n", err)
		return
	}
	defer store.Close()
	if err := store.Record(report, reportPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording run: %v\n", err)
	}
}

func notifyFailure(ctx context.Context, cfg config.Config, report verify.Report) {
	notifier, err := notify.NewGitHubNotifier(cfg.GitHubToken, cfg.GitHubRepo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: notifier init: %v\n", err)
		return
	}
	url, err := notifier.NotifyFailure(ctx, report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: filing failure issue: %v\n", err)
		return
	}
	fmt.Printf("failure issue filed: %s\n", url)
}

func newValidateCmd(flags *rootFlags) *cobra.Command {
	var legacy bool

	cmd := &cobra.Command{
		Use:   "validate <experiment-file>",
		Short: "Parse and validate an experiment document without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := newLoader(legacy).Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s is valid: %d checks, %d modifications (phase %d-%s)\n",
				args[0], len(def.Verification.Checks), len(def.Modifications),
				def.Metadata.Phase.Number, def.Metadata.Phase.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy-format", false, "read the experiment file in the restricted legacy dialect")
	return cmd
}

func newGUIDCmd(flags *rootFlags) *cobra.Command {
	var strong bool

	cmd := &cobra.Command{
		Use:   "guid <entity-type> <entity-name>",
		Short: "Synthesize the deterministic entity identifier for a type/name pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(flags.envFile)
			if err != nil {
				return err
			}
			if strong {
				fmt.Println(guid.SynthesizeStrong(args[0], args[1], cfg.AccountID))
			} else {
				fmt.Println(guid.Synthesize(args[0], args[1], cfg.AccountID))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strong, "strong", false, "use the collision-resistant 128-bit variant")
	return cmd
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded verification runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(flags.envFile)
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %-30s %d/%d passed  %s\n",
					r.Timestamp.Format("2006-01-02 15:04:05"),
					r.Experiment, r.Passed, r.Total, r.ExperimentID)
			}
			return nil
		},
	}
}
