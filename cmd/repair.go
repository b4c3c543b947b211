package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clemens-mw/agentic-typer/pkg/config"
	"github.com/clemens-mw/agentic-typer/pkg/console"
	"github.com/clemens-mw/agentic-typer/pkg/diagnostics"
	"github.com/clemens-mw/agentic-typer/pkg/logging"
	"github.com/clemens-mw/agentic-typer/pkg/oracle"
	"github.com/clemens-mw/agentic-typer/pkg/repair"
	"github.com/clemens-mw/agentic-typer/pkg/verify"
)

var (
	repairDirFlag          string
	repairFullCoverageFlag bool
	repairDryRunFlag       bool
	repairQuietFlag        bool
	repairWorkersFlag      int
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Drive the agent until the project has zero diagnostics",
	Long: `Runs the repair loop: discovers project files, schedules them in
dependency order, and invokes the coding agent per file until the type
checker (and, with --full-coverage, the linter) reports nothing. Every agent
edit is checked against a pre-run snapshot of the file's comment-stripped
compiled form; behavioral changes are diffed and sent back to the agent for
reversal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := repairDirFlag
		if dir == "" {
			var err error
			dir, err = os.Getwd()
			if err != nil {
				return err
			}
		}

		cfg, err := config.LoadOrInit(dir)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.FullCoverage = repairFullCoverageFlag
		cfg.DryRun = repairDryRunFlag
		cfg.Quiet = repairQuietFlag
		if repairWorkersFlag > 0 {
			cfg.BaselineWorkers = repairWorkersFlag
		}

		log := logging.New(dir)
		defer log.Close()
		printer := console.New(cfg.Quiet)

		agg := diagnostics.NewAggregator(
			diagnostics.NewTypeCheckSource(dir),
			diagnostics.NewLintSource(dir, cfg.LintCommand),
		)
		orc := oracle.NewCLI(cfg.OracleCommand, log)
		runner := repair.NewRunner(dir, cfg, orc, agg, verify.GoLowerer{}, log, printer)

		start := time.Now()
		runErr := runner.Run(cmd.Context())
		printer.Plain("finished in %s", time.Since(start).Round(time.Second))

		if runErr != nil {
			log.LogError(runErr)
			if oracle.IsQuotaExhausted(runErr) {
				printer.Fail("aborted: oracle quota exhausted - %v", runErr)
			} else {
				printer.Fail("aborted: %v", runErr)
			}
			return runErr
		}
		return nil
	},
}

func init() {
	repairCmd.Flags().StringVarP(&repairDirFlag, "dir", "d", "", "Project directory (default: current directory)")
	repairCmd.Flags().BoolVar(&repairFullCoverageFlag, "full-coverage", false, "After the baseline is clean, also eliminate lint findings")
	repairCmd.Flags().BoolVar(&repairDryRunFlag, "dry-run", false, "Report schedule order and diagnostics without invoking the agent")
	repairCmd.Flags().BoolVarP(&repairQuietFlag, "quiet", "q", false, "Only print warnings and failures")
	repairCmd.Flags().IntVarP(&repairWorkersFlag, "workers", "w", 0, "Override baseline-phase worker count")
}
