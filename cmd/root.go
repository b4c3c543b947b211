package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentic-typer",
	Short: "Agent-driven diagnostic repair with behavior verification",
	Long: `agentic-typer drives an external coding agent to eliminate every
error-severity diagnostic the type checker and linter report for a Go
project, verifying after each agent edit that the file's comment-stripped
compiled form is unchanged - i.e. that no observable behavior changed.

Available commands:
  repair   - Run the repair loop over the current project
  version  - Print the version`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(versionCmd)
}
