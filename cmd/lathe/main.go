package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/lathe/am"
	"github.com/teranos/lathe/cmd/lathe/commands"
	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lathe",
	Short: "lathe - parametric feature history with undo and debounced recompute",
	Long: `lathe - parametric feature history with undo and debounced recompute.

lathe keeps the ordered history of a parametric model: primitives,
sketches, datum geometry, components and mates. Features can be
suppressed, reordered and rolled back; every edit is undoable and
triggers a debounced recompute through a configurable pipeline.

Available commands:
  shell    - Start an interactive modelling session
  am       - Manage lathe configuration ("I am")
  version  - Show version information

Examples:
  lathe shell              # Start a session
  lathe -v shell           # Start a session with info logging
  lathe am show            # Show current configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")

		// A broken config is reported by the command itself.
		jsonLogs := false
		if cfg, err := am.Load(); err == nil {
			jsonLogs = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debugw("Logger initialized", "verbosity", logger.LevelName(verbosity), "json", jsonLogs)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.ShellCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
