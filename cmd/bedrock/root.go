package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := newConfig()

	cmd := &cobra.Command{
		Use:   "bedrock",
		Short: "Inspect and edit persisted virtual computers",
		Long: `bedrock works on the stored state of a virtual computer: its files,
directories and label. Computers live in a data directory, either as a plain
directory per computer or together in a single SQLite database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.file, "config", "", "config file (default is $HOME/.config/bedrock/config.yaml)")
	flags.String("data-dir", "", "directory holding computer data")
	flags.String("backend", "", "storage backend: dir, sqlite, memory or void")
	flags.Int("computer", 0, "id of the computer to work on")
	flags.String("log-level", "", "log level: trace, debug, info, warn or error")
	flags.CountP("verbose", "v", "log more; repeat for debug and trace output (overrides --log-level)")

	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newLsCommand(cfg))
	cmd.AddCommand(newTreeCommand(cfg))
	cmd.AddCommand(newCatCommand(cfg))
	cmd.AddCommand(newWriteCommand(cfg))
	cmd.AddCommand(newMkdirCommand(cfg))
	cmd.AddCommand(newRmCommand(cfg))
	cmd.AddCommand(newLabelCommand(cfg))
	cmd.AddCommand(newSeedCommand(cfg))
	cmd.AddCommand(newSnapshotCommand(cfg))

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  `Print the version number of bedrock`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bedrock version %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
