package main

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:     "ipet",
	Short:   "Evaluate solver benchmark testruns",
	Long:    "ipet applies a declarative evaluation file to solver benchmark testrun tables and produces an instance-wise table and a per-group aggregated table.",
	Version: version + " (" + commit + ")",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose diagnostics")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
