package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	runSource string
	runInput  string
	runLimit  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect prices from a single source",
	Long:  "Looks every product in the input workbook up on one storefront. SIGINT/SIGTERM stops dispatch, lets in-flight requests finish, and leaves a checkpoint behind.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return executeRun(ctx, []string{runSource}, runInput, runLimit)
	},
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "source name (required)")
	runCmd.Flags().StringVar(&runInput, "input", "", "input workbook (overrides input.file)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process only the first N products")
	_ = runCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(runCmd)
}
