package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	multiInput string
	multiLimit int
)

var multiCmd = &cobra.Command{
	Use:   "multi",
	Short: "Collect prices from all enabled sources",
	Long:  "Looks every product up on every enabled source in one pass. One row per product with a column group per source; the run cadence follows the most conservative source settings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := cfg.EnabledSources()
		if len(names) == 0 {
			return eris.New("no enabled sources in config")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return executeRun(ctx, names, multiInput, multiLimit)
	},
}

func init() {
	multiCmd.Flags().StringVar(&multiInput, "input", "", "input workbook (overrides input.file)")
	multiCmd.Flags().IntVar(&multiLimit, "limit", 0, "process only the first N products")
	rootCmd.AddCommand(multiCmd)
}
