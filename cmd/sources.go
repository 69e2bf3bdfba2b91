package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/price-scout/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List known sources and their configuration state",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SOURCE\tCONFIGURED\tENABLED\tBASE_URL")

		for _, name := range source.Builtin().Names() {
			sc, ok := cfg.Sources[name]
			configured, enabled, baseURL := "no", "no", ""
			if ok {
				configured = "yes"
				if sc.Enabled {
					enabled = "yes"
				}
				baseURL = sc.BaseURL
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, configured, enabled, baseURL)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
