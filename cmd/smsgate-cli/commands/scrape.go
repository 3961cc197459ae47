package commands

import (
	"log/slog"
	"time"

	"smsgate-backend/lib/scrapers/numbers"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var scrapeTimeout *int

func init() {
	scrapeTimeout = scrapeCmd.Flags().Int("timeout", 20, "Per-page fetch timeout in seconds.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes every configured number source and prints the aggregated catalog.",
	Run: func(cmd *cobra.Command, args []string) {
		client := numbers.NewClient(time.Duration(*scrapeTimeout) * time.Second)

		t1 := time.Now()
		catalog := client.BuildCatalog(cmd.Context(), numbers.DefaultSources(), 8)
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds())

		t := newTable()
		t.AppendHeader(table.Row{"#", "Source", "Phone", "Detail"})
		for i, cand := range catalog.Candidates {
			t.AppendRow(table.Row{i, cand.Source, cand.Phone, cand.DetailLink})
		}
		t.Render()
	},
}
