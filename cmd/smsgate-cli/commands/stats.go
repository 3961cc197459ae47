package commands

import (
	"smsgate-backend/lib/serviceutil"
	"smsgate-backend/lib/sqliteutil"
	"smsgate-backend/services/ledger"
	"smsgate-backend/services/ledger/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

var statsDb *string

func init() {
	statsDb = statsCmd.Flags().String("db", "smsgate.db", "The ledger database to read.")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats [--db <path/to/ledger.db>]",
	Short: "Prints participant counts, outstanding points and the top referrers.",
	Run: func(cmd *cobra.Command, args []string) {
		database, err := sqliteutil.OpenDB(db.Schema, *statsDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		service := ledger.NewService(database)
		stats, err := service.Stats(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read stats", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Participants", "Outstanding points"})
		t.AppendRow(table.Row{stats.Participants, stats.TotalPoints})
		t.Render()

		top := newTable()
		top.AppendHeader(table.Row{"Participant", "Balance"})
		for _, p := range stats.Top {
			top.AppendRow(table.Row{p.ID, p.Balance})
		}
		top.Render()
	},
}
