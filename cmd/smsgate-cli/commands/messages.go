package commands

import (
	"time"

	"smsgate-backend/lib/scrapers/numbers"
	"smsgate-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(messagesCmd)
}

var messagesCmd = &cobra.Command{
	Use:   "messages <detail page url>",
	Short: "Fetches a number's detail page and prints the received messages.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := numbers.NewClient(time.Second * 20)
		raw, err := client.Fetch(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch detail page", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Message"})
		for i, msg := range numbers.ExtractMessages(raw) {
			t.AppendRow(table.Row{i + 1, msg.Text})
		}
		t.Render()
	},
}
