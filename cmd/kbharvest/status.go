package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aspenlund/kbharvest/pkg/config"
	"github.com/aspenlund/kbharvest/pkg/data"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show harvested issues",
	Long:  "Display the harvest ledger: every processed issue and whether it fully synced",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		cobra.CheckErr(err)

		ledger, err := data.Open(cfg.LedgerPath)
		cobra.CheckErr(err)
		defer ledger.Close()

		records, err := ledger.ListIssues()
		cobra.CheckErr(err)

		if len(records) == 0 {
			fmt.Println("No issues harvested yet. Use 'kbharvest harvest' to start.")
			return
		}

		var (
			purple = lipgloss.Color("99")

			headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
			cellStyle   = lipgloss.NewStyle().Padding(0, 1)
		)

		t := table.New().
			Border(lipgloss.HiddenBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(purple)).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				default:
					return cellStyle
				}
			}).
			Headers("Title", "Date", "Manifest", "Pages", "Synced", "Status")

		for _, rec := range records {
			status := "failed"
			if rec.Success {
				status = "ok"
			}
			t.Row(
				truncateString(rec.Title, 30),
				rec.Date,
				rec.ManifestID,
				fmt.Sprintf("%d", rec.Assets),
				fmt.Sprintf("%d", rec.Synced),
				status,
			)
		}

		fmt.Println(t)

		total, succeeded, err := ledger.Summary()
		cobra.CheckErr(err)
		fmt.Printf("\n%d/%d issues fully synced.\n", succeeded, total)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
