package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aspenlund/kbharvest/pkg/archive"
	"github.com/aspenlund/kbharvest/pkg/config"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [manifest-id]",
	Short: "Resolve a manifest into its page images",
	Long:  "Fetch a manifest by ID and list the page-image files it references, without downloading anything",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		cobra.CheckErr(err)

		kb := archive.NewKB(cfg.ArchiveBase, cfg.APIBase)
		assets := kb.Resolve(cmd.Context(), args[0])

		if len(assets) == 0 {
			fmt.Println("No page images found.")
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
			Headers("#", "Filename", "URL")

		for i, asset := range assets {
			t.Row(fmt.Sprintf("%d", i+1), asset.Filename, truncateString(asset.URL, 70))
		}

		fmt.Println(t)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
