package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aspenlund/kbharvest/pkg/archive"
	"github.com/aspenlund/kbharvest/pkg/browser"
	"github.com/aspenlund/kbharvest/pkg/config"
	"github.com/aspenlund/kbharvest/pkg/data"
	"github.com/aspenlund/kbharvest/pkg/drive"
	"github.com/aspenlund/kbharvest/pkg/services"
	"github.com/aspenlund/kbharvest/pkg/transfer"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest newspaper issues in a date range",
	Long:  "Search the archive for issues in a date range, download their page images and sync them into the remote folder hierarchy",
	Run: func(cmd *cobra.Command, args []string) {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		paperID, _ := cmd.Flags().GetString("paper")

		if !archive.ValidDate(from) || !archive.ValidDate(to) {
			cobra.CheckErr(fmt.Errorf("dates must be YYYY-MM-DD, got %q to %q", from, to))
		}

		cfg, err := config.Load(cfgPath)
		cobra.CheckErr(err)

		ctx := cmd.Context()

		ledger, err := data.Open(cfg.LedgerPath)
		cobra.CheckErr(err)
		defer ledger.Close()

		kb := archive.NewKB(cfg.ArchiveBase, cfg.APIBase)
		searchURL, err := kb.SearchURL(from, to, paperID)
		cobra.CheckErr(err)

		store := drive.NewClient(cfg.Drive.Token)
		session, err := drive.NewSession(ctx, store, cfg.Drive.RootFolder, cfg.RetryPolicy())
		cobra.CheckErr(err)

		if cfg.Drive.ShareWith != "" {
			cobra.CheckErr(session.ShareRoot(ctx, cfg.Drive.ShareWith, "writer"))
		}

		nav, err := browser.NewNavigator(*cfg.Headless, 20*time.Second)
		cobra.CheckErr(err)
		defer nav.Close()

		fragments, err := nav.SearchResults(ctx, searchURL)
		cobra.CheckErr(err)
		fmt.Printf("Found %d newspaper issues\n", len(fragments))

		engine := transfer.NewEngine(cfg.ArchiveBase+"/", cfg.RetryPolicy())
		pipeline := services.NewPipeline(kb, engine, session, ledger, cfg.DownloadDir)

		go func() {
			for p := range pipeline.Progress() {
				switch p.Status {
				case "skipped":
					fmt.Printf("  %s: %s already synced (%d/%d)\n", p.Issue, p.Asset, p.Index, p.Total)
				case "synced":
					fmt.Printf("  %s: %s synced (%d/%d)\n", p.Issue, p.Asset, p.Index, p.Total)
				case "failed":
					fmt.Printf("  %s: %s failed: %v\n", p.Issue, p.Asset, p.Err)
				}
			}
		}()

		summary := pipeline.Run(ctx, fragments)
		pipeline.Close()

		fmt.Printf("\nDone. %d/%d issues fully synced.\n", summary.Succeeded, summary.Processed)
	},
}

func init() {
	harvestCmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	harvestCmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	harvestCmd.Flags().String("paper", "", "Paper ID to filter by (defaults to Dagens Nyheter)")
	harvestCmd.MarkFlagRequired("from")
	harvestCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(harvestCmd)
}
