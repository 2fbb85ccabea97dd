package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aspenlund/kbharvest/pkg/config"
	"github.com/aspenlund/kbharvest/pkg/drive"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Share the remote root folder",
	Long:  "Grant an account access to the remote root folder; already-granted recipients are skipped",
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")

		cfg, err := config.Load(cfgPath)
		cobra.CheckErr(err)

		ctx := cmd.Context()
		store := drive.NewClient(cfg.Drive.Token)
		session, err := drive.NewSession(ctx, store, cfg.Drive.RootFolder, cfg.RetryPolicy())
		cobra.CheckErr(err)

		cobra.CheckErr(session.ShareRoot(ctx, email, role))
		fmt.Printf("Shared %q with %s as %s\n", cfg.Drive.RootFolder, email, role)
	},
}

func init() {
	shareCmd.Flags().String("email", "", "Account to share with")
	shareCmd.Flags().String("role", "writer", "Permission role (reader, writer)")
	shareCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(shareCmd)
}
