package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/guide-quotes/internal/server"
)

func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Run one harvest and exit",
		Long: `Runs a single harvest in the foreground. The command fails when the
table of contents cannot be fetched or a store write fails after all
retries; chapters without a quote are skipped.`,
		RunE: withApp(func(cmd *cobra.Command, appInstance *server.App) error {
			summary, err := appInstance.Harvest(cmd.Context())
			if err != nil {
				appInstance.Logger().Error("harvest failed", zap.Error(err))
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"links=%d stored=%d duplicates=%d skipped=%d retries=%d\n",
				summary.Links, summary.Stored, summary.Duplicates, summary.Skipped, summary.Retries)
			return err
		}),
	}
}
