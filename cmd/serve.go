package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/guide-quotes/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the quotes API and run queued harvests",
		RunE: withApp(func(cmd *cobra.Command, appInstance *server.App) error {
			return appInstance.Run(cmd.Context())
		}),
	}
}
