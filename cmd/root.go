// Package cmd defines the CLI commands for the guide-quotes executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/guide-quotes/internal/config"
	"github.com/JakeFAU/guide-quotes/internal/server"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp loads configuration and builds the application.
var newApp = func(ctx context.Context, path string) (*server.App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return server.Build(ctx, &cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guide-quotes",
		Short: "Harvests chapter epigraphs from A Practical Guide to Evil.",
		Long: `guide-quotes walks the serial's table of contents, extracts the
leading quote of every chapter and keeps them in a local store. It can
serve the collected quotes over HTTP or run a single harvest from the
command line.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); QUOTES_* env vars override it")

	cmd.AddCommand(newServeCmd(), newHarvestCmd(), newListCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*server.App, error) {
	appInstance, ok := ctx.Value(appKey).(*server.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp adapts run into a RunE that receives the App built by the root
// command and closes it when run returns, whether or not it failed.
func withApp(run func(cmd *cobra.Command, appInstance *server.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close(context.WithoutCancel(cmd.Context()))
		return run(cmd, appInstance)
	}
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
