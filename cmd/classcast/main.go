package main

import (
	"fmt"
	"os"

	"github.com/Netflix/go-env"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()

	rootCmd := &cobra.Command{
		Use:          "classcast",
		Short:        "Real-time presence and class notification server",
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}

	rootCmd.AddCommand(
		serveCmd,
		newVersionCmd(),
	)

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the websocket and publish API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var settings Settings
			if _, err := env.UnmarshalFromEnviron(&settings); err != nil {
				return fmt.Errorf("failed to parse settings from environment: %w", err)
			}

			logger, err := buildZapLogger(settings.LogEncoding, settings.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync()

			app, err := NewApp(logger, settings)
			if err != nil {
				return err
			}

			return app.Run(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
