package main

import (
	"github.com/spf13/cobra"

	"dailycraft/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dailycraft daemon in the foreground",
		Long: "Serve the HTTP API for diary generation, extraction and the diary archive.\n" +
			"The config file is re-read before every generation job so credential\n" +
			"changes apply without a restart.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath: ctx.settingsPath(),
				LogLevel:   logLevel,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	return cmd
}
