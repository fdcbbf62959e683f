package main

import (
	"errors"

	"github.com/spf13/cobra"

	"dailycraft/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, the LLM endpoint and the extraction worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			p.header("Environment")
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				p.line(r.Name, kind, r.Detail)
			}
			if !cfg.OCR.Enabled {
				p.line("Extraction worker", statusInfo, "disabled")
			}

			p.header("Daemon")
			if r := preflight.CheckDaemon(cmd.Context(), cfg); r.Passed {
				p.line(r.Name, statusOK, r.Detail)
			} else {
				p.line(r.Name, statusWarn, r.Detail)
			}

			if preflight.Failed(results) {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
}
