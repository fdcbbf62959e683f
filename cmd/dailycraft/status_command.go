package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dailycraft/internal/api"
	"dailycraft/internal/diary"
	"dailycraft/internal/events"
)

type statusOutput struct {
	Address    string                 `json:"address"`
	Health     api.HealthResponse     `json:"health"`
	Generation api.GenerationResponse `json:"generation"`
	Events     []events.Event         `json:"events,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOut     bool
		eventsLimit int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and the current generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := api.NewClient(cfg.API.Bind, cfg.API.Token)

			reqCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			health, err := client.Health(reqCtx)
			if err != nil {
				return fmt.Errorf("daemon not reachable at %s: %w (start it with `dailycraft serve`)", cfg.API.Bind, err)
			}
			generation, err := client.Generation(reqCtx)
			if err != nil {
				return fmt.Errorf("query generation status: %w", err)
			}
			var recent []events.Event
			if eventsLimit > 0 {
				resp, err := client.RecentEvents(reqCtx, eventsLimit)
				if err != nil {
					return fmt.Errorf("query recent events: %w", err)
				}
				recent = resp.Items
			}

			if jsonOut {
				return writeJSON(cmd, statusOutput{Address: cfg.API.Bind, Health: health, Generation: generation, Events: recent})
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			p.header("Daemon")
			p.line("Address", statusInfo, cfg.API.Bind)
			p.line("Database", healthKind(health.Database), health.Database)
			p.line("Extraction worker", ocrKind(health.OCR), health.OCR)
			p.line("Generating", statusInfo, yesNo(health.Generating))
			p.line("Last event", statusInfo, lastEventLabel(health.LastEvent))

			if eventsLimit > 0 && len(recent) > 0 {
				p.header("Recent events")
				for _, evt := range recent {
					p.line(fmt.Sprintf("#%d %s", evt.Sequence, evt.Name), eventKind(evt.Name), preview(evt.Payload))
				}
			}

			p.header("Last generation")
			job := generation.Job
			if job.Status == diary.StatusIdle {
				p.line("Status", statusInfo, "no generation since the daemon started")
				return nil
			}
			p.line("Status", jobKind(job.Status), string(job.Status))
			p.line("Diary date", statusInfo, job.SubjectKey)
			p.line("Started", statusInfo, job.StartedAt.Local().Format(time.DateTime))
			if !job.FinishedAt.IsZero() {
				p.line("Elapsed", statusInfo, job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond).String())
			}
			if job.Error != "" {
				p.line("Error", statusError, job.Error)
			}
			if job.Content != "" {
				p.line("Content", statusInfo, preview(job.Content))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&eventsLimit, "events", 5, "Number of recent generation events to show (0 to skip)")
	return cmd
}

func lastEventLabel(seq uint64) string {
	if seq == 0 {
		return "none"
	}
	return "#" + strconv.FormatUint(seq, 10)
}

func eventKind(name events.Name) statusKind {
	switch name {
	case events.Complete:
		return statusOK
	case events.Error:
		return statusError
	default:
		return statusInfo
	}
}

func healthKind(value string) statusKind {
	if value == "ok" {
		return statusOK
	}
	return statusError
}

func ocrKind(state string) statusKind {
	switch state {
	case "ready":
		return statusOK
	case "disabled", "not_started":
		return statusInfo
	default:
		return statusWarn
	}
}

func jobKind(status diary.Status) statusKind {
	switch status {
	case diary.StatusSucceeded:
		return statusOK
	case diary.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}
