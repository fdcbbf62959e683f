package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dailycraft/internal/diary"
	"dailycraft/internal/events"
	"dailycraft/internal/storage"
)

type generateOutput struct {
	SubjectKey string `json:"subject_key"`
	Content    string `json:"content"`
	Saved      bool   `json:"saved"`
	FilePath   string `json:"file_path,omitempty"`
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var activitiesPath string
	var prompt string
	var stream bool
	var save bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a diary from an activity record",
		Long: "Generate a diary locally without the daemon. Activities are read from a\n" +
			"JSON file, or from stdin when --activities is \"-\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stream && jsonOut {
				return errors.New("--stream and --json cannot be combined")
			}
			activities, err := readActivities(cmd.InOrStdin(), activitiesPath)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger("warn")
			if err != nil {
				return err
			}

			input := diary.Input{ActivitiesJSON: activities, Prompt: prompt}
			run := func(store *storage.Store) error {
				opts := []diary.Option{}
				if store != nil {
					opts = append(opts, diary.WithArchive(store))
				}
				out := cmd.OutOrStdout()
				if stream {
					opts = append(opts, diary.WithPublisher(chunkPrinter{out: out}))
					coordinator := diary.NewCoordinator(diary.StaticSettings(cfg), logger, opts...)
					return streamDiary(cmd.Context(), coordinator, input, out)
				}

				coordinator := diary.NewCoordinator(diary.StaticSettings(cfg), logger, opts...)
				content, err := coordinator.Generate(cmd.Context(), input)
				if err != nil {
					return fmt.Errorf("generate diary: %w", err)
				}
				result := generateOutput{
					SubjectKey: time.Now().Format(storage.SubjectKeyLayout),
					Content:    content,
				}
				if store != nil {
					entry, err := store.SaveDiary(cmd.Context(), result.SubjectKey, content)
					if err != nil {
						return fmt.Errorf("save diary: %w", err)
					}
					result.Saved = true
					result.FilePath = entry.FilePath
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				fmt.Fprintln(out, content)
				if result.Saved {
					fmt.Fprintf(cmd.ErrOrStderr(), "Saved diary %s to %s\n", result.SubjectKey, result.FilePath)
				}
				return nil
			}

			if !save {
				return run(nil)
			}
			return ctx.withStore(run)
		},
	}

	cmd.Flags().StringVarP(&activitiesPath, "activities", "a", "", "Activity record JSON file, or - for stdin")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Instruction prompt (defaults to the built-in diary prompt)")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print the diary as it is generated")
	cmd.Flags().BoolVar(&save, "save", false, "Archive the diary under today's date")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("activities")
	return cmd
}

func readActivities(stdin io.Reader, path string) (string, error) {
	path = strings.TrimSpace(path)
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read activities: %w", err)
	}
	activities := strings.TrimSpace(string(data))
	if activities == "" {
		return "", errors.New("activities input is empty")
	}
	return activities, nil
}

// streamDiary runs one background job and waits for it, printing deltas as
// they arrive.
func streamDiary(ctx context.Context, coordinator *diary.Coordinator, input diary.Input, out io.Writer) error {
	if err := coordinator.Start(input); err != nil {
		return err
	}
	if err := coordinator.Wait(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = coordinator.Shutdown(shutdownCtx)
		return err
	}
	fmt.Fprintln(out)

	job := coordinator.Status()
	if job.Status == diary.StatusFailed {
		return fmt.Errorf("generate diary: %s", job.Error)
	}
	return nil
}

type chunkPrinter struct {
	out io.Writer
}

func (p chunkPrinter) Publish(evt events.Event) events.Event {
	if evt.Name == events.Chunk {
		fmt.Fprint(p.out, evt.Payload)
	}
	return evt
}
