package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dailycraft/internal/logging"
	"dailycraft/internal/services/ocr"
	"dailycraft/internal/storage"
)

type extractOutput struct {
	ImagePath string `json:"image_path"`
	Text      string `json:"text"`
	RecordID  int64  `json:"record_id,omitempty"`
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOut bool
		record  bool
		appName string
	)

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Extract text from a screenshot with the extraction worker",
		Long: "Start the configured extraction worker, extract the text of one image and\n" +
			"stop the worker again. The [ocr] settings are used even when ocr.enabled\n" +
			"is false, so the worker can be tried before enabling it in the daemon.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger("warn")
			if err != nil {
				return err
			}

			manager := ocr.NewManager(ocr.ConfigFrom(cfg), logger)
			defer func() {
				if err := manager.Close(); err != nil {
					logger.Debug("close extraction worker", logging.Error(err))
				}
			}()

			text, err := manager.Extract(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("extract %s: %w", args[0], err)
			}

			out := extractOutput{ImagePath: args[0], Text: text}
			if record && strings.TrimSpace(text) != "" {
				err := ctx.withStore(func(store *storage.Store) error {
					rec, err := store.SaveOCRRecord(cmd.Context(), storage.OCRRecord{
						ImagePath: args[0],
						Text:      text,
						AppName:   appName,
					})
					if err != nil {
						return err
					}
					out.RecordID = rec.ID
					return nil
				})
				if err != nil {
					return fmt.Errorf("record extracted text: %w", err)
				}
			}

			if jsonOut {
				return writeJSON(cmd, out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&record, "record", false, "Store non-empty text in the day's extraction records")
	cmd.Flags().StringVar(&appName, "app", "", "Application name to store with the record")
	return cmd
}
