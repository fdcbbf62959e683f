package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dailycraft/internal/storage"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "records [date]",
		Short: "List text extracted from screenshots on one day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now().Format(storage.SubjectKeyLayout)
			if len(args) == 1 {
				date = args[0]
			}
			return ctx.withStore(func(store *storage.Store) error {
				records, err := store.ListOCRRecords(cmd.Context(), date)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No extracted text recorded on %s\n", date)
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					app := rec.AppName
					if app == "" {
						app = "-"
					}
					rows = append(rows, []string{
						rec.Timestamp.Local().Format(time.TimeOnly),
						app,
						preview(rec.Text),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), tableSpec{
					headers: []string{"Time", "App", "Text"},
					rows:    rows,
				}.render())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
