package main

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"dailycraft/internal/storage"
)

func newDiaryCommand(ctx *commandContext) *cobra.Command {
	diaryCmd := &cobra.Command{
		Use:   "diary",
		Short: "Browse archived diaries",
	}
	diaryCmd.AddCommand(newDiaryListCommand(ctx))
	diaryCmd.AddCommand(newDiaryShowCommand(ctx))
	return diaryCmd
}

func newDiaryListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived diaries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *storage.Store) error {
				entries, err := store.ListDiaries(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					if entries == nil {
						entries = []storage.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No diaries archived yet")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.SubjectKey,
						strconv.Itoa(utf8.RuneCountInString(e.Content)),
						e.UpdatedAt.Local().Format(time.DateTime),
						preview(e.Content),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), tableSpec{
					headers:      []string{"Date", "Chars", "Updated", "Preview"},
					rows:         rows,
					rightAligned: []int{1},
				}.render())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newDiaryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <date>",
		Short: "Print one archived diary (date as YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *storage.Store) error {
				entry, err := store.GetDiary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, entry)
				}
				fmt.Fprint(cmd.OutOrStdout(), storage.RenderMarkdown(entry.SubjectKey, entry.Content))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
