package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dailycraft/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigGetCommand(ctx))
	configCmd.AddCommand(newConfigSetCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key (or export DAILYCRAFT_API_KEY) before generating diaries.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	expanded, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return expanded, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
			fmt.Fprintf(out, "Diary dir: %s\n", cfg.Paths.DiaryDir)
			fmt.Fprintf(out, "LLM: %s (%s), api key set: %s\n", cfg.LLM.BaseURL, cfg.LLM.Model, yesNo(cfg.LLM.APIKey != ""))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or every setting with credentials masked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				value, err := cfg.Lookup(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, value)
				return nil
			}

			keys := config.Keys()
			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				value, err := cfg.Lookup(key)
				if err != nil {
					return err
				}
				if config.IsSecret(key) {
					value = maskSecret(value)
				}
				rows = append(rows, []string{key, value})
			}
			fmt.Fprintln(out, tableSpec{headers: []string{"Key", "Value"}, rows: rows}.render())
			return nil
		},
	}
}

func newConfigSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the configuration file",
		Long: "Write one setting (for example llm.api_key, llm.base_url or llm.model)\n" +
			"into the configuration file, creating the file when needed. The edited\n" +
			"file is validated before it replaces the original. A running daemon picks\n" +
			"up llm settings on its next generation job.",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = strings.TrimSpace(*ctx.configFlag)
			}
			target, _, err := config.ResolvePath(flagPath)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			key, value := args[0], args[1]
			if err := config.SetValue(target, key, value); err != nil {
				return err
			}
			shown := value
			if config.IsSecret(key) {
				shown = maskSecret(value)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, shown, target)
			return nil
		},
	}
}

func maskSecret(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}
