package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage curator configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir:  %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "log_dir:   %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "api_bind:  %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "log:       %s/%s\n", cfg.Logging.Format, cfg.Logging.Level)
			fmt.Fprintf(out, "workers:   %d (queue depth %d)\n", cfg.Sync.WorkerPoolSize, cfg.Sync.JobQueueDepth)
			fmt.Fprintf(out, "identity:  threshold %.2f margin %.2f year ±%d\n",
				cfg.Identity.SimilarityThreshold, cfg.Identity.AmbiguityMargin, cfg.Identity.YearTolerance)
			fmt.Fprintf(out, "cache:     %d entries, ttl %ds\n", cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)
			var enabled []string
			for _, source := range cfg.EnabledSources() {
				enabled = append(enabled, string(source))
			}
			fmt.Fprintf(out, "providers: %s\n", strings.Join(enabled, ", "))
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			_, resolved, exists, err := config.Load(path)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintf(cmd.OutOrStdout(), "No configuration file at %s; defaults are valid\n", resolved)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration at %s is valid\n", resolved)
			return nil
		},
	}

	configCmd.AddCommand(initCmd, showCmd, validateCmd)
	return configCmd
}
