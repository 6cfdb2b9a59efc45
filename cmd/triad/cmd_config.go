package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/triad-choice/internal/config"
	"github.com/nvandessel/triad-choice/internal/constants"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage triad configuration",
		Long: `View and create triad configuration.

Configuration is stored in <data dir>/config.yaml (default ~/.triad/config.yaml).
Environment variables (TRIAD_TASK, TRIAD_TOTAL_TRIALS, TRIAD_SEED, ...)
override the file.

Examples:
  triad config show                 # Effective settings as YAML
  triad config path                 # Location of the config file
  triad config init --task index    # Write the index-task defaults`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigPathCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, dataDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().String("config", "", "Config file (default <data dir>/config.yaml)")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			path := filepath.Join(dataDir, constants.ConfigFileName)
			_, statErr := os.Stat(path)

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"path":   path,
					"exists": statErr == nil,
				})
			}
			fmt.Fprintln(out, path)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			taskName, _ := cmd.Flags().GetString("task")
			force, _ := cmd.Flags().GetBool("force")

			task := constants.Task(taskName)
			if !task.Valid() {
				return fmt.Errorf("unknown task %q (want %s or %s)", taskName, constants.TaskAngle, constants.TaskIndex)
			}

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			path := filepath.Join(dataDir, constants.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.ForTask(task).Save(path); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]string{
					"status": "written",
					"path":   path,
					"task":   task.String(),
				})
			}
			fmt.Fprintf(out, "Wrote %s defaults to %s\n", task, path)
			return nil
		},
	}

	cmd.Flags().String("task", string(constants.TaskAngle), "Task variant: angle or index")
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")

	return cmd
}
