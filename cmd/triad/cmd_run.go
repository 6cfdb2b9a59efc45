package main

import (
	"encoding/json"
	"fmt"
	"os/signal"

	"github.com/nvandessel/triad-choice/internal/config"
	"github.com/nvandessel/triad-choice/internal/render"
	"github.com/nvandessel/triad-choice/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an interactive session",
		Long: `Run a 2AFC session in the terminal.

Each trial shows the reference and the two option images; answer with
1 or 2. Ctrl-C (or end of input) aborts the session and writes the
answers given so far to a "-partial" CSV.

Examples:
  triad run
  triad run --seed 42 --out results/
  triad run --config pilot.yaml --stimuli ./images`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			archive, _ := cmd.Flags().GetBool("archive")

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, dataDir)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, decisions := newLoggers(cfg, dataDir, cmd.ErrOrStderr())
			defer decisions.Close()

			st, err := openStore(dataDir, archive)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
			defer stop()

			stimuli := render.Stimuli{Dir: cfg.Stimuli.Dir, Extension: cfg.Stimuli.Extension}
			term := render.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout(), stimuli)
			defer term.Close()

			run := &sessionRun{
				cfg:       cfg,
				seed:      sessionSeed(cfg.Seed),
				store:     st,
				chooser:   term,
				onTrial:   term.ShowTrial,
				logger:    logger,
				decisions: decisions,
			}
			result, err := run.execute(ctx)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}
			term.ShowSummary(result.Summary, result.CSVPath, result.Status != store.StatusCompleted)
			return nil
		},
	}

	cmd.Flags().String("config", "", "Config file (default <data dir>/config.yaml)")
	cmd.Flags().Uint64("seed", 0, "Random seed for the sequence (0 = random)")
	cmd.Flags().String("out", "", "Directory for the exported CSV")
	cmd.Flags().String("stimuli", "", "Directory holding the stimulus images")
	cmd.Flags().Bool("archive", true, "Archive the session in the local database")

	return cmd
}

// applyRunFlags lets explicitly set flags override the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.TriadConfig) error {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		seed, err := flags.GetUint64("seed")
		if err != nil {
			return fmt.Errorf("invalid --seed: %w", err)
		}
		cfg.Seed = seed
	}
	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("stimuli") {
		cfg.Stimuli.Dir, _ = flags.GetString("stimuli")
	}
	return nil
}
