package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/triad-choice/internal/export"
	"github.com/nvandessel/triad-choice/internal/store"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export an archived session as CSV",
		Long: `Re-render the CSV of an archived session from the local database.

Without --out the CSV is written to stdout.

Examples:
  triad export 3f6c1d2e-...
  triad export 3f6c1d2e-... --out responses.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outPath, _ := cmd.Flags().GetString("out")
			id := args[0]

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(dataDir, true)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			meta, err := st.GetSession(ctx, id)
			if errors.Is(err, store.ErrSessionNotFound) {
				return fmt.Errorf("no archived session with ID %s", id)
			}
			if err != nil {
				return err
			}
			records, err := st.Responses(ctx, id)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("session %s: %w", id, export.ErrEmptyLog)
			}

			csvText := export.ToCSV(records)
			out := cmd.OutOrStdout()
			if outPath == "" {
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"session": meta,
						"csv":     csvText,
					})
				}
				fmt.Fprint(out, csvText)
				return nil
			}

			if info, statErr := os.Stat(outPath); statErr == nil && info.IsDir() {
				outPath = filepath.Join(outPath, export.FileName(id, meta.Status == store.StatusCompleted))
			}
			if err := export.WriteFile(outPath, []byte(csvText)); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"session": meta,
					"path":    outPath,
					"rows":    len(records),
				})
			}
			fmt.Fprintf(out, "Exported %d responses of session %s to %s\n", len(records), id, outPath)
			return nil
		},
	}

	cmd.Flags().String("out", "", "Output file or directory (default stdout)")

	return cmd
}
