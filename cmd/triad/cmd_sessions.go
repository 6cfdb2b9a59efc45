package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List archived sessions",
		Long: `List the sessions archived in the local database, most recent first.

Examples:
  triad sessions
  triad sessions --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(dataDir, true)
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.ListSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"sessions": list,
					"count":    len(list),
				})
			}

			if len(list) == 0 {
				fmt.Fprintln(out, "No archived sessions.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-6s  %-9s  %7s  %s\n", "SESSION", "TASK", "STATUS", "ANSWERS", "STARTED")
			for _, s := range list {
				fmt.Fprintf(out, "%-36s  %-6s  %-9s  %3d/%-3d  %s\n",
					s.ID, s.Task, s.Status, s.Answered, s.TotalTrials, s.StartedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
