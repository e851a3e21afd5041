package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"iep-rehearsal/internal/database"
	"iep-rehearsal/internal/repository"

	"github.com/spf13/cobra"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read recorded session telemetry",
	}

	var (
		dbPath     string
		scenarioID string
		limit      int
		asJSON     bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List the newest simulation logs from the SQLite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.OpenSQLite(cmd.Context(), dbPath, opts.logger)
			if err != nil {
				return err
			}
			defer database.CloseDB(db, opts.logger)

			repo := repository.NewSQLiteSimulationLogRepository(db, opts.logger)
			logs, err := repo.List(cmd.Context(), repository.LogFilter{ScenarioID: scenarioID, Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(logs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tENDED\tMODE\tSCENARIO\tSECONDS\tSCORES")
			for _, l := range logs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", l.ID, l.EndTime.Format("2006-01-02 15:04"), l.Mode, l.ScenarioID, l.ElapsedSeconds, l.OutcomeScores)
			}
			return w.Flush()
		},
	}
	defaultPath := os.Getenv("SQLITE_PATH")
	if defaultPath == "" {
		defaultPath = "data/iep.db"
	}
	list.Flags().StringVar(&dbPath, "db", defaultPath, "SQLite database path")
	list.Flags().StringVar(&scenarioID, "scenario", "", "only logs of this scenario")
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of logs")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(list)
	return cmd
}
