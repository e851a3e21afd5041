package main

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"text/tabwriter"

	"iep-rehearsal/internal/catalog"
	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/fixedchoice"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newScenariosCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List and verify the embedded scenarios",
	}
	cmd.AddCommand(newScenariosListCmd(), newScenariosCheckCmd(opts))
	return cmd
}

func newScenariosListCmd() *cobra.Command {
	var mode, difficulty, category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the scenario catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			page := cat.List(catalog.Filter{
				Mode:       domain.Mode(mode),
				Difficulty: domain.Difficulty(difficulty),
				Category:   category,
				PageSize:   1 << 16,
			})
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tID\tDIFFICULTY\tCATEGORY\tTITLE")
			for _, s := range page.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Mode, s.ID, s.Difficulty, s.Category, s.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "fixed or freeform")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Easy, Moderate or Advanced")
	cmd.Flags().StringVar(&category, "category", "", "category name")
	return cmd
}

func newScenariosCheckCmd(opts *rootOptions) *cobra.Command {
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "check [id...]",
		Short: "Walk every choice path of fixed scenarios and report unsafe cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			ids := args
			if len(ids) == 0 {
				ids = cat.FixedIDs()
			}

			reports, err := exploreAll(cmd, cat, ids, maxDepth, opts.logger)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTERMINAL PATHS\tEXPLICIT CYCLES\tTRUNCATED\tUNREACHABLE")
			failed := 0
			for _, r := range reports {
				status := "ok"
				if !r.OK() {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%v\n", r.ScenarioID, status, r.TerminalPaths, r.ExplicitCycles, r.Truncated, r.Unreachable)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, r := range reports {
				for _, c := range r.ImplicitCycles {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: implicit cycle %s\n", r.ScenarioID, c)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed the check", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 64, "longest choice path to follow")
	return cmd
}

func exploreAll(cmd *cobra.Command, cat *catalog.Catalog, ids []string, maxDepth int, logger *zap.Logger) ([]fixedchoice.Report, error) {
	var (
		mu      sync.Mutex
		reports = make([]fixedchoice.Report, 0, len(ids))
	)
	g, _ := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.NumCPU())
	for _, id := range ids {
		g.Go(func() error {
			def, err := cat.Fixed(id)
			if err != nil {
				return err
			}
			r := fixedchoice.Explore(def, maxDepth)
			logger.Debug("Scenario explored", zap.String("id", id), zap.Int("terminalPaths", r.TerminalPaths))
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ScenarioID < reports[j].ScenarioID })
	return reports, nil
}
