package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"iep-rehearsal/internal/catalog"
	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/fixedchoice"
	"iep-rehearsal/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRehearseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rehearse <scenario-id>",
		Short: "Walk through a fixed scenario in the terminal",
		Long:  "Pick options by number. Type u to undo the last choice and q to quit.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			def, err := cat.Fixed(args[0])
			if err != nil {
				return err
			}
			opts.logger.Debug("Starting rehearsal", zap.String("scenarioID", def.ID))
			return rehearse(def, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func rehearse(def *domain.ScenarioDefinition, in io.Reader, out io.Writer) error {
	sess := fixedchoice.NewSession(def)
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "%s\n%s\n\n", def.Title, def.Background)
	for !sess.Terminal() {
		view, _ := sess.Current()
		fmt.Fprintf(out, "School: %s\n", view.School)
		for i, o := range view.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, o.User)
		}
		fmt.Fprint(out, "> ")

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nStopped before the meeting ended.")
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "q":
			fmt.Fprintln(out, "Stopped before the meeting ended.")
			return nil
		case "u":
			if err := sess.Undo(); err != nil {
				fmt.Fprintln(out, "Nothing to undo.")
			}
			continue
		}

		n, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintln(out, "Enter an option number.")
			continue
		}
		tr, err := sess.Select(n - 1)
		if errors.Is(err, domain.ErrInvalidOption) {
			fmt.Fprintln(out, "No such option.")
			continue
		}
		if err != nil {
			return err
		}
		printTransition(out, tr)
	}

	stances := fixedchoice.Stances(def, sess.State().History)
	stats := service.StanceStatistics(stances)
	fmt.Fprintf(out, "\nMeeting over. Interests %d%%, rights %d%%, power %d%%.\n", stats.InterestsPct, stats.RightsPct, stats.PowerPct)
	fmt.Fprintln(out, service.Feedback(stats))
	fmt.Fprintln(out, "\nNext steps:")
	for _, s := range service.NextSteps(domain.ModeFixed, def.ID) {
		fmt.Fprintf(out, "  - %s\n", s)
	}
	return nil
}

func printTransition(out io.Writer, tr fixedchoice.Transition) {
	if tr.Selected.SchoolResponse != "" {
		fmt.Fprintf(out, "School: %s\n", tr.Selected.SchoolResponse)
	}
	if tr.Selected.Feedback != "" {
		fmt.Fprintf(out, "Feedback: %s\n", tr.Selected.Feedback)
	}
	if tr.Selected.Caution != "" {
		fmt.Fprintf(out, "Consider: %s\n", tr.Selected.Caution)
	}
	if tr.Terminal && tr.Selected.Outcome != "" {
		fmt.Fprintf(out, "Outcome: %s\n", tr.Selected.Outcome)
	}
	fmt.Fprintln(out)
}
