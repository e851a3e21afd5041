// Command iepctl inspects the scenario catalog, walks fixed scenarios in a
// terminal and reads recorded telemetry.
package main

import (
	"fmt"
	"os"

	applogger "iep-rehearsal/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	verbose bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "iepctl",
		Short:         "Tools for the IEP meeting rehearsal scenarios",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.verbose {
				return nil
			}
			log, err := applogger.New(applogger.Config{Level: "debug", Encoding: "console", OutputPath: "stderr"})
			if err != nil {
				return err
			}
			opts.logger = log
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newScenariosCmd(opts),
		newRehearseCmd(opts),
		newLogsCmd(opts),
		newGlossaryCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
