package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/journal"
	"github.com/stevehiehn/capflow/internal/plan"
)

var (
	runInputs  []string
	runOwner   string
	runJournal bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, inputs, err := loadPlan(args[0], runInputs)
		if err != nil {
			return err
		}
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := plan.Validate(p, a.Registry.Known, inputs); err != nil {
			return err
		}
		session := map[string]string{}
		if runOwner != "" {
			session[capability.KeyOwnerID] = runOwner
		}
		result, err := a.Run(cmd.Context(), p, inputs, session)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := writeJSON(out, result); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out, result.Summary())
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  Error: %s\n", e.Message)
				if e.Hint != "" {
					fmt.Fprintf(out, "  Hint: %s\n", e.Hint)
				}
			}
			fmt.Fprintf(out, "Execution ID: %s\n", result.ExecutionID)
			if runJournal {
				printJournal(out, result.Journal)
			}
		}
		if !result.Succeeded() {
			return errSilent
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "Input values (key=value)")
	runCmd.Flags().StringVar(&runOwner, "owner", "", "Owner id used when saving content")
	runCmd.Flags().BoolVar(&runJournal, "journal", false, "Print the execution timeline")
	rootCmd.AddCommand(runCmd)
}

func printJournal(w io.Writer, records []journal.Record) {
	fmt.Fprintln(w, "Timeline:")
	for _, r := range records {
		fmt.Fprintf(w, "  %s %-10s %-12s %s\n", r.Timestamp.Format("15:04:05.000"), r.Capability, r.Type, r.Narrative)
	}
}
