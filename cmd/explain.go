package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/capflow/internal/engine"
	"github.com/stevehiehn/capflow/internal/plan"
)

var explainCmd = &cobra.Command{
	Use:   "explain <plan.yaml>",
	Short: "Show the steps a plan would run, including companions added automatically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.LoadFile(args[0])
		if err != nil {
			return err
		}
		pv := engine.Explain(staticRegistry(), p)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, pv)
		}

		fmt.Fprintf(out, "Objective: %s\n\n", pv.Objective)
		for _, s := range pv.Steps {
			fmt.Fprintf(out, "Step %d: %s", s.Order, s.Title)
			if s.AutoInjected {
				fmt.Fprintf(out, " (added after %s)", s.Trigger)
			}
			fmt.Fprintln(out)
			if s.Description != "" {
				fmt.Fprintf(out, "  %s\n", s.Description)
			}
			if len(s.DependsOn) > 0 {
				fmt.Fprintf(out, "  Depends on: %s\n", strings.Join(s.DependsOn, ", "))
			}
			for _, c := range s.Calls {
				var tags []string
				if !c.Registered {
					tags = append(tags, "not registered")
				}
				if c.Critical {
					tags = append(tags, "critical")
				}
				line := "  - " + c.Name
				if len(tags) > 0 {
					line += " [" + strings.Join(tags, ", ") + "]"
				}
				if len(c.Requires) > 0 {
					line += " requires " + strings.Join(c.Requires, ", ")
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)
		}
		if len(pv.Missing) > 0 {
			fmt.Fprintf(out, "Unregistered capabilities: %s\n", strings.Join(pv.Missing, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
}
