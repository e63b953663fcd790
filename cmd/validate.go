package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/capflow/internal/plan"
)

var validateInputs []string

var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Validate a plan file against the registered capabilities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.LoadFile(args[0])
		if err != nil {
			return err
		}
		var inputs map[string]string
		if len(validateInputs) > 0 {
			inputs = p.ApplyDefaults(parseInputs(validateInputs))
		}
		out := cmd.OutOrStdout()
		if err := plan.Validate(p, staticRegistry().Known, inputs); err != nil {
			if jsonOutput {
				writeJSON(out, map[string]any{"valid": false, "error": err.Error()})
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Validation failed: %s\n", err)
			}
			return errSilent
		}
		if jsonOutput {
			return writeJSON(out, map[string]any{"valid": true})
		}
		fmt.Fprintln(out, "Plan is valid.")
		return nil
	},
}

func init() {
	validateCmd.Flags().StringArrayVar(&validateInputs, "input", nil, "Input values (key=value); when given, required inputs are checked too")
	rootCmd.AddCommand(validateCmd)
}
