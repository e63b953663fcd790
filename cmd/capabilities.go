package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List registered capabilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		descs := staticRegistry().List()
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, descs)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCATEGORY\tCRITICAL\tREQUIRES\tFOLLOW-UPS")
		for _, d := range descs {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", d.Name, d.Category, d.Critical,
				dash(strings.Join(d.Requires, ",")), dash(strings.Join(d.FollowUps, ",")))
		}
		return tw.Flush()
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
}
