package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/capflow/internal/app"
	"github.com/stevehiehn/capflow/internal/mcp"
)

var (
	mcpSSEAddr  string
	mcpPlansDir string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server (stdio by default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		srv := &mcp.Server{PlansDir: mcpPlansDir, Logger: logger}

		var opts []app.Option
		var sse *mcp.SSEServer
		if mcpSSEAddr != "" {
			sse = mcp.NewSSEServer(srv)
			opts = append(opts, app.WithProgress(sse))
		}
		a, err := buildApp(ctx, cfg, logger, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		srv.Registry = a.Registry
		srv.Runner = a
		srv.WorkDir = a.WorkDir

		if sse != nil {
			return sse.ListenAndServe(ctx, mcpSSEAddr)
		}
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpSSEAddr, "sse", "", "Serve MCP over HTTP+SSE on this address (e.g. :8080)")
	mcpCmd.Flags().StringVar(&mcpPlansDir, "plans", "", "Directory of plan YAML files to expose as tools")
	rootCmd.AddCommand(mcpCmd)
}
