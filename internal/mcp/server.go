package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/engine"
	"github.com/stevehiehn/capflow/internal/plan"
)

// JSONRPCRequest is a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Runner executes plans. *app.App satisfies it.
type Runner interface {
	Run(ctx context.Context, p *plan.ExecutionPlan, inputs, session map[string]string) (*engine.Result, error)
}

// Server answers MCP requests against a capability registry.
type Server struct {
	Registry *capability.Registry
	Runner   Runner
	WorkDir  string
	PlansDir string // YAML plans exposed as tools; optional
	Logger   *slog.Logger
}

// Serve runs the MCP server over newline-delimited JSON on r and w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(w, &JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: -32700, Message: "Parse error"},
			})
			continue
		}
		// Notifications get no reply.
		if req.ID == nil && req.Method == "notifications/initialized" {
			continue
		}

		resp := s.dispatch(ctx, req)
		resp.JSONRPC = "2.0"
		resp.ID = req.ID
		writeResponse(w, resp)
	}
	return scanner.Err()
}

func writeResponse(w io.Writer, resp *JSONRPCResponse) {
	data, _ := json.Marshal(resp)
	fmt.Fprintf(w, "%s\n", data)
}
