package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/engine"
	"github.com/stevehiehn/capflow/internal/plan"
)

type toolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

var fileSchema = map[string]any{
	"type": "object", "properties": map[string]any{"file": map[string]any{"type": "string"}}, "required": []string{"file"}}

var builtinTools = []toolDef{
	{Name: "plan.validate", Description: "Validate a plan YAML file against the registered capabilities", InputSchema: fileSchema},
	{Name: "plan.explain", Description: "Preview a plan's steps and the companion steps that would be added", InputSchema: fileSchema},
	{Name: "plan.run", Description: "Execute a plan", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"file":     map[string]any{"type": "string"},
			"inputs":   map[string]any{"type": "object"},
			"owner_id": map[string]any{"type": "string", "description": "Owner of saved content"},
		}, "required": []string{"file"}}},
	{Name: "plan.schema", Description: "Return the plan YAML schema", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{}}},
	{Name: "capabilities.list", Description: "List registered capabilities", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{}}},
}

// loadPlanTools reads all YAML files from plansDir and generates MCP tool definitions.
func loadPlanTools(plansDir string) []toolDef {
	if plansDir == "" {
		return nil
	}
	entries, err := os.ReadDir(plansDir)
	if err != nil {
		return nil
	}
	var tools []toolDef
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		p, err := plan.LoadFile(filepath.Join(plansDir, e.Name()))
		if err != nil {
			continue
		}
		tools = append(tools, planToToolDef(toolName(e.Name()), p))
	}
	return tools
}

// planToToolDef converts a plan into an MCP tool definition.
func planToToolDef(name string, p *plan.ExecutionPlan) toolDef {
	properties := map[string]any{
		"owner_id": map[string]any{"type": "string", "description": "Owner of saved content"},
	}
	var required []string

	for in, inp := range p.Inputs {
		prop := map[string]any{"type": "string"}
		if inp.Description != "" {
			prop["description"] = inp.Description
		}
		if inp.Default != "" {
			prop["default"] = inp.Default
		}
		properties[in] = prop
		if inp.Required {
			required = append(required, in)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return toolDef{
		Name:        name,
		Description: p.Objective,
		InputSchema: schema,
	}
}

func (s *Server) dispatch(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{Result: map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "capflow", "version": "0.1.0"},
		}}
	case "tools/list":
		allTools := append([]toolDef{}, builtinTools...)
		allTools = append(allTools, loadPlanTools(s.PlansDir)...)
		return &JSONRPCResponse{Result: map[string]any{"tools": allTools}}
	case "tools/call":
		return s.handleToolCall(ctx, req.Params)
	case "notifications/initialized":
		return &JSONRPCResponse{Result: map[string]any{}}
	case "ping":
		return &JSONRPCResponse{Result: map[string]any{}}
	default:
		return &JSONRPCResponse{Error: &RPCError{Code: -32601, Message: "Method not found"}}
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolCall(ctx context.Context, params json.RawMessage) *JSONRPCResponse {
	var tc toolCallParams
	if err := json.Unmarshal(params, &tc); err != nil {
		return &JSONRPCResponse{Error: &RPCError{Code: -32602, Message: "Invalid params"}}
	}

	var args struct {
		File    string            `json:"file"`
		Inputs  map[string]string `json:"inputs"`
		OwnerID string            `json:"owner_id"`
	}
	json.Unmarshal(tc.Arguments, &args)
	if args.Inputs == nil {
		args.Inputs = map[string]string{}
	}

	switch tc.Name {
	case "plan.validate":
		return s.toolValidate(args.File)
	case "plan.explain":
		return s.toolExplain(args.File)
	case "plan.run":
		return s.toolRun(ctx, resolvePath(args.File, s.WorkDir), args.Inputs, args.OwnerID)
	case "plan.schema":
		return &JSONRPCResponse{Result: toolContent(schemaText)}
	case "capabilities.list":
		return jsonContent(s.Registry.List())
	default:
		return s.toolRunShippedPlan(ctx, tc.Name, tc.Arguments)
	}
}

func (s *Server) toolValidate(file string) *JSONRPCResponse {
	p, err := plan.LoadFile(resolvePath(file, s.WorkDir))
	if err != nil {
		return &JSONRPCResponse{Result: toolContent(err.Error())}
	}
	if err := plan.Validate(p, s.Registry.Known, nil); err != nil {
		return &JSONRPCResponse{Result: toolContent("Validation failed: " + err.Error())}
	}
	return &JSONRPCResponse{Result: toolContent("Plan is valid.")}
}

func (s *Server) toolExplain(file string) *JSONRPCResponse {
	p, err := plan.LoadFile(resolvePath(file, s.WorkDir))
	if err != nil {
		return &JSONRPCResponse{Result: toolContent(err.Error())}
	}
	return jsonContent(engine.Explain(s.Registry, p))
}

func (s *Server) toolRun(ctx context.Context, path string, inputs map[string]string, owner string) *JSONRPCResponse {
	p, err := plan.LoadFile(path)
	if err != nil {
		return &JSONRPCResponse{Result: toolContent(err.Error())}
	}
	inputs = p.ApplyDefaults(inputs)
	if err := plan.Validate(p, s.Registry.Known, inputs); err != nil {
		return &JSONRPCResponse{Result: toolContent(err.Error())}
	}
	if s.Runner == nil {
		return &JSONRPCResponse{Result: toolContent("plan execution is not available")}
	}
	session := map[string]string{}
	if owner != "" {
		session[capability.KeyOwnerID] = owner
	}
	result, err := s.Runner.Run(ctx, p, inputs, session)
	if err != nil {
		return &JSONRPCResponse{Result: toolContent(err.Error())}
	}
	return jsonContent(map[string]any{"summary": result.Summary(), "result": result})
}

// toolRunShippedPlan finds a plan by tool name in PlansDir and executes it.
func (s *Server) toolRunShippedPlan(ctx context.Context, name string, rawArgs json.RawMessage) *JSONRPCResponse {
	planFile := findPlanFile(name, s.PlansDir)
	if planFile == "" {
		return &JSONRPCResponse{Error: &RPCError{Code: -32602, Message: "Unknown tool: " + name}}
	}

	var inputs map[string]string
	if rawArgs != nil {
		json.Unmarshal(rawArgs, &inputs)
	}
	if inputs == nil {
		inputs = map[string]string{}
	}
	owner := inputs["owner_id"]
	delete(inputs, "owner_id")
	return s.toolRun(ctx, planFile, inputs, owner)
}

// findPlanFile returns the YAML file in plansDir whose tool name is name.
func findPlanFile(name, plansDir string) string {
	if plansDir == "" {
		return ""
	}
	entries, err := os.ReadDir(plansDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		if toolName(e.Name()) == name {
			return filepath.Join(plansDir, e.Name())
		}
	}
	return ""
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func toolName(file string) string {
	return strings.TrimSuffix(strings.TrimSuffix(file, ".yaml"), ".yml")
}

func toolContent(text string) map[string]any {
	return map[string]any{"content": []map[string]any{{"type": "text", "text": text}}}
}

func jsonContent(v any) *JSONRPCResponse {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &JSONRPCResponse{Result: toolContent(string(data))}
}

func resolvePath(file, workDir string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(workDir, file)
}

const schemaText = `Plan YAML Schema:
  id: string (optional, generated when missing)
  objective: string (required)
  inputs:
    <name>:
      required: bool
      description: string
      default: string
  steps:
    - title: string (required)
      description: string
      depends_on: [capability names produced by earlier steps]
      capabilities:
        - name: string (registered capability, required)
          id: string (optional, unique)
          display_name: string
          category: string
          parameters: map (values may use {{inputs.x}} and {{session.y}})
  Steps run in order. Capabilities within a step run in declared order.
  Companion steps (e.g. build and save after generate) are added automatically.`
