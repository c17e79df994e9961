// Package mcpserver exposes the scanner over the Model Context Protocol:
// a stdio server with a single read-only tool wrapping the same pipeline
// the scan subcommand drives.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/crv/py-callscan/internal/discover"
	"github.com/crv/py-callscan/internal/report"
	"github.com/crv/py-callscan/internal/resolve"
	"github.com/crv/py-callscan/internal/scanner"
)

// Version is the server's reported implementation version.
const Version = "0.1.0"

// Server wraps the MCP server with the pyscan tool handler.
type Server struct {
	mcp      *mcp.Server
	handlers map[string]mcp.ToolHandler
}

// NewServer builds an MCP server with scan_python_repo registered.
func NewServer() *Server {
	s := &Server{handlers: make(map[string]mcp.ToolHandler)}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "py-callscan", Version: Version},
		&mcp.ServerOptions{},
	)

	s.addTool(&mcp.Tool{
		Name:        "scan_python_repo",
		Description: "Statically scan a Python repository and return its call graph: every declared function/method, every resolved call edge (with provenance), and the calls that could not be resolved. No code is executed.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"root": {
					"type": "string",
					"description": "Absolute path to the repository root to scan."
				},
				"workers": {
					"type": "integer",
					"description": "Parallel parsing degree. Defaults to 1."
				},
				"max_file_size": {
					"type": "integer",
					"description": "Skip files larger than this many bytes. Defaults to 1000000."
				},
				"ignore_builtin_unresolved": {
					"type": "boolean",
					"description": "Drop unresolved calls whose name is a runtime built-in."
				}
			},
			"required": ["root"]
		}`),
	}, s.handleScanPythonRepo)

	return s
}

// MCPServer returns the underlying MCP server for transport wiring.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) addTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mcp.AddTool(tool, handler)
	s.handlers[tool.Name] = handler
}

// CallTool invokes a registered tool handler directly, bypassing transport —
// used by the `pyscan mcp --call` debug path.
func (s *Server) CallTool(ctx context.Context, name string, argsJSON json.RawMessage) (*mcp.CallToolResult, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if len(argsJSON) == 0 {
		argsJSON = json.RawMessage(`{}`)
	}
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: argsJSON},
	}
	return handler(ctx, req)
}

func (s *Server) handleScanPythonRepo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	root := getStringArg(args, "root")
	if root == "" {
		return errResult("root is required"), nil
	}
	workers := getIntArg(args, "workers", 1)
	maxFileSize := int64(getIntArg(args, "max_file_size", 1_000_000))
	ignoreBuiltins := getBoolArg(args, "ignore_builtin_unresolved")

	files, err := discover.Discover(ctx, root, nil)
	if err != nil {
		return errResult(fmt.Sprintf("discover: %v", err)), nil
	}
	scanner.SortFiles(files)

	run := scanner.ScanAll(root, files, scanner.Options{Workers: workers, MaxFileSize: maxFileSize})

	var funcs []scanner.FunctionRecord
	var edges []scanner.Edge
	var unresolved []scanner.UnresolvedCall
	var candidates []scanner.ImportCandidate
	for _, r := range run.Results {
		funcs = append(funcs, r.Functions...)
		edges = append(edges, r.Edges...)
		unresolved = append(unresolved, r.Unresolved...)
		candidates = append(candidates, r.ImportCandidates...)
	}

	edges, unresolved, counters, importedHist, unresolvedHist := resolve.Resolve(funcs, edges, unresolved, candidates, ignoreBuiltins)

	rep := report.Build(report.BuildInput{
		Root:           root,
		Workers:        workers,
		Results:        run.Results,
		Functions:      funcs,
		Edges:          edges,
		Unresolved:     unresolved,
		ParsedFiles:    run.ParsedFiles,
		ReusedFiles:    run.ReusedFiles,
		SkippedSize:    run.SkippedSize,
		SkippedParse:   run.SkippedParse,
		Counters:       counters,
		ImportedHist:   importedHist,
		UnresolvedHist: unresolvedHist,
	})

	return jsonResult(rep), nil
}

func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func getIntArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	f, ok := v.(float64)
	if !ok {
		return defaultVal
	}
	return int(f)
}

func getBoolArg(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		return false
	}
	return b
}
