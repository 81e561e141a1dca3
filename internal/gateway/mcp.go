package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer adapts the gateway to the Model Context Protocol: two tools
// (execute_command, get_command_output) and two read-only resources
// (cli://config, cli://security-info) over stdio.
type MCPServer struct {
	gw     *Gateway
	srv    *server.MCPServer
	logger *slog.Logger
}

// NewMCPServer builds the MCP surface for a gateway.
func NewMCPServer(gw *Gateway, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		gw:     gw,
		logger: logger,
	}

	srv := server.NewMCPServer("amri", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)

	enabled := gw.Config().EnabledShells()
	sort.Strings(enabled)

	executeTool := mcp.NewTool("execute_command",
		mcp.WithDescription("Execute a command in one of the enabled shells ("+
			strings.Join(enabled, ", ")+"), subject to the configured security policy."),
		mcp.WithString("shell",
			mcp.Required(),
			mcp.Description("Shell to run the command in. One of: "+strings.Join(enabled, ", ")),
		),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Command to execute. Chaining is supported with '&&' only."),
		),
		mcp.WithString("workingDir",
			mcp.Description("Working directory; must be inside the allowed paths. Defaults to the configured initial directory."),
		),
		mcp.WithNumber("maxLines",
			mcp.Description(fmt.Sprintf("Per-call output line limit (%d-%d). The response keeps the last N lines.", MinMaxLines, MaxMaxLines)),
		),
		mcp.WithNumber("timeout",
			mcp.Description(fmt.Sprintf("Per-call timeout in whole seconds (%d-%d).", MinTimeoutSeconds, MaxTimeoutSeconds)),
		),
	)
	srv.AddTool(executeTool, s.handleExecute)

	retrieveTool := mcp.NewTool("get_command_output",
		mcp.WithDescription("Retrieve stored output of a past execution: full text, a line range, or a regex search."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Retrieval handle returned by execute_command."),
		),
		mcp.WithNumber("startLine",
			mcp.Description("1-based first line; negative counts from the end (-1 = last line)."),
		),
		mcp.WithNumber("endLine",
			mcp.Description("1-based last line; negative counts from the end."),
		),
		mcp.WithString("search",
			mcp.Description("Regular expression to search for; returns one occurrence with context."),
		),
		mcp.WithNumber("occurrence",
			mcp.Description("1-based occurrence index for search mode. Default 1."),
		),
		mcp.WithNumber("context",
			mcp.Description("Context lines before/after a search match. Default 2."),
		),
		mcp.WithNumber("maxLines",
			mcp.Description("Cap on returned lines."),
		),
		mcp.WithNumber("maxBytes",
			mcp.Description("Byte budget for the response; values above the configured cap are capped."),
		),
	)
	srv.AddTool(retrieveTool, s.handleRetrieve)

	configResource := mcp.NewResource("cli://config", "CLI configuration",
		mcp.WithResourceDescription("Effective gateway configuration: enabled shells, security limits, and allow-list."),
		mcp.WithMIMEType("application/json"),
	)
	srv.AddResource(configResource, s.readConfigResource)

	securityResource := mcp.NewResource("cli://security-info", "Security rules",
		mcp.WithResourceDescription("Human-readable description of the validation rules applied to every command."),
		mcp.WithMIMEType("text/markdown"),
	)
	srv.AddResource(securityResource, s.readSecurityResource)

	s.srv = srv
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout until the client
// disconnects or ctx is canceled.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	return server.NewStdioServer(s.srv).Listen(ctx, os.Stdin, os.Stdout)
}

// Underlying exposes the wrapped MCP server (used by tests and by
// embedders that bring their own transport).
func (s *MCPServer) Underlying() *server.MCPServer { return s.srv }

func (s *MCPServer) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	shellName, err := request.RequireString("shell")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	maxLines, err := optionalInt(request, "maxLines")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeout, err := optionalInt(request, "timeout")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.gw.Execute(ctx, ExecuteRequest{
		Shell:          shellName,
		Command:        command,
		WorkingDir:     request.GetString("workingDir", ""),
		MaxLines:       maxLines,
		TimeoutSeconds: timeout,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := res.Output + executeSummary(res)
	if res.ExitCode != 0 {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

// executeSummary is the metadata trailer appended to every execution
// response, so the client always sees the exit code, line counts, and the
// retrieval handle even when the output fit without truncation.
func executeSummary(res *ExecuteResult) string {
	meta := fmt.Sprintf("\n\n[exit code %d, %d of %d lines, id %s",
		res.ExitCode, res.ReturnedLines, res.TotalLines, res.Handle)
	if res.Truncated {
		meta += ", truncated"
	}
	return meta + "]"
}

func (s *MCPServer) handleRetrieve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := RetrieveRequest{
		Handle:  handle,
		Pattern: request.GetString("search", ""),
	}
	for key, dst := range map[string]*int{
		"startLine":  &req.StartLine,
		"endLine":    &req.EndLine,
		"occurrence": &req.Occurrence,
		"context":    &req.ContextLines,
		"maxLines":   &req.MaxLines,
		"maxBytes":   &req.MaxBytes,
	} {
		v, err := optionalInt(request, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		*dst = v
	}

	res, err := s.gw.RetrieveOutput(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	meta := fmt.Sprintf("\n\n[%d of %d total lines", res.ReturnedLines, res.TotalLines)
	if res.TruncatedByLines {
		meta += ", line-capped"
	}
	if res.TruncatedByBytes {
		meta += ", byte-capped"
	}
	meta += "]"
	return mcp.NewToolResultText(res.Text + meta), nil
}

// configView is the JSON shape of the cli://config resource: a read-only
// descriptive snapshot, never the raw config file.
type configView struct {
	EnabledShells []string            `json:"enabled_shells"`
	Security      map[string]any      `json:"security"`
	Restrictions  map[string][]string `json:"restrictions"`
	AllowedPaths  []string            `json:"allowed_paths"`
}

func (s *MCPServer) readConfigResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cfg := s.gw.Config()
	enabled := cfg.EnabledShells()
	sort.Strings(enabled)

	view := configView{
		EnabledShells: enabled,
		Security: map[string]any{
			"max_command_length":          cfg.Security.MaxCommandLength,
			"command_timeout_seconds":     cfg.Security.CommandTimeoutSeconds,
			"enable_injection_protection": cfg.Security.InjectionProtection(),
			"restrict_working_directory":  cfg.Security.RestrictWorkingDir(),
		},
		Restrictions: map[string][]string{
			"blocked_commands":  cfg.Restrictions.BlockedCommands,
			"blocked_arguments": cfg.Restrictions.BlockedArguments,
			"blocked_operators": cfg.Restrictions.BlockedOperators,
		},
		AllowedPaths: cfg.Paths.AllowedPaths,
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling config view: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *MCPServer) readSecurityResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cfg := s.gw.Config()
	var sb strings.Builder
	sb.WriteString("# Security rules\n\n")
	sb.WriteString("Every command is validated before any process starts. The first violation rejects the whole command.\n\n")
	fmt.Fprintf(&sb, "- Maximum length per chain step: %d characters\n", cfg.Security.MaxCommandLength)
	fmt.Fprintf(&sb, "- Default timeout: %d seconds\n", cfg.Security.CommandTimeoutSeconds)
	fmt.Fprintf(&sb, "- Injection protection: %v (only `&&` chaining permitted)\n", cfg.Security.InjectionProtection())
	fmt.Fprintf(&sb, "- Working directory restriction: %v\n", cfg.Security.RestrictWorkingDir())
	fmt.Fprintf(&sb, "- Blocked commands: %s\n", strings.Join(cfg.Restrictions.BlockedCommands, ", "))
	fmt.Fprintf(&sb, "- Blocked arguments: %s\n", strings.Join(cfg.Restrictions.BlockedArguments, ", "))
	fmt.Fprintf(&sb, "- Blocked operators: %s\n", strings.Join(cfg.Restrictions.BlockedOperators, ", "))
	fmt.Fprintf(&sb, "- Allowed paths: %s\n", strings.Join(cfg.Paths.AllowedPaths, ", "))
	sb.WriteString("\n`cd` steps inside a chain are tracked: each target is resolved against where the chain would be and checked against the allowed paths.\n")

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/markdown",
			Text:     sb.String(),
		},
	}, nil
}

// optionalInt reads an optional numeric argument that must be a whole
// number. JSON numbers arrive as float64; a fractional value is a
// parameter error, not a truncation.
func optionalInt(request mcp.CallToolRequest, key string) (int, error) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("parameter %s must be an integer, got %v", key, v)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number, got %T", key, raw)
	}
}
