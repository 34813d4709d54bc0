// Package mcp exposes self-lock status and control to MCP-capable agents
// over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
)

// Caller runs one command and decodes its result into out.
// *server.Client satisfies it for a remote daemon.
type Caller interface {
	Call(ctx context.Context, cmd service.Command, out any) error
}

// ServiceCaller runs commands against an in-process Service.
type ServiceCaller struct {
	Service *service.Service
}

// Call implements Caller.
func (c ServiceCaller) Call(ctx context.Context, cmd service.Command, out any) error {
	res, err := c.Service.Dispatch(ctx, cmd)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Config holds MCP server configuration.
type Config struct {
	Caller  Caller
	Version string
	Logger  *slog.Logger
}

// Server wraps the MCP SDK server with the contentlock tools.
type Server struct {
	mcpServer *mcpsdk.Server
	caller    Caller
	logger    *slog.Logger
}

// New creates an MCP server with all tools registered.
func New(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{caller: cfg.Caller, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "contentlock",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all contentlock tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "contentlock_check",
		Description: "Check whether a page would be blocked, given its content signals or raw HTML. Read-only apart from the audit trail.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "contentlock_status",
		Description: "Report the self-lock phase, remaining time, unlock eligibility and settings PIN status.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "contentlock_activate",
		Description: "Start a self-lock for a duration such as 2h or 90m. Overwrites any running self-lock.",
	}, s.handleActivate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "contentlock_request_unlock",
		Description: "Request early unlock of the running self-lock. Returns a phrase that can be confirmed after the cooldown.",
	}, s.handleRequestUnlock)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "contentlock_confirm_unlock",
		Description: "Confirm early unlock by typing back the phrase returned by contentlock_request_unlock.",
	}, s.handleConfirmUnlock)
}

// errorKind names a rejected command, or "" for transport and storage
// failures that should surface as tool errors.
func errorKind(err error) string {
	if kind := server.ErrorKind(err); kind != "" {
		return kind
	}
	if service.IsUserError(err) {
		return service.ErrorKind(err)
	}
	return ""
}
