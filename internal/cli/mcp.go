package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/logging"
	clmcp "github.com/ppiankov/contentlock/internal/mcp"
	"github.com/ppiankov/contentlock/internal/server"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs an MCP (Model Context Protocol) server over stdio that forwards\n" +
		"to the running daemon. Exposes tools: check, status, activate,\n" +
		"request_unlock, confirm_unlock.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	addr, err := resolveAddr()
	if err != nil {
		return err
	}
	client, err := server.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	logger := logging.NewLogger(logging.LoggerConfig{Format: "json", Level: logging.NewLevel("warn"), Output: os.Stderr})
	srv := clmcp.New(clmcp.Config{Caller: client, Version: version, Logger: logger})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
