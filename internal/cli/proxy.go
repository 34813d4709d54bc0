package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/logging"
	"github.com/ppiankov/contentlock/internal/proxy"
	"github.com/ppiankov/contentlock/internal/safereq"
	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
)

var proxyPort int

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().IntVar(&proxyPort, "port", 9745, "Port to listen on")
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the safe-request forward proxy against a running daemon",
	Long: "Forward HTTP proxy that rewrites search and video requests to their\n" +
		"safe variants whenever the daemon reports safe-request mode on.\n" +
		"Usage: HTTP_PROXY=http://127.0.0.1:9745 <browser>",
	RunE: runProxy,
}

// remotePlanner asks the daemon for each request's rewrite plan.
type remotePlanner struct {
	client *server.Client
}

func (p remotePlanner) SafeRequestConfig(ctx context.Context, req service.SafeRequestRequest) (safereq.Plan, error) {
	var plan safereq.Plan
	err := p.client.Call(ctx, req, &plan)
	return plan, err
}

func runProxy(cmd *cobra.Command, args []string) error {
	addr, err := resolveAddr()
	if err != nil {
		return err
	}
	client, err := server.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	logger := logging.NewLogger(logging.LoggerConfig{Format: "text", Level: logging.NewLevel("info")})
	srv, err := proxy.NewServer(proxy.Config{
		Port:    proxyPort,
		Planner: remotePlanner{client: client},
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create proxy server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(os.Stderr, "contentlock proxy listening on %s (daemon %s)\n", srv.Addr(), addr)
	fmt.Fprintf(os.Stderr, "Set HTTP_PROXY=http://%s to route browser traffic\n", srv.Addr())
	return srv.Start(ctx)
}
