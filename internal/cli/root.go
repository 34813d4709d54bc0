package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/config"
	"github.com/ppiankov/contentlock/internal/server"
)

// callTimeout bounds one command sent to the daemon.
const callTimeout = 10 * time.Second

var (
	configPath string
	daemonAddr string
)

var rootCmd = &cobra.Command{
	Use:   "contentlock",
	Short: "Content restriction daemon with self-lock and parental controls",
	Long: "Decides whether a page should be blocked from its content signals,\n" +
		"runs time-boxed self-locks with a cooldown before early unlock,\n" +
		"and guards settings behind a PIN.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default ~/.contentlock/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", "", "Daemon gRPC address (default 127.0.0.1:<grpc.port>)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveAddr returns --addr, or the loopback gRPC address from config.
func resolveAddr() (string, error) {
	if daemonAddr != "" {
		return daemonAddr, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("127.0.0.1:%d", cfg.GRPC.Port), nil
}

// withDaemon dials the daemon and runs fn with a bounded context.
func withDaemon(fn func(ctx context.Context, c *server.Client) error) error {
	addr, err := resolveAddr()
	if err != nil {
		return err
	}
	c, err := server.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fn(ctx, c)
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func formatEpoch(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
