package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/alert"
	"github.com/ppiankov/contentlock/internal/api"
	"github.com/ppiankov/contentlock/internal/audit"
	"github.com/ppiankov/contentlock/internal/config"
	"github.com/ppiankov/contentlock/internal/logging"
	"github.com/ppiankov/contentlock/internal/proxy"
	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
	"github.com/ppiankov/contentlock/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the policy daemon",
	Long: "Runs the contentlock daemon: the policy service, the self-lock\n" +
		"scheduler and the enabled listeners (gRPC, HTTP/JSON, forward proxy).\n" +
		"Alert destinations and log level hot-reload when config.yaml changes.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, hash, err := config.LoadWithHash(path)
	if err != nil {
		return err
	}

	level := logging.NewLevel(cfg.Log.Level)
	logger := logging.NewLogger(logging.LoggerConfig{Format: cfg.Log.Format, Level: level})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := store.Open(ctx, cfg.Storage.BackendConfig())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	var auditLog *audit.Log
	if cfg.Audit.Path != "" {
		auditLog, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer auditLog.Close()
	}

	svc := service.New(service.Options{
		Store:        store.New(backend),
		Audit:        auditLog,
		Alerts:       alert.NewDispatcher(cfg.Alerts, logger),
		Logger:       logger,
		TickInterval: cfg.Scheduler.TickInterval,
		ConfigHash:   hash,
		AttemptLimit: cfg.Security.AttemptLimit(),
	})
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Close()

	errCh := make(chan error, 3)

	var grpcSrv *server.Server
	if cfg.GRPC.Enabled {
		grpcSrv = server.New(server.Config{Port: cfg.GRPC.Port}, svc, logger)
		go func() { errCh <- grpcSrv.Serve() }()
		logger.Info("grpc listening", "port", cfg.GRPC.Port)
	}

	if cfg.HTTP.Enabled {
		router := api.NewRouter(svc, logger)
		go func() { errCh <- api.ListenAndServe(ctx, cfg.HTTP.Addr, router) }()
		logger.Info("http listening", "addr", cfg.HTTP.Addr)
	}

	if cfg.Proxy.Enabled {
		p, err := proxy.NewServer(proxy.Config{Port: cfg.Proxy.Port, Planner: svc, Logger: logger})
		if err != nil {
			return err
		}
		go func() { errCh <- p.Start(ctx) }()
		logger.Info("proxy listening", "addr", p.Addr())
	}

	cr := &server.ConfigReloader{Path: path, Service: svc, Level: level, Logger: logger}
	if err := cr.Reload(); err != nil {
		logger.Warn("config reload failed", "error", err)
	}
	reloader, err := server.NewReloader(cr, []string{path}, logger)
	if err != nil {
		logger.Warn("hot-reload disabled", "error", err)
	} else {
		go reloader.Run(ctx)
	}

	logger.Info("contentlock daemon started",
		"version", version,
		"storage", cfg.Storage.Backend,
		"config_hash", hash,
	)

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil {
			logger.Error("listener failed", "error", err)
		}
		cancel()
	}

	logger.Info("shutting down")
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	return err
}
