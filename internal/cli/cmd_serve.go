package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/koltyakov/posbridge/internal/config"
	"github.com/koltyakov/posbridge/internal/debughttp"
	ilog "github.com/koltyakov/posbridge/internal/log"
	"github.com/koltyakov/posbridge/internal/server"
	"github.com/koltyakov/posbridge/internal/store/sqlite"
	"github.com/koltyakov/posbridge/internal/worker"
)

func runServe(ctx context.Context, args []string) int {
	loadServeEnvFromDotEnv(".env")

	cfg, err := config.ParseServeFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "serve config error:", err)
		return 2
	}
	if cfg.BuildVersion == "" {
		cfg.BuildVersion = Version
	}

	logger := ilog.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.InstanceIDGenerated {
		logger.Warn("no instance uuid configured, generated one for this run", "uuid", cfg.InstanceID)
	}
	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg config.ServiceConfig, logger *slog.Logger) int {
	var opts []server.Option
	if cfg.AuditDBPath != "" {
		store, err := sqlite.Open(cfg.AuditDBPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "audit db error:", err)
			return 1
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, server.WithAccessRecorder(store))
		logger.Info("access audit enabled", "db", cfg.AuditDBPath, "retention", cfg.AuditRetention.String())
	}

	pprof, err := debughttp.Listen(cfg.PprofListen, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pprof listen error:", err)
		return 1
	}
	defer func() { _ = pprof.Close() }()

	srv := server.New(cfg, logger, opts...)
	w := worker.New("websocket")
	if err := w.Start(srv.Run); err != nil {
		fmt.Fprintln(os.Stderr, "server error:", err)
		return 1
	}

	select {
	case <-ctx.Done():
		logger.Info("stop requested", "worker", w.Name())
		w.RequestStop()
	case <-w.Done():
	}
	if err := w.Join(); err != nil {
		fmt.Fprintln(os.Stderr, "server error:", err)
		return 1
	}
	return 0
}
