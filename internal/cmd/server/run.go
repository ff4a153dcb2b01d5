package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/rzbill/peerchan/internal/config"
	"github.com/rzbill/peerchan/internal/retention"
	"github.com/rzbill/peerchan/internal/runtime"
	grpcserver "github.com/rzbill/peerchan/internal/server/grpc"
	httpserver "github.com/rzbill/peerchan/internal/server/http"
	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = os.Getenv

type Options struct {
	DataDir       string
	GRPCAddr      string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// LoadConfig resolves the server configuration: .env files first, then the
// config file (defaults when path is empty), then PEERCHAN_* overrides.
func LoadConfig(path string) (cfgpkg.Config, error) {
	if err := cfgpkg.LoadDotEnv(".env"); err != nil {
		return cfgpkg.Config{}, err
	}
	if path == "" {
		path = getenvDefault("PEERCHAN_CONFIG", "")
	}
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, fmt.Errorf("load config: %w", err)
	}
	cfgpkg.FromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, err
	}
	return cfg, nil
}

func newProcessLogger(c cfgpkg.LogConfig) logpkg.Logger {
	cfg := &logpkg.Config{Level: c.Level, Format: c.Format}
	l, err := logpkg.ApplyConfig(cfg)
	if err == nil {
		return l
	}
	lvl := logpkg.InfoLevel
	if parsed, e := logpkg.ParseLevel(cfg.Level); e == nil {
		lvl = parsed
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
}

// Run starts the gRPC and HTTP servers and the retention job, and blocks
// until ctx is cancelled or the process is signalled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger := newProcessLogger(opts.Config.Log)
	restore := logpkg.RedirectStdLog(procLogger)
	defer restore()

	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        procLogger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("Starting peerchan server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", storeDir),
		logpkg.Str("max_payload", opts.Config.MaxPayload.String()),
		logpkg.Bool("retention", opts.Config.Retention.Enabled),
		logpkg.Str("level", opts.Config.Log.Level),
		logpkg.Str("format", opts.Config.Log.Format),
	)

	gsrv := grpcserver.New(rt)
	hsrv := httpserver.New(rt, procLogger)

	if opts.Config.Retention.Enabled {
		runner, err := retention.New(rt.Store(), retention.Options{Cron: opts.Config.Retention.Cron, Logger: procLogger})
		if err != nil {
			return err
		}
		cancelRetention := runner.Start(sctx)
		defer cancelRetention()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, opts.GRPCAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("grpc server failed", logpkg.Err(err))
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("http server failed", logpkg.Err(err))
			stop()
		}
	}()

	<-sctx.Done()
	// servers go down before the runtime closes the store
	gsrv.Close()
	hsrv.Close()
	wg.Wait()
	procLogger.Info("peerchan server stopped")
	return nil
}
