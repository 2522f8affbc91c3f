package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/config"
	"github.com/yndnr/datalayer-go/internal/core/service"
	"github.com/yndnr/datalayer-go/internal/infra/confloader"
	"github.com/yndnr/datalayer-go/internal/infra/shutdown"
	"github.com/yndnr/datalayer-go/internal/storage"
	"github.com/yndnr/datalayer-go/internal/telemetry/logger"
	"github.com/yndnr/datalayer-go/internal/telemetry/metric"
	"github.com/yndnr/datalayer-go/internal/telemetry/tracer"
)

// DefaultShutdownTimeout bounds the shutdown hooks of the run command.
const DefaultShutdownTimeout = 30 * time.Second

// RunCommand keeps the store maintained until SIGINT or SIGTERM.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Purge expired records, emit session boundaries, take backups and serve metrics",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "tables",
				Usage: "Tables to maintain (default: tables.default)",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Value: DefaultShutdownTimeout,
				Usage: "Deadline for releasing resources on exit",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	e, err := envFrom(c)
	if err != nil {
		return err
	}
	ctx, stop := shutdown.WithSignals(c.Context)
	defer stop()
	return serve(ctx, e, c.StringSlice("tables"), c.Duration("shutdown-timeout"))
}

// serve runs until ctx ends, then releases everything it started.
func serve(ctx context.Context, e *env, names []string, timeout time.Duration) error {
	cfg := e.cfg
	log := e.log
	sh := shutdown.NewHandler(timeout)

	flush, err := tracer.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	sh.OnShutdown("tracer", flush)

	e.metrics = metric.NewRegistry()
	eng, err := e.openEngine(ctx)
	if err != nil {
		_ = sh.Shutdown(context.Background())
		return err
	}
	sh.OnShutdown("storage", func(context.Context) error { return e.close() })

	if len(names) == 0 {
		names = []string{cfg.Tables.Default}
	}
	tables := make([]*storage.Table, 0, len(names))
	for _, name := range names {
		tbl, err := eng.Table(ctx, storage.TableConfig{Name: name, IncludeExpired: cfg.Tables.IncludeExpired})
		if err != nil {
			_ = sh.Shutdown(context.Background())
			return err
		}
		tables = append(tables, tbl)
	}

	var wg sync.WaitGroup
	if cfg.Purge.Enabled {
		purgers := make([]service.ExpiredPurger, len(tables))
		for i, t := range tables {
			purgers[i] = t
		}
		p := service.NewPurger(service.PurgerConfig{Interval: cfg.Purge.Interval, OnStartup: cfg.Purge.OnStartup}, log, purgers...)
		wg.Go(func() { p.Run(ctx) })
	}

	if cfg.Session.Interval > 0 {
		boundary := service.NewSessionBoundary(log)
		for _, t := range tables {
			boundary.Bind(t)
		}
		wg.Go(func() { boundary.Run(ctx, service.SessionTicker(ctx, cfg.Session.Interval)) })
	}

	if cfg.Backup.Interval > 0 {
		b, err := e.backups()
		if err != nil {
			_ = sh.Shutdown(context.Background())
			return err
		}
		sources := make([]service.BackupSource, len(tables))
		for i, t := range tables {
			sources[i] = t
		}
		wg.Go(func() { b.Run(ctx, cfg.Backup.Interval, sources...) })
	}

	if cfg.Metrics.Enabled {
		srv, err := startMetrics(e, eng)
		if err != nil {
			_ = sh.Shutdown(context.Background())
			return err
		}
		sh.OnShutdown("metrics", srv.Shutdown)
	}

	if e.configPath != "" {
		w, err := watchConfig(ctx, e)
		if err != nil {
			log.Warn("configuration hot reload disabled", "error", err)
		} else {
			sh.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
		}
	}

	log.Info("datalayer running", "driver", cfg.Storage.Driver, "tables", names)
	<-ctx.Done()
	log.Info("shutting down")

	wg.Wait()
	if err := sh.Shutdown(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("stopped gracefully")
	return nil
}

func startMetrics(e *env, eng *storage.Engine) (*http.Server, error) {
	if err := e.metrics.Registerer().Register(metric.NewCollector(eng, 0, e.log)); err != nil {
		return nil, fmt.Errorf("register collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(e.cfg.Metrics.Path, e.metrics.Handler())
	srv := &http.Server{
		Addr:              e.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		e.log.Info("metrics listening", "addr", srv.Addr, "path", e.cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server error", "error", err)
		}
	}()
	return srv, nil
}

// watchConfig reloads the log level when the configuration file changes.
// Other settings need a restart.
func watchConfig(ctx context.Context, e *env) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(e.log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(e.configPath); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(path string) {
		cfg, err := config.Load(path, e.overrides)
		if err != nil {
			e.log.Error("configuration reload rejected", "file", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			e.log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	go w.Run(ctx)
	return w, nil
}
