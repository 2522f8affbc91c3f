package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/cli/output"
	"github.com/yndnr/datalayer-go/internal/config"
	"github.com/yndnr/datalayer-go/internal/storage"
	"github.com/yndnr/datalayer-go/internal/telemetry/metric"
)

const envKey = "env"

// env is the state shared by the commands of one invocation, or of one
// shell session.
type env struct {
	cfg        *config.Config
	log        *slog.Logger
	configPath string
	overrides  map[string]any

	// metrics is set by the run command before the engine opens.
	metrics *metric.Registry

	mu     sync.Mutex
	engine *storage.Engine
}

func newEnv(cfg *config.Config, log *slog.Logger, path string, ov map[string]any) *env {
	return &env{cfg: cfg, log: log, configPath: path, overrides: ov}
}

func envFrom(c *cli.Context) (*env, error) {
	e, ok := c.App.Metadata[envKey].(*env)
	if !ok {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// openEngine opens the configured medium on first use.
func (e *env) openEngine(ctx context.Context) (*storage.Engine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.engine != nil {
		return e.engine, nil
	}

	opts := []storage.Option{storage.WithLogger(e.log)}
	if e.metrics != nil {
		opts = append(opts, storage.WithMetrics(e.metrics), storage.WithRegisterer(e.metrics.Registerer()))
	}
	eng, err := storage.Open(ctx, e.cfg.Storage, opts...)
	if err != nil {
		return nil, err
	}
	e.engine = eng
	return eng, nil
}

func (e *env) tableName(c *cli.Context) string {
	if name := c.String("table"); name != "" {
		return name
	}
	return e.cfg.Tables.Default
}

// table opens the table selected by --table.
func (e *env) table(c *cli.Context) (*storage.Table, error) {
	eng, err := e.openEngine(c.Context)
	if err != nil {
		return nil, err
	}
	return eng.Table(c.Context, storage.TableConfig{
		Name:           e.tableName(c),
		IncludeExpired: e.cfg.Tables.IncludeExpired,
	})
}

func (e *env) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.engine == nil {
		return nil
	}
	err := e.engine.Close()
	e.engine = nil
	return err
}

// render renders data in the format selected by --output.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return fmt.Errorf("usage: %s %s", c.Command.Name, usage)
	}
	return nil
}
