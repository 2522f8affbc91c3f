package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/config"
	"github.com/yndnr/datalayer-go/internal/infra/buildinfo"
	"github.com/yndnr/datalayer-go/internal/telemetry/logger"
)

// AppName is the binary name.
const AppName = "datalayer-cli"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     AppName,
		Usage:    "Inspect and maintain a data-layer store",
		Version:  buildinfo.String(),
		Flags:    append(globalFlags(), outputFlags()...),
		Commands: append(dataCommands(), RunCommand(), ShellCommand()),
		Before:   setup,
		After:    teardown,
	}
}

// globalFlags select the configuration. They only exist on the root
// application.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			EnvVars: []string{"DATALAYER_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
			Usage:   "Storage driver: sqlite, badger, redis, memory",
		},
		&cli.StringSliceFlag{
			Name:  "set",
			Usage: "Override a configuration key (KEY=VALUE, repeatable)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log at the configured level instead of warn",
		},
	}
}

// outputFlags are shared by the root application and the shell.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "table",
			Aliases: []string{"t"},
			Usage:   "Table to operate on (default: tables.default)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// dataCommands are available both from the command line and the shell.
func dataCommands() []*cli.Command {
	return []*cli.Command{
		GetCommand(),
		SetCommand(),
		DeleteCommand(),
		KeysCommand(),
		CountCommand(),
		DumpCommand(),
		ClearCommand(),
		PurgeCommand(),
		NewSessionCommand(),
		InfoCommand(),
		ConfigCommand(),
		BackupCommand(),
	}
}

// overrides collects configuration overrides from the global flags.
func overrides(c *cli.Context) (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range c.StringSlice("set") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--set %q: want KEY=VALUE", kv)
		}
		out[strings.TrimSpace(key)] = value
	}
	if c.IsSet("driver") {
		out["storage.driver"] = c.String("driver")
	}
	if c.IsSet("log-level") {
		out["log.level"] = c.String("log-level")
	}
	return out, nil
}

func setup(c *cli.Context) error {
	ov, err := overrides(c)
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.String("config"), ov)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Log
	logCfg.Output = c.App.ErrWriter
	if !c.Bool("verbose") && !c.IsSet("log-level") && c.Args().First() != "run" {
		logCfg.Level = "warn"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	c.App.Metadata[envKey] = newEnv(cfg, log.Slog(), c.String("config"), ov)
	return nil
}

func teardown(c *cli.Context) error {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e.close()
	}
	return nil
}

