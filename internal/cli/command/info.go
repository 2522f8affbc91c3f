package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/config"
	"github.com/yndnr/datalayer-go/internal/infra/buildinfo"
)

// InfoCommand prints build and storage information.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show version, driver and row count",
		Action: func(c *cli.Context) error {
			e, err := envFrom(c)
			if err != nil {
				return err
			}
			tbl, err := e.table(c)
			if err != nil {
				return err
			}
			n, err := tbl.Count(c.Context)
			if err != nil {
				return err
			}
			bi := buildinfo.Get()
			return render(c, map[string]any{
				"version":    bi.Version,
				"commit":     bi.Commit,
				"go_version": bi.GoVersion,
				"driver":     e.cfg.Storage.Driver,
				"table":      tbl.Name(),
				"rows":       n,
			})
		},
	}
}

// ConfigCommand prints the effective configuration, secrets masked.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show the effective configuration",
		Action: func(c *cli.Context) error {
			e, err := envFrom(c)
			if err != nil {
				return err
			}
			return render(c, config.Sanitize(e.cfg))
		},
	}
}
