package command

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/core/service"
	"github.com/yndnr/datalayer-go/internal/storage"
)

// PurgeCommand removes expired records now.
func PurgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Remove expired records",
		Action: func(c *cli.Context) error {
			return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
				e, _ := envFrom(c)
				n, err := service.NewPurger(service.PurgerConfig{}, e.log, tbl).PurgeOnce(ctx)
				if err != nil {
					return err
				}
				return render(c, map[string]any{"table": tbl.Name(), "removed": n})
			})
		},
	}
}

// NewSessionCommand signals a session boundary: SESSION records go.
func NewSessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "new-session",
		Usage: "Start a new session, dropping SESSION-scoped records",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "id",
				Usage: "Session id (default: now in Unix milliseconds)",
			},
		},
		Action: func(c *cli.Context) error {
			return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
				e, _ := envFrom(c)
				id := c.Int64("id")
				if !c.IsSet("id") {
					id = time.Now().UnixMilli()
				}
				before, err := tbl.Count(ctx)
				if err != nil {
					return err
				}
				if err := service.NewSessionBoundary(e.log, tbl).NewSession(ctx, id); err != nil {
					return err
				}
				after, err := tbl.Count(ctx)
				if err != nil {
					return err
				}
				return render(c, map[string]any{"table": tbl.Name(), "session_id": id, "removed": before - after})
			})
		},
	}
}
