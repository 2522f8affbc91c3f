package command

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/cli/output"
	"github.com/yndnr/datalayer-go/internal/core/service"
	"github.com/yndnr/datalayer-go/internal/storage"
	"github.com/yndnr/datalayer-go/internal/storage/snapshot"
)

// BackupCommand groups the snapshot subcommands.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Create, list, restore and prune table snapshots",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Snapshot the live records of the table",
				Action: func(c *cli.Context) error {
					return withBackups(c, func(ctx context.Context, b *service.Backups, tbl *storage.Table) error {
						info, err := b.Backup(ctx, tbl)
						if err != nil {
							return err
						}
						return render(c, output.SnapshotList{info})
					})
				},
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List snapshots",
				Action: func(c *cli.Context) error {
					b, err := backups(c)
					if err != nil {
						return err
					}
					infos, err := b.List()
					if err != nil {
						return err
					}
					return render(c, output.SnapshotList(infos))
				},
			},
			{
				Name:      "restore",
				Usage:     "Restore a snapshot into the table (default: its newest snapshot)",
				ArgsUsage: "[ID]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Clear the table before restoring",
					},
				},
				Action: func(c *cli.Context) error {
					return withBackups(c, func(ctx context.Context, b *service.Backups, tbl *storage.Table) error {
						n, err := b.Restore(ctx, tbl, c.Args().First(), c.Bool("replace"))
						if err != nil {
							return err
						}
						return render(c, map[string]any{"table": tbl.Name(), "restored": n})
					})
				},
			},
			{
				Name:  "prune",
				Usage: "Apply the retention policy",
				Action: func(c *cli.Context) error {
					b, err := backups(c)
					if err != nil {
						return err
					}
					n, err := b.Prune()
					if err != nil {
						return err
					}
					return render(c, map[string]any{"removed": n})
				},
			},
		},
	}
}

func backups(c *cli.Context) (*service.Backups, error) {
	e, err := envFrom(c)
	if err != nil {
		return nil, err
	}
	return e.backups()
}

func withBackups(c *cli.Context, fn func(ctx context.Context, b *service.Backups, tbl *storage.Table) error) error {
	b, err := backups(c)
	if err != nil {
		return err
	}
	return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
		return fn(ctx, b, tbl)
	})
}

// backups builds the backup service from the backup config section.
func (e *env) backups() (*service.Backups, error) {
	m, err := snapshot.NewManager(e.cfg.Backup.Snapshot(), e.log)
	if err != nil {
		return nil, err
	}
	return service.NewBackups(m, e.log), nil
}
