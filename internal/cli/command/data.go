package command

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/cli/output"
	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage"
)

// GetCommand prints one record.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a record",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "KEY"); err != nil {
				return err
			}
			return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
				rec, ok, err := tbl.Get(ctx, c.Args().First())
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q not found", c.Args().First())
				}
				return render(c, output.NewRecordView(rec, time.Now()))
			})
		},
	}
}

// SetCommand upserts one record.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Write a record",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Value: domain.SerializationString.String(),
				Usage: "Serialization: STRING, INT, LONG, DOUBLE, BOOLEAN, JSON_OBJECT, JSON_ARRAY, *_ARRAY",
			},
			&cli.StringFlag{
				Name:    "expiry",
				Aliases: []string{"e"},
				Usage:   "forever, session, a duration (30m) or an RFC 3339 time; unset keeps a live record's expiry",
			},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2, "KEY VALUE"); err != nil {
				return err
			}
			rec, err := parseRecord(c.Args().Get(0), c.Args().Get(1), c.String("type"), c.String("expiry"), c.IsSet("expiry"), time.Now())
			if err != nil {
				return err
			}
			return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
				return tbl.Upsert(ctx, rec)
			})
		},
	}
}

// parseRecord validates value against typ and returns the record with a
// canonical payload.
func parseRecord(key, value, typ, expiry string, expirySet bool, now time.Time) (domain.Record, error) {
	ser, err := domain.ParseSerialization(typ)
	if err != nil {
		return domain.Record{}, err
	}
	decoded, err := ser.Decode(value)
	if err != nil {
		return domain.Record{}, domain.ErrInvalidArgument.WithDetails("value is not a valid " + ser.String()).WithCause(err)
	}

	var exp domain.Expiry
	if expirySet {
		if exp, err = domain.ParseExpiry(expiry, now); err != nil {
			return domain.Record{}, err
		}
	}

	rec, err := domain.NewRecord(key, decoded, exp)
	if err != nil {
		return domain.Record{}, err
	}
	return rec, rec.Validate()
}

// DeleteCommand removes records.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"del", "rm"},
		Usage:     "Delete records",
		ArgsUsage: "KEY...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return requireArgs(c, 1, "KEY...")
			}
			return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
				for _, key := range c.Args().Slice() {
					if err := tbl.Delete(ctx, key); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// KeysCommand lists visible keys.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "List keys",
		Action: func(c *cli.Context) error {
			return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
				keys, err := tbl.Keys(ctx)
				if err != nil {
					return err
				}
				if keys == nil {
					keys = []string{}
				}
				return render(c, keys)
			})
		},
	}
}

// CountCommand prints the number of visible records.
func CountCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Count records",
		Action: func(c *cli.Context) error {
			return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
				n, err := tbl.Count(ctx)
				if err != nil {
					return err
				}
				return render(c, n)
			})
		},
	}
}

// DumpCommand prints every record, expired ones included.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Print all records, including expired ones",
		Action: func(c *cli.Context) error {
			e, err := envFrom(c)
			if err != nil {
				return err
			}
			eng, err := e.openEngine(c.Context)
			if err != nil {
				return err
			}
			// A private raw view, so the shared table keeps its mode.
			raw, err := storage.NewTable(c.Context, eng.Medium(), storage.TableConfig{
				Name:           e.tableName(c),
				IncludeExpired: true,
			}, storage.WithLogger(e.log))
			if err != nil {
				return err
			}
			defer raw.Close()

			all, err := raw.GetAll(c.Context)
			if err != nil {
				return err
			}
			now := time.Now()
			list := make(output.RecordList, 0, len(all))
			for _, rec := range all {
				list = append(list, output.NewRecordView(rec, now))
			}
			sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
			return render(c, list)
		},
	}
}

// ClearCommand removes every record of the table.
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every record of the table",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Required confirmation",
			},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("force") {
				return domain.ErrMissingArgument.WithDetails("clear removes every record; pass --force")
			}
			return withTable(c, func(ctx context.Context, tbl *storage.Table) error {
				return tbl.Clear(ctx)
			})
		},
	}
}

func withTable(c *cli.Context, fn func(ctx context.Context, tbl *storage.Table) error) error {
	e, err := envFrom(c)
	if err != nil {
		return err
	}
	tbl, err := e.table(c)
	if err != nil {
		return err
	}
	return fn(c.Context, tbl)
}
