package command

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/cli/repl"
)

// ShellCommand opens the store once and reads commands interactively.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "History file (default: ~/.datalayer/history)",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := envFrom(c)
			if err != nil {
				return err
			}
			app := shellApp(c, e)

			names := make([]string, 0, len(app.Commands))
			for _, cmd := range app.Commands {
				names = append(names, cmd.Name)
			}

			history := repl.NewHistory(c.String("history"))
			if err := history.Load(); err != nil {
				e.log.Warn("history not loaded", "error", err)
			}
			defer func() {
				if err := history.Save(); err != nil {
					e.log.Warn("history not saved", "error", err)
				}
			}()

			r := repl.New(func(ctx context.Context, args []string) error {
				return app.RunContext(ctx, append([]string{app.Name}, args...))
			},
				repl.WithIO(c.App.Reader, writer(c)),
				repl.WithHistory(history),
				repl.WithCommands(names...),
			)
			return r.Run(c.Context)
		},
	}
}

// shellApp builds the application the shell dispatches to. It shares the
// caller's environment, so the engine stays open between lines, and
// inherits the caller's output flags as defaults.
func shellApp(parent *cli.Context, e *env) *cli.App {
	flags := outputFlags()
	for _, f := range flags {
		switch f := f.(type) {
		case *cli.StringFlag:
			f.Value = parent.String(f.Name)
		case *cli.BoolFlag:
			f.Value = parent.Bool(f.Name)
		}
	}
	return &cli.App{
		Name:           AppName,
		HideVersion:    true,
		Flags:          flags,
		Commands:       dataCommands(),
		Writer:         writer(parent),
		ErrWriter:      parent.App.ErrWriter,
		Metadata:       map[string]any{envKey: e},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}
