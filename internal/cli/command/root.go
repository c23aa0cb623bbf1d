package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sesspool-go/internal/cli/connection"
	"github.com/yndnr/sesspool-go/internal/cli/output"
	"github.com/yndnr/sesspool-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "sesspool-cli",
		Usage:                "inspect and manage a running sesspool-server",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			PoolCommand(),
			CatalogCommand(),
			ItemCommand(),
			SystemCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "sesspool-server admin address",
			EnvVars: []string{"SESSPOOL_SERVER"},
			Value:   "localhost:5080",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"k"},
			Usage:   "admin API key",
			EnvVars: []string{"SESSPOOL_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "CA bundle for an HTTPS server",
			EnvVars: []string{"SESSPOOL_CA_FILE"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
			Value: connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show more columns",
		},
	}
}

// GlobalFlags are the flags shared by every command.
type GlobalFlags struct {
	Server  string
	APIKey  string
	CAFile  string
	Timeout time.Duration
	Output  output.Format
	Wide    bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:  c.String("server"),
		APIKey:  c.String("api-key"),
		CAFile:  c.String("ca-file"),
		Timeout: c.Duration("timeout"),
		Output:  output.Format(c.String("output")),
		Wide:    c.Bool("wide"),
	}
}

// newClient builds the admin API client from the global flags.
func newClient(c *cli.Context) (*connection.HTTPClient, error) {
	flags := ParseGlobalFlags(c)
	return connection.NewHTTPClient(flags.Server, connection.Options{
		APIKey:  flags.APIKey,
		Timeout: flags.Timeout,
		CAFile:  flags.CAFile,
	})
}

// requestContext bounds one command by --timeout and the app context.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, ParseGlobalFlags(c).Timeout)
}

// render writes data in the selected format. table is used for the
// table format when non-nil; otherwise data is tabulated by reflection.
func render(c *cli.Context, data any, table *output.Table) error {
	flags := ParseGlobalFlags(c)
	if flags.Output != output.FormatJSON && flags.Output != output.FormatYAML && table != nil {
		return table.Render(c.App.Writer)
	}
	return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
}

// requireArgs checks the positional argument count.
func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return fmt.Errorf("usage: %s %s", c.Command.HelpName, usage)
	}
	return nil
}
