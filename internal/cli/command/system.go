package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sesspool-go/internal/cli/connection"
	"github.com/yndnr/sesspool-go/internal/cli/output"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "server health",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "check server liveness",
				Action: systemHealth,
			},
			{
				Name:   "ready",
				Usage:  "check that every origin holds a credential",
				Action: systemReady,
			},
		},
	}
}

func systemHealth(c *cli.Context) error {
	return checkStatus(c, "/health", "healthy")
}

func systemReady(c *cli.Context) error {
	return checkStatus(c, "/ready", "ready")
}

func checkStatus(c *cli.Context, path, want string) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	var result healthStatus
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	if flags.Output == output.FormatJSON || flags.Output == output.FormatYAML {
		if err := render(c, result, nil); err != nil {
			return err
		}
	} else if result.Status == want {
		fmt.Fprintf(c.App.Writer, "✓ server is %s\n  target: %s\n", want, client.BaseURL())
		if result.Version != "" {
			fmt.Fprintf(c.App.Writer, "  version: %s\n", result.Version)
		}
	} else {
		fmt.Fprintf(c.App.Writer, "✗ server is %s\n", result.Status)
		if len(result.EmptyOrigins) > 0 {
			fmt.Fprintf(c.App.Writer, "  empty origins: %s\n", strings.Join(result.EmptyOrigins, ", "))
		}
	}

	if result.Status != want {
		return fmt.Errorf("server is %s", result.Status)
	}
	return nil
}
