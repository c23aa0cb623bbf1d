package command

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sesspool-go/internal/cli/connection"
	"github.com/yndnr/sesspool-go/internal/cli/output"
)

// errRefillSkipped reports a refill refused because a run was in flight.
var errRefillSkipped = errors.New("refill skipped: another replenishment is in progress")

// PoolCommand returns the pool subcommand group.
func PoolCommand() *cli.Command {
	return &cli.Command{
		Name:  "pool",
		Usage: "inspect and manage credential pools",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "show every origin's pool size",
				Action:  poolList,
			},
			{
				Name:      "show",
				Usage:     "show one origin's credentials by fingerprint",
				ArgsUsage: "<origin>",
				Action:    poolShow,
			},
			{
				Name:      "refill",
				Usage:     "run a replenishment and wait for it",
				ArgsUsage: "<origin>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "tokens to fetch (default: free capacity)",
					},
				},
				Action: poolRefill,
			},
			{
				Name:      "invalidate",
				Usage:     "drop a credential by token or fingerprint",
				ArgsUsage: "<origin> <token>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fp",
						Usage: "treat the argument as a fingerprint",
					},
				},
				Action: poolInvalidate,
			},
		},
	}
}

func poolList(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/pool")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var result poolListing
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	return render(c, result.Origins, nil)
}

func poolShow(c *cli.Context) error {
	if err := requireArgs(c, 1, "<origin>"); err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/pool/"+url.PathEscape(c.Args().First()))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var view poolView
	if err := connection.ParseResponse(resp, &view); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	if flags.Output == output.FormatJSON || flags.Output == output.FormatYAML {
		return render(c, view, nil)
	}
	fmt.Fprintf(c.App.Writer, "Origin:    %s (%s)\n", view.Origin, view.BaseURL)
	fmt.Fprintf(c.App.Writer, "Valid:     %d/%d (capacity %d, threshold %d)\n", view.Valid, view.Total, view.Capacity, view.MinThreshold)
	if view.Replenishing {
		fmt.Fprintln(c.App.Writer, "Status:    replenishing")
	}
	fmt.Fprintln(c.App.Writer)
	return output.NewFormatter(output.FormatTable, flags.Wide).Format(c.App.Writer, view.Credentials)
}

func poolRefill(c *cli.Context) error {
	if err := requireArgs(c, 1, "<origin>"); err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	origin := c.Args().First()
	var body any
	if n := c.Int("count"); n > 0 {
		body = map[string]int{"count": n}
	}

	flags := ParseGlobalFlags(c)
	var spinner *output.Spinner
	if flags.Output == output.FormatTable {
		spinner = output.NewSpinner(c.App.ErrWriter, "refilling "+origin)
		spinner.Start()
	}

	resp, err := client.Post(ctx, "/admin/v1/pool/"+url.PathEscape(origin)+"/refill", body)
	if err != nil {
		if spinner != nil {
			spinner.Fail("refill failed")
		}
		return fmt.Errorf("request failed: %w", err)
	}
	skipped := resp.StatusCode == http.StatusConflict

	var result replenishResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		if spinner != nil {
			spinner.Fail("refill failed")
		}
		return err
	}

	if spinner != nil {
		if skipped {
			spinner.Fail("another replenishment is in progress")
		} else {
			spinner.Success(fmt.Sprintf("fetched %d/%d tokens", result.Succeeded, result.Requested))
		}
	}

	if err := render(c, result, nil); err != nil {
		return err
	}
	if skipped {
		return errRefillSkipped
	}
	return nil
}

func poolInvalidate(c *cli.Context) error {
	if err := requireArgs(c, 2, "<origin> <token>"); err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	origin, value := c.Args().Get(0), c.Args().Get(1)
	body := map[string]string{"token": value}
	if c.Bool("fp") {
		body = map[string]string{"fp": value}
	}

	resp, err := client.Post(ctx, "/admin/v1/pool/"+url.PathEscape(origin)+"/invalidate", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var result invalidateResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	table := &output.Table{}
	table.SetHeaders("ORIGIN", "REMOVED", "VALID")
	table.AddRow(origin, strconv.FormatBool(result.Removed), strconv.Itoa(result.Valid))
	return render(c, result, table)
}
