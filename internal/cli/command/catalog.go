package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sesspool-go/internal/cli/connection"
	"github.com/yndnr/sesspool-go/internal/cli/output"
)

var itemURLPattern = regexp.MustCompile(`/items/(\d+)`)

// CatalogCommand returns the catalog subcommand group.
func CatalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "query an origin's catalog through the pool",
		Subcommands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "search listings, newest first",
				ArgsUsage: "<origin> <query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: 1, Usage: "result page"},
				},
				Action: catalogSearch,
			},
		},
	}
}

// ItemCommand returns the item subcommand group.
func ItemCommand() *cli.Command {
	return &cli.Command{
		Name:  "item",
		Usage: "read listing details through the pool",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "fetch one item by id or listing URL",
				ArgsUsage: "<origin> <id|url>",
				Action:    itemGet,
			},
		},
	}
}

func catalogSearch(c *cli.Context) error {
	if err := requireArgs(c, 2, "<origin> <query>"); err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	q := url.Values{}
	q.Set("q", c.Args().Get(1))
	q.Set("page", strconv.Itoa(c.Int("page")))

	resp, err := client.Get(ctx, "/v1/catalog/"+url.PathEscape(c.Args().Get(0))+"/search?"+q.Encode())
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var raw json.RawMessage
	if err := connection.ParseResponse(resp, &raw); err != nil {
		return err
	}
	return renderPayload(c, raw)
}

func itemGet(c *cli.Context) error {
	if err := requireArgs(c, 2, "<origin> <id|url>"); err != nil {
		return err
	}
	id, err := itemID(c.Args().Get(1))
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/items/"+url.PathEscape(c.Args().Get(0))+"/"+id)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var raw json.RawMessage
	if err := connection.ParseResponse(resp, &raw); err != nil {
		return err
	}
	return renderPayload(c, raw)
}

// itemID accepts a numeric id or a listing URL.
func itemID(arg string) (string, error) {
	if _, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return arg, nil
	}
	if m := itemURLPattern.FindStringSubmatch(arg); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%q is neither an item id nor an item URL", arg)
}

// renderPayload prints an upstream payload. It has no fixed shape, so
// the table format falls back to JSON.
func renderPayload(c *cli.Context, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	if ParseGlobalFlags(c).Output == output.FormatYAML {
		return render(c, v, nil)
	}
	return output.JSONFormatter{}.Format(c.App.Writer, v)
}
