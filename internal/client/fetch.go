package client

import (
	"context"
	"net/http"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// FetchToken requests the origin's landing page without a session and
// returns the session token from its Set-Cookie headers. Each call is
// bounded by FetchTimeout.
func (c *Client) FetchToken(ctx context.Context, origin string) (string, error) {
	o, ok := c.cfg.Origins.ByKey(origin)
	if !ok {
		return "", domain.ErrUnknownOrigin.About(origin)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.LandingURL(), nil)
	if err != nil {
		return "", domain.ErrInvalidArgument.Wrap(err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := c.send(ctx, req, nil, o, true)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.ErrUnexpectedStatus.Aboutf("landing page %s: status %d", o.Key, resp.StatusCode)
	}

	for _, sc := range resp.Header.Values("Set-Cookie") {
		if m := c.cookieRe.FindStringSubmatch(sc); m != nil {
			return m[1], nil
		}
	}
	return "", domain.ErrTokenNotFound.About(o.Key)
}
