package edge

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kisschan/monachat-like/internal/errors"
	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/internal/retry"
	"github.com/kisschan/monachat-like/live"
)

const (
	probeTimeout    = 5 * time.Second
	probeInitial    = 500 * time.Millisecond
	probeMaxBackoff = 5 * time.Second
	probeElapsed    = 30 * time.Second
)

// ErrUnreachable - the media edge did not answer the preflight probe
const ErrUnreachable errors.Code = "edge-unreachable"

// Client probes the media edge before the server starts accepting
// broadcast requests, so a misconfigured WHIP base fails loudly at boot
// instead of on the first publish.
type Client struct {
	http   *resty.Client
	retry  retry.Retry
	logger *log.Logger
}

func NewClient(logger *log.Logger) *Client {
	return &Client{
		http: resty.New().
			SetTimeout(probeTimeout),
		retry:  retry.New(logger, probeInitial, probeMaxBackoff, probeElapsed),
		logger: logger,
	}
}

// Preflight checks that the edge host behind cfg answers HTTP at all.
// The probe hits the bare origin, not the WHIP path, any response
// (including 404) proves reachability. Disabled configs pass trivially.
func (c *Client) Preflight(ctx context.Context, cfg live.Config) error {
	if !cfg.Enabled() {
		c.logger.Info("Live streaming disabled, skipping edge preflight")
		return nil
	}

	origin, err := originOf(cfg.WhipBase)
	if err != nil {
		return errors.Wrap(live.ErrMisconfigured, err, "invalid whip base")
	}

	probeErr := c.retry.Do(ctx, func() error {
		_, err := c.http.R().SetContext(ctx).Get(origin)
		return err
	})
	if probeErr != nil {
		return errors.Wrapf(ErrUnreachable, probeErr, "edge %s did not respond", origin)
	}

	c.logger.Info("Edge preflight passed", log.String("origin", origin))
	return nil
}

func originOf(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.PureNew("base URL must be absolute")
	}
	return u.Scheme + "://" + u.Host, nil
}
