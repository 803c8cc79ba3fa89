// Copyright (c) 2026 BVK Chaitanya

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type Options struct {
	// RestHostname is the price service address, like "api.example.com".
	RestHostname string

	HTTPClientTimeout time.Duration

	MaxFetchRatePerSec int

	// MaxPriceAge bounds how stale a cached observation may be before
	// GetCurrentPrice falls back to a REST fetch.
	MaxPriceAge time.Duration
}

func (v *Options) setDefaults() {
	if v.HTTPClientTimeout == 0 {
		v.HTTPClientTimeout = 5 * time.Second
	}
	if v.MaxFetchRatePerSec == 0 {
		v.MaxFetchRatePerSec = 25
	}
	if v.MaxPriceAge == 0 {
		v.MaxPriceAge = 2 * time.Second
	}
}

func (v *Options) Check() error {
	if v.RestHostname == "" {
		return fmt.Errorf("rest hostname cannot be empty")
	}
	return nil
}

// Client fetches token prices over the price service's REST api.
type Client struct {
	opts Options

	client  *http.Client
	limiter *rate.Limiter
}

var _ Oracle = &Client{}

func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	c := &Client{
		opts: *opts,
		client: &http.Client{
			Timeout: opts.HTTPClientTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.MaxFetchRatePerSec), 1),
	}
	return c, nil
}

type priceResponse struct {
	Token string `json:"token"`

	PriceBNB decimal.Decimal `json:"price_bnb"`
	PriceUSD decimal.Decimal `json:"price_usd"`

	HasLiquidity bool `json:"has_liquidity"`

	Timestamp int64 `json:"timestamp"`
}

// GetCurrentPrice fetches the latest price for the token. A token whose
// liquidity has migrated is reported with HasLiquidity false, not as an
// error.
func (c *Client) GetCurrentPrice(ctx context.Context, token common.Address) (*Price, error) {
	u := &url.URL{
		Scheme: "https",
		Host:   c.opts.RestHostname,
		Path:   path.Join("/api/v1/price", token.Hex()),
	}
	var resp priceResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	at := time.Now()
	if resp.Timestamp != 0 {
		at = time.Unix(resp.Timestamp, 0)
	}
	return &Price{
		PriceBNB:     resp.PriceBNB,
		PriceUSD:     resp.PriceUSD,
		HasLiquidity: resp.HasLiquidity,
		At:           at,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, url *url.URL, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		slog.Error("could not create http get request with context", "url", url, "err", err)
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not do http client request", "err", err)
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("price service has no data for %s: %w", url.Path, os.ErrNotExist)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("get request returned with status code 429 - too many requests (retrying)")
			return c.getJSON(ctx, url, result)
		}
		slog.Error("http GET is unsuccessful", "status", resp.StatusCode, "url", url.String())
		return fmt.Errorf("http GET returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		slog.Error("could not decode response to json", "err", err)
		return err
	}
	return nil
}
