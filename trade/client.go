// Copyright (c) 2025 BVK Chaitanya

package trade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Options struct {
	// RestHostname is the execution service address.
	RestHostname string

	HTTPClientTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.HTTPClientTimeout == 0 {
		// Swap settlement can take multiple blocks.
		v.HTTPClientTimeout = 60 * time.Second
	}
}

func (v *Options) Check() error {
	if v.RestHostname == "" {
		return fmt.Errorf("rest hostname cannot be empty")
	}
	return nil
}

// Client executes swaps through the execution service's REST api. Transport
// failures are returned as errors; trades the service attempted and lost
// come back as a Result with Success false.
type Client struct {
	opts Options

	client *http.Client
}

var _ Executor = &Client{}

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
	}
	return c, nil
}

type buyRequest struct {
	Token     string          `json:"token"`
	BNBAmount decimal.Decimal `json:"bnbAmount"`
	OwnerID   string          `json:"ownerId"`
}

type sellRequest struct {
	Token      string          `json:"token"`
	Percentage decimal.Decimal `json:"percentage"`
	OwnerID    string          `json:"ownerId"`
}

// Buy spends bnbAmount on the token for the owner.
func (c *Client) Buy(ctx context.Context, token common.Address, bnbAmount decimal.Decimal, ownerID string) (*Result, error) {
	if !bnbAmount.IsPositive() {
		return nil, fmt.Errorf("buy amount must be positive: %w", os.ErrInvalid)
	}
	req := &buyRequest{
		Token:     token.Hex(),
		BNBAmount: bnbAmount,
		OwnerID:   ownerID,
	}
	result := new(Result)
	if err := c.postJSON(ctx, "/api/v1/buy", req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Sell liquidates the given percentage of the owner's position in the token.
func (c *Client) Sell(ctx context.Context, token common.Address, percentage decimal.Decimal, ownerID string) (*Result, error) {
	if !percentage.IsPositive() || percentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("sell percentage must be in (0, 100]: %w", os.ErrInvalid)
	}
	req := &sellRequest{
		Token:      token.Hex(),
		Percentage: percentage,
		OwnerID:    ownerID,
	}
	result := new(Result)
	if err := c.postJSON(ctx, "/api/v1/sell", req, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) postJSON(ctx context.Context, urlPath string, request, resultPtr interface{}) error {
	payload, err := json.Marshal(request)
	if err != nil {
		slog.Error("could not marshal post request body to json", "err", err)
		return err
	}
	u := &url.URL{
		Scheme: "https",
		Host:   c.opts.RestHostname,
		Path:   urlPath,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		slog.Error("could not create http post request with context", "url", u, "err", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not do http client request", "err", err)
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Error("http POST is unsuccessful", "status", resp.StatusCode, "url", u.String())
		return fmt.Errorf("http POST returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(resultPtr); err != nil {
		slog.Error("could not decode response to json", "err", err)
		return err
	}
	return nil
}
