// Copyright (c) 2025 BVK Chaitanya

// Package chain defines the read-only blockchain interface consumed by the
// scanner and implements it over an ethereum JSON-RPC endpoint.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// Reader is the contract the scanner and classifier consume. BlockNumber must
// be monotonically non-decreasing and block bodies must carry the complete
// transaction list for their height; any other behavior (e.g. a reorg on the
// remote node) surfaces as an error and the caller retries.
//
// Implementations must be safe for concurrent use; the block scanner and the
// position tracker issue calls from independent loops.
type Reader interface {
	BlockNumber(ctx context.Context) (uint64, error)

	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)

	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client implements Reader over a remote JSON-RPC endpoint with client-side
// rate limiting.
type Client struct {
	opts Options

	eth *ethclient.Client

	limiter *rate.Limiter
}

var _ Reader = &Client{}

// Dial connects to the given websocket or https JSON-RPC endpoint.
func Dial(ctx context.Context, endpoint string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("could not dial rpc endpoint: %w", err)
	}
	c := &Client{
		opts:    *opts,
		eth:     eth,
		limiter: rate.NewLimiter(rate.Limit(opts.MaxRequestsPerSecond), opts.MaxRequestsPerSecond),
	}
	return c, nil
}

func (c *Client) Close() error {
	c.eth.Close()
	return nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not fetch latest block number: %w", err)
	}
	return n, nil
}

func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	b, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("could not fetch block %d: %w", number, err)
	}
	return b, nil
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	r, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("could not fetch receipt for %s: %w", txHash, err)
	}
	return r, nil
}

// ChainID queries the remote endpoint for its chain id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	return c.eth.ChainID(ctx)
}
