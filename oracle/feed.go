// Copyright (c) 2026 BVK Chaitanya

package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bvk/snipebot/ctxutil"
	"github.com/bvk/snipebot/syncmap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

// TokenPrice pairs a price observation with its token address for the
// streaming feed.
type TokenPrice struct {
	Token common.Address
	Price *Price
}

// Feed streams live price updates over the price service's websocket api
// and keeps a per-token cache of the most recent observation. Lookups are
// served from the cache while it is fresh and fall back to the REST client
// otherwise.
type Feed struct {
	closeGroup ctxutil.CloseGroup

	client *Client

	wsHostname string

	topic *topic.Topic[*TokenPrice]

	priceMap syncmap.Map[common.Address, *Price]

	mu     sync.Mutex
	dirty  atomic.Bool
	tokens map[common.Address]struct{}
}

var _ Oracle = &Feed{}

func NewFeed(client *Client, wsHostname string) *Feed {
	f := &Feed{
		client:     client,
		wsHostname: wsHostname,
		topic:      topic.New[*TokenPrice](),
		tokens:     make(map[common.Address]struct{}),
	}
	f.closeGroup.Go(f.goWatchPrices)
	return f
}

func (f *Feed) Close() {
	f.closeGroup.Close()
	f.topic.Close()
}

// Topic returns the live update stream. Subscribers receive every price
// observation delivered over the websocket.
func (f *Feed) Topic() *topic.Topic[*TokenPrice] {
	return f.topic
}

// Watch adds a token to the websocket subscription set.
func (f *Feed) Watch(token common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tokens[token]; !ok {
		f.tokens[token] = struct{}{}
		f.dirty.Store(true)
	}
}

// Unwatch removes a token from the subscription set. The cached price, if
// any, is dropped.
func (f *Feed) Unwatch(token common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tokens[token]; ok {
		delete(f.tokens, token)
		f.dirty.Store(true)
	}
	f.priceMap.Delete(token)
}

func (f *Feed) watchedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dirty.Store(false)
	vs := make([]string, 0, len(f.tokens))
	for token := range f.tokens {
		vs = append(vs, token.Hex())
	}
	return vs
}

// GetCurrentPrice returns the cached observation when it is younger than
// the configured max age and otherwise fetches over REST. REST results
// refresh the cache.
func (f *Feed) GetCurrentPrice(ctx context.Context, token common.Address) (*Price, error) {
	if p, ok := f.priceMap.Load(token); ok {
		if time.Since(p.At) < f.client.opts.MaxPriceAge {
			return p, nil
		}
	}
	p, err := f.client.GetCurrentPrice(ctx, token)
	if err != nil {
		return nil, err
	}
	f.priceMap.Store(token, p)
	return p, nil
}

type wsSubscribeMessage struct {
	Type   string   `json:"type"`
	Tokens []string `json:"tokens"`
}

type wsPriceMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`

	Token string `json:"token"`

	PriceBNB     string `json:"price_bnb"`
	PriceUSD     string `json:"price_usd"`
	HasLiquidity bool   `json:"has_liquidity"`

	Timestamp int64 `json:"timestamp"`
}

func (f *Feed) goWatchPrices(ctx context.Context) {
	for ctx.Err() == nil {
		if err := f.watchPrices(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Warn("price feed websocket has failed (will retry)", "err", err)
			}
		}
		ctxutil.Sleep(ctx, time.Second)
	}
}

func (f *Feed) watchPrices(ctx context.Context) error {
	var dialer websocket.Dialer
	conn, _, err := dialer.DialContext(ctx, "wss://"+f.wsHostname+"/api/v1/stream", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	if err := conn.WriteJSON(&wsSubscribeMessage{Type: "subscribe", Tokens: f.watchedTokens()}); err != nil {
		return err
	}

	for ctx.Err() == nil {
		if f.dirty.Load() {
			if err := conn.WriteJSON(&wsSubscribeMessage{Type: "subscribe", Tokens: f.watchedTokens()}); err != nil {
				return err
			}
		}

		var msg wsPriceMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			return err
		}
		if msg.Type == "error" {
			slog.Error("price feed returned an error message", "message", msg.Message)
			continue
		}
		if msg.Token == "" {
			continue
		}

		p, err := parsePriceMessage(&msg)
		if err != nil {
			slog.Warn("could not parse price feed message (ignored)", "err", err)
			continue
		}
		token := common.HexToAddress(msg.Token)
		f.priceMap.Store(token, p)
		f.topic.Send(&TokenPrice{Token: token, Price: p})
	}
	return context.Cause(ctx)
}

func parsePriceMessage(msg *wsPriceMessage) (*Price, error) {
	priceBNB, err := decimal.NewFromString(msg.PriceBNB)
	if err != nil {
		return nil, fmt.Errorf("could not parse bnb price %q: %w", msg.PriceBNB, err)
	}
	priceUSD, err := decimal.NewFromString(msg.PriceUSD)
	if err != nil {
		return nil, fmt.Errorf("could not parse usd price %q: %w", msg.PriceUSD, err)
	}
	at := time.Now()
	if msg.Timestamp != 0 {
		at = time.Unix(msg.Timestamp, 0)
	}
	return &Price{
		PriceBNB:     priceBNB,
		PriceUSD:     priceUSD,
		HasLiquidity: msg.HasLiquidity,
		At:           at,
	}, nil
}
