// Copyright (c) 2025 BVK Chaitanya

// Package classify inspects raw transactions against the launchpad target
// contract and a method selector table and produces typed events. Malformed
// or missing fields never escape this package as errors; such transactions
// degrade to Unknown or are dropped and counted.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/bvk/snipebot/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// transferTopic is the ERC20 Transfer(address,address,uint256) event
// signature hash.
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// ReceiptFunc fetches the receipt for a transaction hash. Errors from this
// function are transient I/O failures and are returned to the caller so that
// the block watermark does not advance past the failing block.
type ReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

type Config struct {
	// ChainID selects the transaction signer for sender recovery.
	ChainID *big.Int

	// TargetContract is the launchpad factory/bonding-curve contract.
	TargetContract common.Address

	// Selectors maps the target contract's method selectors to operations.
	Selectors Table

	// CreationEventTopic is the topic[0] hash of the target contract's
	// token-creation event.
	CreationEventTopic common.Hash

	// Routers lists known secondary routers (e.g. a DEX) with their own
	// selector tables. Transactions to any other address classify as Unknown.
	Routers map[common.Address]Table
}

func (c *Config) Check() error {
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if c.TargetContract == (common.Address{}) {
		return fmt.Errorf("target contract address is required")
	}
	if len(c.Selectors) == 0 {
		return fmt.Errorf("selector table cannot be empty")
	}
	if c.CreationEventTopic == (common.Hash{}) {
		return fmt.Errorf("creation event topic is required")
	}
	return nil
}

type Classifier struct {
	cfg Config

	signer types.Signer

	mtr *metrics.Metrics
}

func New(cfg *Config, mtr *metrics.Metrics) (*Classifier, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	v := &Classifier{
		cfg:    *cfg,
		signer: types.LatestSignerForChainID(cfg.ChainID),
		mtr:    mtr,
	}
	return v, nil
}

// Classify inspects one transaction. Returns a nil event with a nil error
// when the transaction was dropped (reportable-but-non-fatal miss). Returns
// a non-nil error only for transient receipt fetch failures.
func (c *Classifier) Classify(ctx context.Context, tx *types.Transaction, blockNumber uint64, blockTime time.Time, receiptf ReceiptFunc) (*Event, error) {
	ev := &Event{
		Kind:        Unknown,
		BlockNumber: blockNumber,
		TxHash:      tx.Hash(),
		GasLimit:    tx.Gas(),
		Timestamp:   blockTime,
	}
	if gp := tx.GasPrice(); gp != nil {
		ev.GasPriceGwei = decimal.NewFromBigInt(gp, -9)
	}
	if v := tx.Value(); v != nil {
		ev.BNBValue = decimal.NewFromBigInt(v, -18)
	}

	table, ok := c.lookupTable(tx.To())
	if !ok {
		return c.classified(ev), nil
	}

	data := tx.Data()
	if len(data) < 4 {
		return c.classified(ev), nil
	}
	var sel Selector
	copy(sel[:], data[:4])
	op, ok := table[sel]
	if !ok {
		return c.classified(ev), nil
	}

	from, err := types.Sender(c.signer, tx)
	if err != nil {
		// An unrecoverable sender means a malformed signature; degrade.
		slog.Warn("could not recover transaction sender (dropped)", "tx", tx.Hash(), "err", err)
		c.drop()
		return nil, nil
	}
	ev.From = from

	switch op {
	case OpCreate:
		receipt, err := receiptf(ctx, tx.Hash())
		if err != nil {
			return nil, err
		}
		token, ok := c.extractCreatedToken(receipt)
		if !ok {
			slog.Warn("could not extract created token address (dropped)", "tx", tx.Hash(), "block", blockNumber)
			c.drop()
			return nil, nil
		}
		ev.Kind = TokenCreated
		ev.Token = token

	case OpBuy, OpSell:
		token := inputAddress(data)
		receipt, err := receiptf(ctx, tx.Hash())
		if err != nil {
			return nil, err
		}
		if token == (common.Address{}) {
			token = c.transferredToken(receipt)
		}
		if token == (common.Address{}) {
			slog.Warn("could not determine traded token address (dropped)", "tx", tx.Hash(), "block", blockNumber)
			c.drop()
			return nil, nil
		}
		ev.Token = token
		ev.TokenAmount = transferAmount(receipt, token)
		if op == OpBuy {
			ev.Kind = Buy
		} else {
			ev.Kind = Sell
		}
	}
	return c.classified(ev), nil
}

func (c *Classifier) classified(ev *Event) *Event {
	if c.mtr != nil {
		c.mtr.EventsClassified.WithLabelValues(string(ev.Kind)).Inc()
	}
	return ev
}

func (c *Classifier) drop() {
	if c.mtr != nil {
		c.mtr.ClassifyDrops.Inc()
	}
}

// lookupTable matches the destination address against the target contract
// and the known secondary routers. Address comparison is case-insensitive by
// construction since common.Address is a byte array.
func (c *Classifier) lookupTable(to *common.Address) (Table, bool) {
	if to == nil {
		return nil, false
	}
	if *to == c.cfg.TargetContract {
		return c.cfg.Selectors, true
	}
	if table, ok := c.cfg.Routers[*to]; ok {
		return table, true
	}
	return nil, false
}

// extractCreatedToken pulls the created token's address out of the receipt
// logs. The creation event carries the token as its second indexed topic (20
// bytes right-aligned in the 32-byte topic). When the exact event is absent
// it falls back to any target-contract log with a non-zero address in that
// topic position, and finally to the receipt's ContractAddress field.
func (c *Classifier) extractCreatedToken(receipt *types.Receipt) (common.Address, bool) {
	for _, lg := range receipt.Logs {
		if lg.Address != c.cfg.TargetContract {
			continue
		}
		if len(lg.Topics) >= 3 && lg.Topics[0] == c.cfg.CreationEventTopic {
			if addr := topicAddress(lg.Topics[2]); addr != (common.Address{}) {
				return addr, true
			}
		}
	}
	for _, lg := range receipt.Logs {
		if lg.Address != c.cfg.TargetContract || len(lg.Topics) < 3 {
			continue
		}
		if addr := topicAddress(lg.Topics[2]); addr != (common.Address{}) {
			return addr, true
		}
	}
	if receipt.ContractAddress != (common.Address{}) {
		return receipt.ContractAddress, true
	}
	return common.Address{}, false
}

// transferredToken returns the emitting contract of the first ERC20 transfer
// log in the receipt.
func (c *Classifier) transferredToken(receipt *types.Receipt) common.Address {
	for _, lg := range receipt.Logs {
		if len(lg.Topics) >= 3 && lg.Topics[0] == transferTopic {
			return lg.Address
		}
	}
	return common.Address{}
}

func topicAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h[12:])
}

// inputAddress decodes the first ABI argument as an address. Returns the zero
// address when the input is too short.
func inputAddress(data []byte) common.Address {
	if len(data) < 36 {
		return common.Address{}
	}
	return common.BytesToAddress(data[16:36])
}

// transferAmount returns the value of the first transfer log emitted by the
// given token, scaled by the launchpad's fixed 18 decimals. Zero when no
// such log exists.
func transferAmount(receipt *types.Receipt, token common.Address) decimal.Decimal {
	for _, lg := range receipt.Logs {
		if lg.Address != token || len(lg.Topics) < 3 || lg.Topics[0] != transferTopic {
			continue
		}
		if len(lg.Data) < 32 {
			continue
		}
		amount := new(big.Int).SetBytes(lg.Data[:32])
		return decimal.NewFromBigInt(amount, -18)
	}
	return decimal.Zero
}
