// Copyright (c) 2025 BVK Chaitanya

package classify

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	TokenCreated Kind = "TOKEN_CREATED"
	Buy          Kind = "BUY"
	Sell         Kind = "SELL"
	Unknown      Kind = "UNKNOWN"
)

// Event is the classified view of one transaction. Events are produced once
// and never mutated. Token is the zero address iff Kind is Unknown.
type Event struct {
	Kind Kind

	BlockNumber uint64
	TxHash      common.Hash
	From        common.Address
	Token       common.Address

	// TokenAmount is the token quantity moved by a buy/sell, in whole tokens.
	// Zero when no transfer log could be decoded.
	TokenAmount decimal.Decimal

	BNBValue     decimal.Decimal
	GasPriceGwei decimal.Decimal
	GasLimit     uint64

	Timestamp time.Time
}

func (e *Event) String() string {
	return fmt.Sprintf("%s:%s", strings.ToLower(string(e.Kind)), e.TxHash)
}

// Op names the semantic operation behind a method selector.
type Op string

const (
	OpCreate Op = "create"
	OpBuy    Op = "buy"
	OpSell   Op = "sell"
)

// Selector is the leading four bytes of a contract call's input data.
type Selector [4]byte

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

func ParseSelector(str string) (Selector, error) {
	var s Selector
	data, err := hex.DecodeString(strings.TrimPrefix(str, "0x"))
	if err != nil {
		return s, fmt.Errorf("selector %q is not valid hex: %w", str, err)
	}
	if len(data) != 4 {
		return s, fmt.Errorf("selector %q must be exactly 4 bytes", str)
	}
	copy(s[:], data)
	return s, nil
}

// Table maps method selectors to their semantic operation.
type Table map[Selector]Op

func ParseTable(m map[string]string) (Table, error) {
	table := make(Table, len(m))
	for k, v := range m {
		sel, err := ParseSelector(k)
		if err != nil {
			return nil, err
		}
		op := Op(v)
		switch op {
		case OpCreate, OpBuy, OpSell:
		default:
			return nil, fmt.Errorf("unknown operation %q for selector %q", v, k)
		}
		table[sel] = op
	}
	return table, nil
}
