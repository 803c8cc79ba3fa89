// Copyright (c) 2025 BVK Chaitanya

// Package gobs holds the gob-encoded state types persisted in the snipebot
// database. Fields must stay backward compatible; add new fields instead of
// renaming or retyping existing ones.
package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionState is saved under "/positions/<uid>" for every tracked
// position. Addresses are stored as 0x-prefixed hex strings so that the gob
// schema does not depend on go-ethereum types.
type PositionState struct {
	UID string

	TokenAddress  string
	OwnerID       string
	WalletAddress string

	// CopiedFrom holds the tracked target wallet in copy-trading mode. Empty
	// for pattern and manual buys.
	CopiedFrom string

	BuyPriceBNB decimal.Decimal
	BuyPriceUSD decimal.Decimal
	BNBSpent    decimal.Decimal
	TokenAmount decimal.Decimal
	BuyTime     time.Time

	CurrentPriceBNB decimal.Decimal
	CurrentPriceUSD decimal.Decimal
	PriceChangePct  float64
	MaxPriceBNB     decimal.Decimal
	MaxChangePct    float64
	LastUpdated     time.Time

	State              string
	PartialTriggerDone bool
}

// ScannerState is saved under "/scanner/state" and records the block
// watermark. Scanning resumes just above LastProcessedBlock after a restart.
type ScannerState struct {
	LastProcessedBlock uint64
	UpdatedAt          time.Time
}

// TelegramState is saved under "/telegram/<botname>/state".
type TelegramState struct {
	UserChatIDMap map[string]int64
}
