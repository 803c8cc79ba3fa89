// Copyright (c) 2025 BVK Chaitanya

package classify

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	testChainID  = big.NewInt(56)
	testTarget   = common.HexToAddress("0x5c952063c7fc8610ffdb798152d69f0b9550762b")
	testCreation = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	testToken    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	createSelector = Selector{0x51, 0x9e, 0xbb, 0x10}
	buySelector    = Selector{0xab, 0xcd, 0x12, 0x34}
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	cfg := &Config{
		ChainID:        testChainID,
		TargetContract: testTarget,
		Selectors: Table{
			createSelector: OpCreate,
			buySelector:    OpBuy,
		},
		CreationEventTopic: testCreation,
	}
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func signedTx(t *testing.T, to *common.Address, value *big.Int, gas uint64, gasPrice *big.Int, data []byte) *types.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(testChainID), &types.LegacyTx{
		Nonce:    0,
		To:       to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func noReceipt(ctx context.Context, h common.Hash) (*types.Receipt, error) {
	return &types.Receipt{}, nil
}

func TestClassifyUnknown(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t)

	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	tests := []*types.Transaction{
		// Wrong destination.
		signedTx(t, &other, big.NewInt(1), 21000, big.NewInt(1e9), createSelector[:]),
		// Input too short for a selector.
		signedTx(t, &testTarget, big.NewInt(1), 21000, big.NewInt(1e9), []byte{0x51}),
		// Selector not in the table.
		signedTx(t, &testTarget, big.NewInt(1), 21000, big.NewInt(1e9), []byte{0xde, 0xad, 0xbe, 0xef}),
	}
	for i, tx := range tests {
		ev, err := c.Classify(ctx, tx, 100, time.Now(), noReceipt)
		if err != nil {
			t.Fatalf("tx %d: %v", i, err)
		}
		if ev == nil || ev.Kind != Unknown {
			t.Fatalf("tx %d: want Unknown, got %v", i, ev)
		}
	}
}

func TestClassifyTokenCreated(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t)

	tx := signedTx(t, &testTarget, big.NewInt(0), 1514218, big.NewInt(11e7), createSelector[:])
	receiptf := func(ctx context.Context, h common.Hash) (*types.Receipt, error) {
		return &types.Receipt{
			Logs: []*types.Log{{
				Address: testTarget,
				Topics: []common.Hash{
					testCreation,
					common.Hash{}, // creator
					common.BytesToHash(testToken.Bytes()),
				},
			}},
		}, nil
	}

	ev, err := c.Classify(ctx, tx, 100, time.Now(), receiptf)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != TokenCreated {
		t.Fatalf("want TokenCreated, got %v", ev.Kind)
	}
	if ev.Token != testToken {
		t.Fatalf("want token %s, got %s", testToken, ev.Token)
	}
	if want := decimal.NewFromFloat(0.11); !ev.GasPriceGwei.Equal(want) {
		t.Fatalf("want gas price %s gwei, got %s", want, ev.GasPriceGwei)
	}
	if ev.GasLimit != 1514218 {
		t.Fatalf("want gas limit 1514218, got %d", ev.GasLimit)
	}
}

func TestCreatedTokenFallbacks(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t)
	tx := signedTx(t, &testTarget, big.NewInt(0), 1514218, big.NewInt(11e7), createSelector[:])

	// No exact creation event; any target-contract log with a non-zero
	// address in the token topic position must do.
	receiptf := func(ctx context.Context, h common.Hash) (*types.Receipt, error) {
		return &types.Receipt{
			Logs: []*types.Log{{
				Address: testTarget,
				Topics: []common.Hash{
					common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222"),
					common.Hash{},
					common.BytesToHash(testToken.Bytes()),
				},
			}},
		}, nil
	}
	ev, err := c.Classify(ctx, tx, 100, time.Now(), receiptf)
	if err != nil {
		t.Fatal(err)
	}
	if ev == nil || ev.Token != testToken {
		t.Fatalf("topic fallback failed: %v", ev)
	}

	// No usable logs at all; the receipt's ContractAddress is the last
	// resort.
	receiptf = func(ctx context.Context, h common.Hash) (*types.Receipt, error) {
		return &types.Receipt{ContractAddress: testToken}, nil
	}
	ev, err = c.Classify(ctx, tx, 100, time.Now(), receiptf)
	if err != nil {
		t.Fatal(err)
	}
	if ev == nil || ev.Token != testToken {
		t.Fatalf("contract-address fallback failed: %v", ev)
	}

	// Nothing extractable drops the event without an error.
	ev, err = c.Classify(ctx, tx, 100, time.Now(), noReceipt)
	if err != nil {
		t.Fatal(err)
	}
	if ev != nil {
		t.Fatalf("want dropped event, got %v", ev)
	}
}

func TestClassifyBuy(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t)

	data := append([]byte{}, buySelector[:]...)
	data = append(data, common.LeftPadBytes(testToken.Bytes(), 32)...)
	value := new(big.Int).Mul(big.NewInt(3434), big.NewInt(1e14)) // 0.3434 BNB
	tx := signedTx(t, &testTarget, value, 2271546, big.NewInt(11e7), data)

	amount := new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
	receiptf := func(ctx context.Context, h common.Hash) (*types.Receipt, error) {
		return &types.Receipt{
			Logs: []*types.Log{{
				Address: testToken,
				Topics:  []common.Hash{transferTopic, common.Hash{}, common.Hash{}},
				Data:    common.LeftPadBytes(amount.Bytes(), 32),
			}},
		}, nil
	}

	ev, err := c.Classify(ctx, tx, 200, time.Now(), receiptf)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != Buy {
		t.Fatalf("want Buy, got %v", ev.Kind)
	}
	if ev.Token != testToken {
		t.Fatalf("want token %s, got %s", testToken, ev.Token)
	}
	if want := decimal.NewFromFloat(0.3434); !ev.BNBValue.Equal(want) {
		t.Fatalf("want value %s, got %s", want, ev.BNBValue)
	}
	if want := decimal.NewFromInt(1000); !ev.TokenAmount.Equal(want) {
		t.Fatalf("want token amount %s, got %s", want, ev.TokenAmount)
	}
}

func TestReceiptErrorPropagates(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t)
	tx := signedTx(t, &testTarget, big.NewInt(0), 1514218, big.NewInt(11e7), createSelector[:])

	receiptf := func(ctx context.Context, h common.Hash) (*types.Receipt, error) {
		return nil, context.DeadlineExceeded
	}
	if _, err := c.Classify(ctx, tx, 100, time.Now(), receiptf); err == nil {
		t.Fatalf("receipt fetch errors must propagate to the scanner")
	}
}
