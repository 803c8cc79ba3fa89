// Copyright (c) 2025 BVK Chaitanya

package scanner

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bvk/snipebot/classify"
	"github.com/bvk/snipebot/gobs"
	"github.com/bvk/snipebot/kvutil"
	"github.com/bvk/snipebot/metrics"
	"github.com/bvk/snipebot/notify"
	"github.com/bvk/snipebot/oracle"
	"github.com/bvk/snipebot/pattern"
	"github.com/bvk/snipebot/safety"
	"github.com/bvk/snipebot/tracker"
	"github.com/bvk/snipebot/trade"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
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

	createSelector = classify.Selector{0x51, 0x9e, 0xbb, 0x10}
	buySelector    = classify.Selector{0xab, 0xcd, 0x12, 0x34}
	sellSelector   = classify.Selector{0xcd, 0xef, 0x56, 0x78}
)

type fakeReader struct {
	latest   uint64
	blocks   map[uint64]*types.Block
	receipts map[common.Hash]*types.Receipt

	// failures holds remaining forced fetch failures per block.
	failures map[uint64]int
}

func (f *fakeReader) BlockNumber(ctx context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeReader) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	if f.failures[number] > 0 {
		f.failures[number]--
		return nil, fmt.Errorf("block %d is temporarily unavailable", number)
	}
	block, ok := f.blocks[number]
	if !ok {
		return nil, fmt.Errorf("block %d is not known", number)
	}
	return block, nil
}

func (f *fakeReader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if r, ok := f.receipts[txHash]; ok {
		return r, nil
	}
	return &types.Receipt{}, nil
}

type fakeOracle struct{}

func (fakeOracle) GetCurrentPrice(ctx context.Context, token common.Address) (*oracle.Price, error) {
	return &oracle.Price{
		PriceBNB:     decimal.RequireFromString("0.000001"),
		PriceUSD:     decimal.RequireFromString("0.0006"),
		HasLiquidity: true,
		At:           time.Now(),
	}, nil
}

type fakeExecutor struct {
	buys  []decimal.Decimal
	sells []decimal.Decimal
}

func (f *fakeExecutor) Buy(ctx context.Context, token common.Address, bnbAmount decimal.Decimal, ownerID string) (*trade.Result, error) {
	f.buys = append(f.buys, bnbAmount)
	return &trade.Result{Success: true, TxHash: "0xbuy", TokenAmount: decimal.NewFromInt(100000)}, nil
}

func (f *fakeExecutor) Sell(ctx context.Context, token common.Address, percentage decimal.Decimal, ownerID string) (*trade.Result, error) {
	f.sells = append(f.sells, percentage)
	return &trade.Result{Success: true, TxHash: "0xsell"}, nil
}

func emptyBlock(number uint64) *types.Block {
	header := &types.Header{
		Number: big.NewInt(int64(number)),
		Time:   uint64(time.Now().Unix()),
	}
	return types.NewBlockWithHeader(header)
}

func txBlock(number uint64, txs ...*types.Transaction) *types.Block {
	header := &types.Header{
		Number: big.NewInt(int64(number)),
		Time:   uint64(time.Now().Unix()),
	}
	return types.NewBlockWithHeader(header).WithBody(txs, nil)
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

func writePatternsFile(t *testing.T) string {
	t.Helper()
	fpath := filepath.Join(t.TempDir(), "patterns.json")
	data := `[
  {
    "id": "p1",
    "name": "standard launch",
    "enabled": true,
    "priority": 1,
    "gasPriceRange": {"min": "0.1", "max": "0.12"},
    "gasLimitRange": {"min": "1513000", "max": "1515000"},
    "valueFilter": {"min": "0.01", "max": "1.0"},
    "tradingParams": {"buyAmount": "0.05", "holdSeconds": 20, "maxSlippagePct": 10, "stopLossPct": 30, "takeProfitPct": 50},
    "requiredConfirmations": 1
  }
]`
	if err := os.WriteFile(fpath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return fpath
}

type testRig struct {
	db       kv.Database
	reader   *fakeReader
	executor *fakeExecutor
	tracker  *tracker.Tracker
	scanner  *Scanner
}

func newTestRig(t *testing.T, targets []*CopyTarget) *testRig {
	t.Helper()
	ctx := context.Background()

	db := kvmemdb.New()
	reader := &fakeReader{
		blocks:   make(map[uint64]*types.Block),
		receipts: make(map[common.Hash]*types.Receipt),
		failures: make(map[uint64]int),
	}
	classifier, err := classify.New(&classify.Config{
		ChainID:        testChainID,
		TargetContract: testTarget,
		Selectors: classify.Table{
			createSelector: classify.OpCreate,
			buySelector:    classify.OpBuy,
			sellSelector:   classify.OpSell,
		},
		CreationEventTopic: testCreation,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	store, err := pattern.NewStore(writePatternsFile(t))
	if err != nil {
		t.Fatal(err)
	}
	governor, err := safety.New(safety.Limits{MaxTradesPerHour: 100, MaxTradesPerDay: 1000})
	if err != nil {
		t.Fatal(err)
	}
	executor := new(fakeExecutor)
	mtr := metrics.New()
	tr, err := tracker.New(ctx, db, fakeOracle{}, executor, governor, notify.LogNotifier{}, mtr, nil)
	if err != nil {
		t.Fatal(err)
	}
	opts := &Options{
		MaxFetchRetries:    3,
		FetchRetryInterval: time.Millisecond,
	}
	s, err := New(db, reader, classifier, store, governor, executor, tr, fakeOracle{}, notify.LogNotifier{}, mtr, targets, opts)
	if err != nil {
		t.Fatal(err)
	}
	return &testRig{db: db, reader: reader, executor: executor, tracker: tr, scanner: s}
}

func (r *testRig) watermark(t *testing.T) uint64 {
	t.Helper()
	state, err := kvutil.GetDB[gobs.ScannerState](context.Background(), r.db, stateKey)
	if err != nil {
		t.Fatal(err)
	}
	return state.LastProcessedBlock
}

func TestWatermarkAdvance(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)

	rig.reader.latest = 3
	for n := uint64(1); n <= 3; n++ {
		rig.reader.blocks[n] = emptyBlock(n)
	}
	rig.scanner.lastProcessed.Store(0)

	if err := rig.scanner.scan(ctx); err != nil {
		t.Fatal(err)
	}
	if got := rig.watermark(t); got != 3 {
		t.Fatalf("want watermark 3, got %d", got)
	}
}

func TestWatermarkConcurrentReads(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)

	rig.reader.latest = 50
	for n := uint64(1); n <= 50; n++ {
		rig.reader.blocks[n] = emptyBlock(n)
	}
	rig.scanner.lastProcessed.Store(0)

	// Status reads run concurrently with the scan loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if got := rig.scanner.LastProcessedBlock(); got > 50 {
				t.Errorf("watermark read beyond the tip: %d", got)
				return
			}
		}
	}()

	if err := rig.scanner.scan(ctx); err != nil {
		t.Fatal(err)
	}
	<-done
	if got := rig.scanner.LastProcessedBlock(); got != 50 {
		t.Fatalf("want watermark 50, got %d", got)
	}
}

func TestWatermarkStopsAtFailingBlock(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)

	rig.reader.latest = 3
	for n := uint64(1); n <= 3; n++ {
		rig.reader.blocks[n] = emptyBlock(n)
	}
	rig.reader.failures[2] = 100
	rig.scanner.lastProcessed.Store(0)

	if err := rig.scanner.scan(ctx); err == nil {
		t.Fatalf("scan must fail when a block stays unavailable")
	}
	if got := rig.watermark(t); got != 1 {
		t.Fatalf("watermark must stop before the failing block, got %d", got)
	}
}

func TestFailingBlockRetried(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)

	rig.reader.latest = 3
	for n := uint64(1); n <= 3; n++ {
		rig.reader.blocks[n] = emptyBlock(n)
	}
	rig.reader.failures[2] = 2
	rig.scanner.lastProcessed.Store(0)

	if err := rig.scanner.scan(ctx); err != nil {
		t.Fatal(err)
	}
	if got := rig.watermark(t); got != 3 {
		t.Fatalf("want watermark 3 after retries, got %d", got)
	}
}

func TestPatternBuyOpensPosition(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)

	tx := signedTx(t, &testTarget, big.NewInt(0), 1514218, big.NewInt(11e7), createSelector[:])
	rig.reader.receipts[tx.Hash()] = &types.Receipt{
		Logs: []*types.Log{{
			Address: testTarget,
			Topics: []common.Hash{
				testCreation,
				common.Hash{},
				common.BytesToHash(testToken.Bytes()),
			},
		}},
	}
	rig.reader.latest = 1
	rig.reader.blocks[1] = txBlock(1, tx)
	rig.scanner.lastProcessed.Store(0)

	if err := rig.scanner.scan(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rig.executor.buys) != 1 {
		t.Fatalf("want one buy, got %d", len(rig.executor.buys))
	}
	if want := decimal.RequireFromString("0.05"); !rig.executor.buys[0].Equal(want) {
		t.Fatalf("want buy amount %s, got %s", want, rig.executor.buys[0])
	}
	positions := rig.tracker.Positions()
	if len(positions) != 1 {
		t.Fatalf("want one tracked position, got %d", len(positions))
	}
	if positions[0].TokenAddress != testToken.Hex() {
		t.Fatalf("want token %s, got %s", testToken.Hex(), positions[0].TokenAddress)
	}
}

func TestUnmatchedPatternSkipsBuy(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)

	// Gas limit is outside the pattern range.
	tx := signedTx(t, &testTarget, big.NewInt(0), 2271546, big.NewInt(11e7), createSelector[:])
	rig.reader.receipts[tx.Hash()] = &types.Receipt{
		Logs: []*types.Log{{
			Address: testTarget,
			Topics: []common.Hash{
				testCreation,
				common.Hash{},
				common.BytesToHash(testToken.Bytes()),
			},
		}},
	}
	rig.reader.latest = 1
	rig.reader.blocks[1] = txBlock(1, tx)
	rig.scanner.lastProcessed.Store(0)

	if err := rig.scanner.scan(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rig.executor.buys) != 0 {
		t.Fatalf("want no buys, got %d", len(rig.executor.buys))
	}
}

func TestCopyBuy(t *testing.T) {
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(testChainID), &types.LegacyTx{
		Nonce:    0,
		To:       &testTarget,
		Value:    big.NewInt(2e17), // 0.2 BNB
		Gas:      500000,
		GasPrice: big.NewInt(1e9),
		Data:     append(buySelector[:], common.LeftPadBytes(testToken.Bytes(), 32)...),
	})
	if err != nil {
		t.Fatal(err)
	}
	target, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
	if err != nil {
		t.Fatal(err)
	}

	rig := newTestRig(t, []*CopyTarget{{
		Wallet:  target,
		Ratio:   decimal.RequireFromString("0.5"),
		OwnerID: "copier-1",
	}})
	rig.reader.latest = 1
	rig.reader.blocks[1] = txBlock(1, tx)
	rig.scanner.lastProcessed.Store(0)

	if err := rig.scanner.scan(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rig.executor.buys) != 1 {
		t.Fatalf("want one copied buy, got %d", len(rig.executor.buys))
	}
	if want := decimal.RequireFromString("0.1"); !rig.executor.buys[0].Equal(want) {
		t.Fatalf("want copied amount %s, got %s", want, rig.executor.buys[0])
	}
	positions := rig.tracker.Positions()
	if len(positions) != 1 || positions[0].CopiedFrom != target.Hex() {
		t.Fatalf("copied position must record the target wallet")
	}
}
