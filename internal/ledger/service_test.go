package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/pvzzle/ethwallet/internal/ethrpc"
	"github.com/pvzzle/ethwallet/internal/storage"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type transferCall struct {
	from, to string
	value    *big.Int
}

type stubProvider struct {
	mu sync.Mutex

	balances   []*big.Int
	balanceErr error

	gas    uint64
	gasErr error
	calls  []transferCall

	price    *big.Int
	priceErr error

	receipt    *types.Receipt
	receiptErr error
	pending    bool
	txErr      error
}

func (p *stubProvider) Balance(ctx context.Context, address string) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.balanceErr != nil {
		return nil, p.balanceErr
	}
	b := p.balances[0]
	if len(p.balances) > 1 {
		p.balances = p.balances[1:]
	}
	return b, nil
}

func (p *stubProvider) EstimateTransfer(ctx context.Context, from, to string, value *big.Int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, transferCall{from: from, to: to, value: value})
	return p.gas, p.gasErr
}

func (p *stubProvider) GasPrice(ctx context.Context) (*big.Int, error) {
	return p.price, p.priceErr
}

func (p *stubProvider) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.receipt, p.receiptErr
}

func (p *stubProvider) TransactionPending(ctx context.Context, hash common.Hash) (bool, error) {
	return p.pending, p.txErr
}

type recordingPublisher struct {
	got []storage.TxRecord
}

func (p *recordingPublisher) PublishTx(tx storage.TxRecord) { p.got = append(p.got, tx) }

func newTestService(p *stubProvider) (*Service, *storage.Memory) {
	repo := storage.NewMemory()
	s := NewService(repo, p, Config{RPCTimeout: time.Second})
	s.now = func() time.Time { return time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC) }
	return s, repo
}

func ethWei(eth string) *big.Int {
	return decimal.RequireFromString(eth).Shift(18).BigInt()
}

func TestRecordTransaction_VisibleForBothParties(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(&stubProvider{})

	got, err := s.RecordTransaction(ctx, RecordInput{Hash: "0xabc", From: "0x1", To: "0x2", Amount: "1.5"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Timestamp != "2026-02-14T10:00:00.000Z" {
		t.Fatalf("expected generated timestamp, got=%q", got.Timestamp)
	}

	for _, addr := range []string{"0x1", "0x2"} {
		h, err := s.GetHistory(ctx, addr)
		if err != nil {
			t.Fatalf("GetHistory(%s): %v", addr, err)
		}
		if len(h) != 1 || h[0] != got {
			t.Fatalf("expected history of %s to hold %+v, got=%+v", addr, got, h)
		}
	}
}

func TestRecordTransaction_KeepsGivenTimestamp(t *testing.T) {
	s, _ := newTestService(&stubProvider{})

	got, err := s.RecordTransaction(context.Background(), RecordInput{
		Hash: "0xabc", From: "0x1", To: "0x2", Amount: "1", Timestamp: "2025-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Timestamp != "2025-01-01T00:00:00Z" {
		t.Fatalf("expected timestamp kept, got=%q", got.Timestamp)
	}
}

func TestRecordTransaction_MissingFields(t *testing.T) {
	ctx := context.Background()
	full := RecordInput{Hash: "0xabc", From: "0x1", To: "0x2", Amount: "1"}

	cases := map[string]func(in *RecordInput){
		"hash":   func(in *RecordInput) { in.Hash = "" },
		"from":   func(in *RecordInput) { in.From = "" },
		"to":     func(in *RecordInput) { in.To = "  " },
		"amount": func(in *RecordInput) { in.Amount = "" },
	}

	for name, mutate := range cases {
		s, repo := newTestService(&stubProvider{})
		in := full
		mutate(&in)

		_, err := s.RecordTransaction(ctx, in)
		if KindOf(err) != KindValidation {
			t.Fatalf("%s: expected validation error, got=%v", name, err)
		}

		for _, addr := range []string{"0x1", "0x2"} {
			h, _ := repo.ListByAddress(ctx, addr)
			if len(h) != 0 {
				t.Fatalf("%s: expected no stored records, got=%v", name, h)
			}
		}
	}
}

func TestRecordTransaction_BalanceMirror(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{balances: []*big.Int{ethWei("10")}}
	s, repo := newTestService(p)

	if _, err := s.GetBalance(ctx, addrA); err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if _, err := s.RecordTransaction(ctx, RecordInput{Hash: "0x1", From: addrA, To: addrB, Amount: "2.5"}); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	bal, ok, _ := repo.Balance(ctx, addrA)
	if !ok || !bal.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("expected sender balance 7.5, got=%s ok=%v", bal, ok)
	}
	if _, ok, _ := repo.Balance(ctx, addrB); ok {
		t.Fatal("expected receiver without prior balance to stay uncached")
	}
}

func TestRecordTransaction_NonDecimalAmountStored(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{balances: []*big.Int{ethWei("1")}}
	s, repo := newTestService(p)

	if _, err := s.GetBalance(ctx, addrA); err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if _, err := s.RecordTransaction(ctx, RecordInput{Hash: "0x1", From: addrA, To: addrB, Amount: "one"}); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	bal, _, _ := repo.Balance(ctx, addrA)
	if !bal.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected balance untouched, got=%s", bal)
	}
}

func TestRecordTransaction_OutOfRangeAmountStoredWithoutAdjust(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{balances: []*big.Int{ethWei("1.000000000000000001")}}
	s, repo := newTestService(p)

	if _, err := s.GetBalance(ctx, addrA); err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	for _, amount := range []string{"1e9000000", "1e-9000000", "1e2000000000"} {
		rec, err := s.RecordTransaction(ctx, RecordInput{Hash: "0x1", From: addrA, To: addrB, Amount: amount})
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", amount, err)
		}
		if rec.Amount != amount {
			t.Fatalf("expected amount stored as sent, got=%q", rec.Amount)
		}
	}

	bal, _, _ := repo.Balance(ctx, addrA)
	if !bal.Equal(decimal.RequireFromString("1.000000000000000001")) {
		t.Fatalf("expected balance untouched, got=%s", bal)
	}
	if h, _ := repo.ListByAddress(ctx, addrA); len(h) != 3 {
		t.Fatalf("expected 3 stored records, got=%d", len(h))
	}
}

func TestEstimateGas_HugeValueRejected(t *testing.T) {
	p := &stubProvider{gas: 21000, price: big.NewInt(1)}
	s, _ := newTestService(p)

	_, err := s.EstimateGas(context.Background(), EstimateInput{From: "0x1", To: "0x2", Value: "1e9000000"})
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got=%v", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("expected no provider call, got=%d", len(p.calls))
	}
}

func TestRegisterWallet_SeedsZeroBalance(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestService(&stubProvider{})

	if err := s.RegisterWallet(ctx, addrA); err != nil {
		t.Fatalf("RegisterWallet: %v", err)
	}
	if _, err := s.RecordTransaction(ctx, RecordInput{Hash: "0x1", From: addrB, To: addrA, Amount: "0.5"}); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	bal, ok, _ := repo.Balance(ctx, addrA)
	if !ok || !bal.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("expected mirrored balance 0.5, got=%s ok=%v", bal, ok)
	}
}

func TestRecordTransaction_Publishes(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewService(storage.NewMemory(), &stubProvider{}, Config{Publisher: pub})

	rec, err := s.RecordTransaction(context.Background(), RecordInput{Hash: "0x1", From: "0x1", To: "0x2", Amount: "1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0] != rec {
		t.Fatalf("expected one published record, got=%v", pub.got)
	}
}

func TestGetBalance_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{balances: []*big.Int{ethWei("1.5"), ethWei("0.25")}}
	s, repo := newTestService(p)

	first, err := s.GetBalance(ctx, addrA)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if first.Balance != "1.5" || first.Unit != "ETH" || first.Address != addrA {
		t.Fatalf("unexpected balance: %+v", first)
	}

	second, err := s.GetBalance(ctx, addrA)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if second.Balance != "0.25" {
		t.Fatalf("expected 0.25, got=%s", second.Balance)
	}

	bal, _, _ := repo.Balance(ctx, addrA)
	if !bal.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("expected cache 0.25, got=%s", bal)
	}
}

func TestGetBalance_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestService(&stubProvider{balanceErr: errors.New("dial tcp: connection refused")})

	_, err := s.GetBalance(ctx, addrA)
	if KindOf(err) != KindProvider {
		t.Fatalf("expected provider error, got=%v", err)
	}
	if _, ok, _ := repo.Balance(ctx, addrA); ok {
		t.Fatal("expected no cache write on failure")
	}

	s, _ = newTestService(&stubProvider{balanceErr: ethrpc.ErrInvalidAddress})
	_, err = s.GetBalance(ctx, "not-an-address")
	if KindOf(err) != KindProvider {
		t.Fatalf("expected provider error for bad address, got=%v", err)
	}
}

func TestEstimateGas(t *testing.T) {
	p := &stubProvider{gas: 21000, price: big.NewInt(10_000_000_000)}
	s, _ := newTestService(p)

	got, err := s.EstimateGas(context.Background(), EstimateInput{From: "0x1", To: "0x2", Value: "0.01"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	want := GasEstimate{GasEstimate: "21000", GasPrice: "10.0", EstimatedCost: "0.00021"}
	if got != want {
		t.Fatalf("expected %+v, got=%+v", want, got)
	}

	if len(p.calls) != 1 {
		t.Fatalf("expected one estimate call, got=%d", len(p.calls))
	}
	call := p.calls[0]
	if call.value.Cmp(ethWei("0.01")) != 0 {
		t.Fatalf("expected value 0.01 ETH in wei, got=%v", call.value)
	}
	if call.from != "0x1" || call.to != "0x2" {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestEstimateGas_Failures(t *testing.T) {
	ctx := context.Background()

	s, _ := newTestService(&stubProvider{gas: 21000, price: big.NewInt(1)})
	if _, err := s.EstimateGas(ctx, EstimateInput{From: addrA, To: addrB}); KindOf(err) != KindValidation {
		t.Fatalf("expected validation error for missing value, got=%v", err)
	}
	if _, err := s.EstimateGas(ctx, EstimateInput{From: addrA, To: addrB, Value: "-1"}); KindOf(err) != KindValidation {
		t.Fatalf("expected validation error for negative value, got=%v", err)
	}

	s, _ = newTestService(&stubProvider{gasErr: ethrpc.ErrInvalidAddress})
	if _, err := s.EstimateGas(ctx, EstimateInput{From: "bogus", To: addrB, Value: "1"}); KindOf(err) != KindProvider {
		t.Fatalf("expected provider error for bad address, got=%v", err)
	}

	s, _ = newTestService(&stubProvider{gasErr: errors.New("insufficient funds for transfer")})
	if _, err := s.EstimateGas(ctx, EstimateInput{From: addrA, To: addrB, Value: "1"}); KindOf(err) != KindProvider {
		t.Fatalf("expected provider error, got=%v", err)
	}

	s, _ = newTestService(&stubProvider{gas: 21000, priceErr: errors.New("timeout")})
	if _, err := s.EstimateGas(ctx, EstimateInput{From: addrA, To: addrB, Value: "1"}); KindOf(err) != KindProvider {
		t.Fatalf("expected provider error for gas price, got=%v", err)
	}
}

func TestGetReceipt(t *testing.T) {
	ctx := context.Background()
	hash := "0x" + "11111111111111111111111111111111" + "11111111111111111111111111111111"

	s, _ := newTestService(&stubProvider{receipt: &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(123),
		GasUsed:     21000,
	}})
	got, err := s.GetReceipt(ctx, hash)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Status != ReceiptSuccess || got.BlockNumber == nil || *got.BlockNumber != 123 || *got.GasUsed != 21000 {
		t.Fatalf("unexpected receipt: %+v", got)
	}

	s, _ = newTestService(&stubProvider{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}})
	if got, _ := s.GetReceipt(ctx, hash); got.Status != ReceiptFailed {
		t.Fatalf("expected failed, got=%+v", got)
	}

	s, _ = newTestService(&stubProvider{receiptErr: ethereum.NotFound, pending: true})
	if got, _ := s.GetReceipt(ctx, hash); got.Status != ReceiptPending {
		t.Fatalf("expected pending, got=%+v", got)
	}

	s, _ = newTestService(&stubProvider{receiptErr: ethereum.NotFound, txErr: ethereum.NotFound})
	if _, err := s.GetReceipt(ctx, hash); KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got=%v", err)
	}

	if _, err := s.GetReceipt(ctx, "0xabc"); KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got=%v", err)
	}
}
