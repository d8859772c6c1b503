// Package storagetest holds behaviour checks shared by every storage backend.
package storagetest

import (
	"context"
	"testing"

	"github.com/pvzzle/ethwallet/internal/storage"

	"github.com/shopspring/decimal"
)

// Run exercises repo against the Repository contract. newRepo must return an
// empty repository; it is called once per subtest.
func Run(t *testing.T, newRepo func(t *testing.T) storage.Repository) {
	t.Run("AppendAndListInOrder", func(t *testing.T) { testAppendAndList(t, newRepo(t)) })
	t.Run("ListIgnoresAddressCase", func(t *testing.T) { testListIgnoresCase(t, newRepo(t)) })
	t.Run("ListUnknownIsEmpty", func(t *testing.T) { testListUnknown(t, newRepo(t)) })
	t.Run("DuplicateHashesKept", func(t *testing.T) { testDuplicateHashes(t, newRepo(t)) })
	t.Run("AdjustOnlyCachedBalances", func(t *testing.T) { testAdjustOnlyCached(t, newRepo(t)) })
	t.Run("NilAmountSkipsAdjust", func(t *testing.T) { testNilAmount(t, newRepo(t)) })
	t.Run("SetBalanceLastWriteWins", func(t *testing.T) { testSetBalance(t, newRepo(t)) })
}

func rec(hash, from, to, amount string) storage.TxRecord {
	return storage.TxRecord{
		Hash:      hash,
		From:      from,
		To:        to,
		Amount:    amount,
		Timestamp: "2026-02-14T10:00:00.000Z",
	}
}

func mustAppend(t *testing.T, repo storage.Repository, tx storage.TxRecord) storage.TxRecord {
	t.Helper()
	var amount *decimal.Decimal
	if d, err := decimal.NewFromString(tx.Amount); err == nil {
		amount = &d
	}
	got, err := repo.AppendTx(context.Background(), tx, amount)
	if err != nil {
		t.Fatalf("AppendTx(%s): %v", tx.Hash, err)
	}
	return got
}

func mustList(t *testing.T, repo storage.Repository, address string) []storage.TxRecord {
	t.Helper()
	got, err := repo.ListByAddress(context.Background(), address)
	if err != nil {
		t.Fatalf("ListByAddress(%s): %v", address, err)
	}
	return got
}

func hashes(txs []storage.TxRecord) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.Hash)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testAppendAndList(t *testing.T, repo storage.Repository) {
	stored := mustAppend(t, repo, rec("0xa1", "0x1", "0x2", "1.5"))
	if stored != rec("0xa1", "0x1", "0x2", "1.5") {
		t.Fatalf("stored record differs: %+v", stored)
	}
	mustAppend(t, repo, rec("0xb1", "0x3", "0x4", "1"))
	mustAppend(t, repo, rec("0xa2", "0x2", "0x1", "2"))
	mustAppend(t, repo, rec("0xb2", "0x4", "0x3", "1"))
	mustAppend(t, repo, rec("0xa3", "0x5", "0x1", "3"))

	if got := hashes(mustList(t, repo, "0x1")); !equal(got, []string{"0xa1", "0xa2", "0xa3"}) {
		t.Fatalf("expected 0x1 history [0xa1 0xa2 0xa3], got=%v", got)
	}
	if got := hashes(mustList(t, repo, "0x2")); !equal(got, []string{"0xa1", "0xa2"}) {
		t.Fatalf("expected 0x2 history [0xa1 0xa2], got=%v", got)
	}
	if got := hashes(mustList(t, repo, "0x3")); !equal(got, []string{"0xb1", "0xb2"}) {
		t.Fatalf("expected 0x3 history [0xb1 0xb2], got=%v", got)
	}

	first := mustList(t, repo, "0x2")[0]
	if first != stored {
		t.Fatalf("expected listed record to equal stored one, got=%+v", first)
	}
}

func testListIgnoresCase(t *testing.T, repo storage.Repository) {
	mustAppend(t, repo, rec("0xc1", "0xAbCdEf0000000000000000000000000000000001", "0x2", "1"))

	got := mustList(t, repo, "0xabcdef0000000000000000000000000000000001")
	if len(got) != 1 {
		t.Fatalf("expected case-insensitive match, got=%v", hashes(got))
	}
}

func testListUnknown(t *testing.T, repo storage.Repository) {
	mustAppend(t, repo, rec("0xd1", "0x1", "0x2", "1"))

	got := mustList(t, repo, "0x9")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got=%#v", got)
	}
}

func testDuplicateHashes(t *testing.T, repo storage.Repository) {
	mustAppend(t, repo, rec("0xdup", "0x1", "0x2", "1"))
	mustAppend(t, repo, rec("0xdup", "0x1", "0x2", "1"))

	if got := mustList(t, repo, "0x1"); len(got) != 2 {
		t.Fatalf("expected duplicate records to be kept, got=%d", len(got))
	}
}

func testAdjustOnlyCached(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	if err := repo.SetBalance(ctx, "0x1", decimal.RequireFromString("10")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	mustAppend(t, repo, rec("0xe1", "0x1", "0x2", "1.5"))

	bal, ok, err := repo.Balance(ctx, "0x1")
	if err != nil || !ok {
		t.Fatalf("expected cached balance for 0x1, ok=%v err=%v", ok, err)
	}
	if !bal.Equal(decimal.RequireFromString("8.5")) {
		t.Fatalf("expected 8.5, got=%s", bal)
	}

	if _, ok, err := repo.Balance(ctx, "0x2"); err != nil || ok {
		t.Fatalf("expected no cached balance for 0x2, ok=%v err=%v", ok, err)
	}

	if err := repo.SetBalance(ctx, "0x2", decimal.RequireFromString("1")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	mustAppend(t, repo, rec("0xe2", "0x1", "0x2", "0.5"))

	bal, _, _ = repo.Balance(ctx, "0x2")
	if !bal.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("expected 1.5 for receiver, got=%s", bal)
	}
	bal, _, _ = repo.Balance(ctx, "0x1")
	if !bal.Equal(decimal.RequireFromString("8")) {
		t.Fatalf("expected 8 for sender, got=%s", bal)
	}
}

func testNilAmount(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	if err := repo.SetBalance(ctx, "0x1", decimal.RequireFromString("3")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	if _, err := repo.AppendTx(ctx, rec("0xf1", "0x1", "0x2", "lots"), nil); err != nil {
		t.Fatalf("AppendTx: %v", err)
	}

	bal, _, _ := repo.Balance(ctx, "0x1")
	if !bal.Equal(decimal.RequireFromString("3")) {
		t.Fatalf("expected balance untouched, got=%s", bal)
	}
	if got := mustList(t, repo, "0x1"); len(got) != 1 || got[0].Amount != "lots" {
		t.Fatalf("expected record stored as sent, got=%+v", got)
	}
}

func testSetBalance(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	for _, v := range []string{"1.25", "0.75"} {
		if err := repo.SetBalance(ctx, "0x1", decimal.RequireFromString(v)); err != nil {
			t.Fatalf("SetBalance(%s): %v", v, err)
		}
	}

	bal, ok, err := repo.Balance(ctx, "0x1")
	if err != nil || !ok {
		t.Fatalf("expected balance, ok=%v err=%v", ok, err)
	}
	if !bal.Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("expected last write 0.75, got=%s", bal)
	}
}
