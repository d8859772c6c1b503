package tg

import (
	"fmt"
	"strings"

	"github.com/pvzzle/ethwallet/internal/ledger"
	"github.com/pvzzle/ethwallet/internal/storage"
)

const historyLimit = 10

func FormatTxNotification(tx storage.TxRecord) string {
	return fmt.Sprintf(
		"💸 New transaction\n\nHash: %s\nFrom: %s\nTo: %s\nAmount: %s ETH\nTime: %s",
		tx.Hash, tx.From, tx.To, tx.Amount, tx.Timestamp,
	)
}

func FormatBalance(b ledger.Balance) string {
	return fmt.Sprintf("💰 %s\n%s %s", b.Address, b.Balance, b.Unit)
}

// FormatHistory lists the last historyLimit records, newest first.
func FormatHistory(address string, txs []storage.TxRecord) string {
	if len(txs) == 0 {
		return fmt.Sprintf("No transactions for %s.", address)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🕘 History for %s (last %d)\n\n", shortenHash(address), historyLimit)

	n := 0
	for i := len(txs) - 1; i >= 0 && n < historyLimit; i-- {
		tx := txs[i]
		n++

		dir := "in"
		if strings.EqualFold(tx.From, address) {
			dir = "out"
		}
		counterpart := tx.From
		if dir == "out" {
			counterpart = tx.To
		}

		fmt.Fprintf(&sb, "• %s %s %s ETH %s %s\n  %s\n",
			shortenHash(tx.Hash), dir, tx.Amount, arrow(dir), shortenHash(counterpart), tx.Timestamp)
	}
	return sb.String()
}

func arrow(dir string) string {
	if dir == "out" {
		return "→"
	}
	return "←"
}

func shortenHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}
