package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	EnsureSchema(ctx context.Context) error

	// AppendTx stores tx after all existing records. When amount is non-nil
	// the cached balance of tx.From is decreased and that of tx.To increased,
	// each only if the address already has a cached balance.
	AppendTx(ctx context.Context, tx TxRecord, amount *decimal.Decimal) (TxRecord, error)
	ListByAddress(ctx context.Context, address string) ([]TxRecord, error)

	SetBalance(ctx context.Context, address string, balance decimal.Decimal) error
	Balance(ctx context.Context, address string) (decimal.Decimal, bool, error)

	Close() error
}
