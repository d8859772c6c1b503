package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pvzzle/ethwallet/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id        BIGSERIAL PRIMARY KEY,
  hash      TEXT NOT NULL, -- not unique, duplicates are kept
  from_addr TEXT NOT NULL,
  to_addr   TEXT NOT NULL,
  amount    TEXT NOT NULL, -- as sent by the client
  ts        TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS wallet_transactions_from_idx ON wallet_transactions(lower(from_addr), id);
CREATE INDEX IF NOT EXISTS wallet_transactions_to_idx   ON wallet_transactions(lower(to_addr), id);

CREATE TABLE IF NOT EXISTS wallet_balances (
  address     TEXT PRIMARY KEY,
  balance_eth NUMERIC NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *Postgres) AppendTx(ctx context.Context, rec storage.TxRecord, amount *decimal.Decimal) (storage.TxRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(cctx)
	if err != nil {
		return storage.TxRecord{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(cctx) }()

	_, err = tx.Exec(cctx,
		`INSERT INTO wallet_transactions(hash, from_addr, to_addr, amount, ts) VALUES ($1, $2, $3, $4, $5)`,
		rec.Hash, rec.From, rec.To, rec.Amount, rec.Timestamp,
	)
	if err != nil {
		return storage.TxRecord{}, fmt.Errorf("insert tx: %w", err)
	}

	// UPDATE touches no row when the address has no cached balance.
	if amount != nil {
		q := `UPDATE wallet_balances SET balance_eth = balance_eth + $2::numeric, updated_at = now() WHERE address = $1`
		if _, err := tx.Exec(cctx, q, rec.From, amount.Neg().String()); err != nil {
			return storage.TxRecord{}, fmt.Errorf("debit %s: %w", rec.From, err)
		}
		if _, err := tx.Exec(cctx, q, rec.To, amount.String()); err != nil {
			return storage.TxRecord{}, fmt.Errorf("credit %s: %w", rec.To, err)
		}
	}

	if err := tx.Commit(cctx); err != nil {
		return storage.TxRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (r *Postgres) ListByAddress(ctx context.Context, address string) ([]storage.TxRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	q := `
SELECT hash, from_addr, to_addr, amount, ts
FROM wallet_transactions
WHERE lower(from_addr) = lower($1) OR lower(to_addr) = lower($1)
ORDER BY id
`
	rows, err := r.pool.Query(cctx, q, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]storage.TxRecord, 0)
	for rows.Next() {
		var rec storage.TxRecord
		if err := rows.Scan(&rec.Hash, &rec.From, &rec.To, &rec.Amount, &rec.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

func (r *Postgres) SetBalance(ctx context.Context, address string, balance decimal.Decimal) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := r.pool.Exec(cctx, `
INSERT INTO wallet_balances(address, balance_eth) VALUES ($1, $2::numeric)
ON CONFLICT(address) DO UPDATE SET
  balance_eth = EXCLUDED.balance_eth,
  updated_at  = now()
`, address, balance.String())
	return err
}

func (r *Postgres) Balance(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var s string
	err := r.pool.QueryRow(cctx,
		`SELECT balance_eth::text FROM wallet_balances WHERE address = $1`, address,
	).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	bal, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse balance %q: %w", s, err)
	}
	return bal, true, nil
}

func (r *Postgres) Close() error {
	r.pool.Close()
	return nil
}

func (r *Postgres) String() string { return fmt.Sprintf("pgrepo(%p)", r.pool) }
