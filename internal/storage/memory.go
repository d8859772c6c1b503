package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory keeps records and cached balances in process memory. It is lost on
// restart. All mutations happen under one lock so an append and its balance
// adjustment are observed together.
type Memory struct {
	mu       sync.RWMutex
	txs      []TxRecord
	balances map[string]decimal.Decimal
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[string]decimal.Decimal)}
}

func (m *Memory) EnsureSchema(ctx context.Context) error { return nil }

func (m *Memory) AppendTx(ctx context.Context, tx TxRecord, amount *decimal.Decimal) (TxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txs = append(m.txs, tx)

	if amount != nil {
		if bal, ok := m.balances[tx.From]; ok {
			m.balances[tx.From] = bal.Sub(*amount)
		}
		if bal, ok := m.balances[tx.To]; ok {
			m.balances[tx.To] = bal.Add(*amount)
		}
	}
	return tx, nil
}

func (m *Memory) ListByAddress(ctx context.Context, address string) ([]TxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TxRecord, 0)
	for _, tx := range m.txs {
		if tx.Involves(address) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) SetBalance(ctx context.Context, address string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = balance
	return nil
}

func (m *Memory) Balance(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bal, ok := m.balances[address]
	return bal, ok, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("memory(txs=%d balances=%d)", len(m.txs), len(m.balances))
}
