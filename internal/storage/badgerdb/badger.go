// Package badgerdb stores ledger records in an embedded Badger database.
package badgerdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pvzzle/ethwallet/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
)

var (
	prefixTx      = []byte("tx/")
	prefixBalance = []byte("bal/")
	keyTxSeq      = []byte("meta/txseq")
)

// maxConflictRetries bounds retries of an append that lost a write conflict.
const maxConflictRetries = 16

// DB implements storage.Repository on Badger. Records are keyed by a
// big-endian sequence number so prefix iteration yields insertion order.
type DB struct {
	db *badger.DB
}

// Open opens (or creates) a database at path.
func Open(path string) (*DB, error) {
	db, err := open(badger.DefaultOptions(path))
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return db, nil
}

// OpenInMemory opens a database that keeps everything in RAM.
func OpenInMemory() (*DB, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*DB, error) {
	opts.Logger = nil // badger's own logger is noisy
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (b *DB) EnsureSchema(ctx context.Context) error { return nil }

func (b *DB) AppendTx(ctx context.Context, rec storage.TxRecord, amount *decimal.Decimal) (storage.TxRecord, error) {
	val, err := json.Marshal(rec)
	if err != nil {
		return storage.TxRecord{}, fmt.Errorf("encode tx: %w", err)
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return storage.TxRecord{}, err
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			seq, err := nextSeq(txn)
			if err != nil {
				return err
			}
			if err := txn.Set(txKey(seq), val); err != nil {
				return err
			}
			if amount == nil {
				return nil
			}
			if err := adjust(txn, rec.From, amount.Neg()); err != nil {
				return err
			}
			return adjust(txn, rec.To, *amount)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		if err != nil {
			return storage.TxRecord{}, fmt.Errorf("badger append: %w", err)
		}
		return rec, nil
	}
}

func (b *DB) ListByAddress(ctx context.Context, address string) ([]storage.TxRecord, error) {
	out := make([]storage.TxRecord, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixTx
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixTx); it.ValidForPrefix(prefixTx); it.Next() {
			var rec storage.TxRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			if rec.Involves(address) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list: %w", err)
	}
	return out, nil
}

func (b *DB) SetBalance(ctx context.Context, address string, balance decimal.Decimal) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(balanceKey(address), []byte(balance.String()))
	})
	if err != nil {
		return fmt.Errorf("badger put balance: %w", err)
	}
	return nil
}

func (b *DB) Balance(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	var (
		bal decimal.Decimal
		ok  bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		bal, ok, err = readBalance(txn, address)
		return err
	})
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("badger get balance: %w", err)
	}
	return bal, ok, nil
}

func (b *DB) Close() error {
	return b.db.Close()
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get(keyTxSeq)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		if err := item.Value(func(val []byte) error {
			seq = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	}

	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	if err := txn.Set(keyTxSeq, buf); err != nil {
		return 0, err
	}
	return seq, nil
}

func adjust(txn *badger.Txn, address string, delta decimal.Decimal) error {
	bal, ok, err := readBalance(txn, address)
	if err != nil || !ok {
		return err
	}
	return txn.Set(balanceKey(address), []byte(bal.Add(delta).String()))
}

func readBalance(txn *badger.Txn, address string) (decimal.Decimal, bool, error) {
	item, err := txn.Get(balanceKey(address))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	var bal decimal.Decimal
	err = item.Value(func(val []byte) error {
		var perr error
		bal, perr = decimal.NewFromString(string(val))
		return perr
	})
	if err != nil {
		return decimal.Zero, false, err
	}
	return bal, true, nil
}

func txKey(seq uint64) []byte {
	key := make([]byte, len(prefixTx)+8)
	copy(key, prefixTx)
	binary.BigEndian.PutUint64(key[len(prefixTx):], seq)
	return key
}

func balanceKey(address string) []byte {
	return append(append([]byte{}, prefixBalance...), address...)
}
