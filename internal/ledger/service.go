// Package ledger implements the wallet backend operations: balance lookups,
// gas estimation and the transaction history kept in a storage.Repository.
package ledger

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/pvzzle/ethwallet/internal/ethrpc"
	klog "github.com/pvzzle/ethwallet/internal/log"
	"github.com/pvzzle/ethwallet/internal/storage"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	UnitETH = "ETH"

	ReceiptPending = "pending"
	ReceiptSuccess = "success"
	ReceiptFailed  = "failed"

	defaultRPCTimeout = 15 * time.Second
)

// Publisher is told about every recorded transaction.
type Publisher interface {
	PublishTx(tx storage.TxRecord)
}

type Config struct {
	// RPCTimeout bounds each call to the provider.
	RPCTimeout time.Duration
	// Publisher is optional.
	Publisher Publisher
}

type Service struct {
	repo storage.Repository
	eth  ethrpc.Provider
	pub  Publisher

	rpcTimeout time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

func NewService(repo storage.Repository, eth ethrpc.Provider, cfg Config) *Service {
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = defaultRPCTimeout
	}
	return &Service{
		repo:       repo,
		eth:        eth,
		pub:        cfg.Publisher,
		rpcTimeout: cfg.RPCTimeout,
		now:        time.Now,
		log:        klog.WithComponent("ledger"),
	}
}

type Balance struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Unit    string `json:"unit"`
}

type RecordInput struct {
	Hash      string
	From      string
	To        string
	Amount    string
	Timestamp string
}

type EstimateInput struct {
	From  string
	To    string
	Value string
}

type GasEstimate struct {
	GasEstimate   string `json:"gasEstimate"`
	GasPrice      string `json:"gasPrice"`
	EstimatedCost string `json:"estimatedCost"`
}

type Receipt struct {
	Hash        string  `json:"hash"`
	Status      string  `json:"status"`
	BlockNumber *uint64 `json:"blockNumber,omitempty"`
	GasUsed     *uint64 `json:"gasUsed,omitempty"`
}

// GetBalance asks the node for the current balance and overwrites the cached
// value for address with it.
func (s *Service) GetBalance(ctx context.Context, address string) (Balance, error) {
	const op = "get balance"

	cctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()

	wei, err := s.eth.Balance(cctx, address)
	if err != nil {
		return Balance{}, providerError(op, err)
	}

	if err := s.repo.SetBalance(ctx, address, ethrpc.WeiToEth(wei)); err != nil {
		return Balance{}, internalError(op, err)
	}

	return Balance{
		Address: address,
		Balance: ethrpc.FormatEther(wei),
		Unit:    UnitETH,
	}, nil
}

// GetHistory returns every record sent from or to address, oldest first.
func (s *Service) GetHistory(ctx context.Context, address string) ([]storage.TxRecord, error) {
	const op = "get history"

	if strings.TrimSpace(address) == "" {
		return nil, validationError(op, "address is required")
	}

	txs, err := s.repo.ListByAddress(ctx, address)
	if err != nil {
		return nil, internalError(op, err)
	}
	return txs, nil
}

// RecordTransaction stores a client-reported transfer. The cached balances of
// the two parties are adjusted only if they were cached before.
func (s *Service) RecordTransaction(ctx context.Context, in RecordInput) (storage.TxRecord, error) {
	const op = "record transaction"

	if missing := missingFields(
		"hash", in.Hash,
		"from", in.From,
		"to", in.To,
		"amount", in.Amount,
	); len(missing) > 0 {
		return storage.TxRecord{}, validationError(op, "Missing required fields: "+strings.Join(missing, ", "))
	}

	rec := storage.TxRecord{
		Hash:      in.Hash,
		From:      in.From,
		To:        in.To,
		Amount:    in.Amount,
		Timestamp: in.Timestamp,
	}
	if strings.TrimSpace(rec.Timestamp) == "" {
		rec.Timestamp = storage.FormatTimestamp(s.now())
	}

	var amount *decimal.Decimal
	if d, err := ethrpc.ParseAmount(in.Amount); err == nil {
		amount = &d
	} else {
		s.log.Warn().Err(err).Str("hash", rec.Hash).Msg("amount not usable, balances not adjusted")
	}

	stored, err := s.repo.AppendTx(ctx, rec, amount)
	if err != nil {
		return storage.TxRecord{}, internalError(op, err)
	}

	s.log.Info().
		Str("hash", stored.Hash).
		Str("from", stored.From).
		Str("to", stored.To).
		Str("amount", stored.Amount).
		Msg("transaction recorded")

	if s.pub != nil {
		s.pub.PublishTx(stored)
	}
	return stored, nil
}

// RegisterWallet seeds a zero cached balance for a freshly created wallet so
// that later recorded transfers are mirrored for it.
func (s *Service) RegisterWallet(ctx context.Context, address string) error {
	if err := s.repo.SetBalance(ctx, address, decimal.Zero); err != nil {
		return internalError("register wallet", err)
	}
	return nil
}

// EstimateGas prices a plain value transfer at the node's current gas price.
func (s *Service) EstimateGas(ctx context.Context, in EstimateInput) (GasEstimate, error) {
	const op = "estimate gas"

	if missing := missingFields(
		"from", in.From,
		"to", in.To,
		"value", in.Value,
	); len(missing) > 0 {
		return GasEstimate{}, validationError(op, "Missing required fields: "+strings.Join(missing, ", "))
	}

	value, err := ethrpc.ParseEther(in.Value)
	if err != nil {
		return GasEstimate{}, validationError(op, "value must be a non-negative ETH amount")
	}

	cctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()

	gas, err := s.eth.EstimateTransfer(cctx, in.From, in.To, value)
	if err != nil {
		return GasEstimate{}, providerError(op, err)
	}

	price, err := s.eth.GasPrice(cctx)
	if err != nil {
		return GasEstimate{}, providerError(op, err)
	}

	cost := new(big.Int).Mul(new(big.Int).SetUint64(gas), price)

	return GasEstimate{
		GasEstimate:   new(big.Int).SetUint64(gas).String(),
		GasPrice:      ethrpc.FormatGwei(price),
		EstimatedCost: ethrpc.FormatEther(cost),
	}, nil
}

// GetReceipt reports whether a broadcast transaction has been mined.
func (s *Service) GetReceipt(ctx context.Context, hash string) (Receipt, error) {
	const op = "get receipt"

	h, err := ethrpc.ParseTxHash(hash)
	if err != nil {
		return Receipt{}, validationError(op, "invalid transaction hash")
	}

	cctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()

	out := Receipt{Hash: h.Hex()}

	receipt, err := s.eth.Receipt(cctx, h)
	if errors.Is(err, ethereum.NotFound) {
		isPending, terr := s.eth.TransactionPending(cctx, h)
		if errors.Is(terr, ethereum.NotFound) {
			return Receipt{}, notFoundError(op, "transaction not found")
		}
		if terr != nil {
			return Receipt{}, providerError(op, terr)
		}
		// mined without an indexed receipt is reported as pending too
		if !isPending {
			s.log.Debug().Str("hash", out.Hash).Msg("receipt not indexed yet")
		}
		out.Status = ReceiptPending
		return out, nil
	}
	if err != nil {
		return Receipt{}, providerError(op, err)
	}

	out.Status = ReceiptFailed
	if receipt.Status == types.ReceiptStatusSuccessful {
		out.Status = ReceiptSuccess
	}
	if receipt.BlockNumber != nil {
		bn := receipt.BlockNumber.Uint64()
		out.BlockNumber = &bn
	}
	gasUsed := receipt.GasUsed
	out.GasUsed = &gasUsed
	return out, nil
}

// missingFields takes name/value pairs and returns the names whose value is
// blank.
func missingFields(pairs ...string) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			out = append(out, pairs[i])
		}
	}
	return out
}
