// Package ethrpc talks to the chain node and converts between wei and the
// decimal ETH strings shown to users.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Provider answers the chain queries the ledger needs. Addresses are passed
// as the client sent them; rejecting malformed ones is the provider's job.
type Provider interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
	EstimateTransfer(ctx context.Context, from, to string, value *big.Int) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionPending(ctx context.Context, hash common.Hash) (bool, error)
}

// Backend is the subset of *ethclient.Client used by Node.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var (
	_ Backend  = (*ethclient.Client)(nil)
	_ Provider = (*Node)(nil)
)

var (
	reTxHash = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidTxHash  = errors.New("invalid transaction hash")
)

// Node is a Provider over a JSON-RPC backend.
type Node struct {
	b Backend
}

func NewNode(b Backend) *Node {
	return &Node{b: b}
}

// Dial creates a client for url. HTTP endpoints are not contacted until the
// first call, so an unreachable node does not fail here.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	cl, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}
	return cl, nil
}

type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// ChainIDString asks the node for its chain id. On failure it returns
// "unknown" together with the error.
func ChainIDString(ctx context.Context, r ChainIDReader) (string, error) {
	id, err := r.ChainID(ctx)
	if err != nil {
		return "unknown", fmt.Errorf("chain id: %w", err)
	}
	return id.String(), nil
}

func (n *Node) Balance(ctx context.Context, address string) (*big.Int, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return n.b.BalanceAt(ctx, addr, nil)
}

func (n *Node) EstimateTransfer(ctx context.Context, from, to string, value *big.Int) (uint64, error) {
	fromAddr, err := ParseAddress(from)
	if err != nil {
		return 0, err
	}
	toAddr, err := ParseAddress(to)
	if err != nil {
		return 0, err
	}
	return n.b.EstimateGas(ctx, ethereum.CallMsg{
		From:  fromAddr,
		To:    &toAddr,
		Value: value,
	})
}

func (n *Node) GasPrice(ctx context.Context) (*big.Int, error) {
	return n.b.SuggestGasPrice(ctx)
}

// Receipt returns ethereum.NotFound while the transaction is not mined.
func (n *Node) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return n.b.TransactionReceipt(ctx, hash)
}

// TransactionPending returns ethereum.NotFound for hashes the node has never
// seen.
func (n *Node) TransactionPending(ctx context.Context, hash common.Hash) (bool, error) {
	_, pending, err := n.b.TransactionByHash(ctx, hash)
	if err != nil {
		return false, err
	}
	return pending, nil
}

func IsTxHash(s string) bool {
	return reTxHash.MatchString(strings.TrimSpace(s))
}

// ParseAddress accepts a 20-byte hex address with or without 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

func ParseTxHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if !IsTxHash(s) {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidTxHash, s)
	}
	return common.HexToHash(s), nil
}
