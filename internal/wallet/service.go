package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	klog "github.com/pvzzle/ethwallet/internal/log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnknownAddress = errors.New("unknown wallet address")
	ErrInvalidMFA     = errors.New("invalid MFA code")
)

type Created struct {
	Mnemonic  string `json:"mnemonic"`
	Address   string `json:"address"`
	MFASecret string `json:"mfa_secret"`
	MFAURI    string `json:"mfa_uri"`
}

type Signature struct {
	SignedTx  string `json:"signed_tx"`
	PublicKey string `json:"public_key"`
}

// Registrar is told about every created wallet address. ledger.Service
// implements it by seeding a zero cached balance.
type Registrar interface {
	RegisterWallet(ctx context.Context, address string) error
}

type Service struct {
	ks  *Keystore
	reg Registrar
	now func() time.Time
	log zerolog.Logger
}

// NewService builds the wallet service. reg may be nil.
func NewService(ks *Keystore, reg Registrar) *Service {
	return &Service{
		ks:  ks,
		reg: reg,
		now: time.Now,
		log: klog.WithComponent("wallet"),
	}
}

// Create generates a mnemonic, derives its first account and registers the
// account key together with a fresh MFA secret.
func (s *Service) Create(ctx context.Context, passphrase string) (Created, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return Created{}, err
	}
	key, err := DeriveKey(mnemonic, passphrase)
	if err != nil {
		return Created{}, err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	secret, uri, err := NewMFASecret(addr.Hex())
	if err != nil {
		return Created{}, err
	}

	if s.reg != nil {
		if err := s.reg.RegisterWallet(ctx, addr.Hex()); err != nil {
			return Created{}, fmt.Errorf("register wallet: %w", err)
		}
	}

	s.ks.put(addr, entry{key: key, mfaSecret: secret})
	s.log.Info().Str("address", addr.Hex()).Msg("wallet created")

	return Created{
		Mnemonic:  mnemonic,
		Address:   addr.Hex(),
		MFASecret: secret,
		MFAURI:    uri,
	}, nil
}

// Sign signs keccak256(payload) with the key of address once mfaCode checks
// out. The signature is the 65-byte [R || S || V] form.
func (s *Service) Sign(address, payload, mfaCode string) (Signature, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return Signature{}, fmt.Errorf("%w: address", ErrInvalidInput)
	}
	if payload == "" {
		return Signature{}, fmt.Errorf("%w: transaction", ErrInvalidInput)
	}

	e, ok := s.ks.get(common.HexToAddress(address))
	if !ok {
		return Signature{}, ErrUnknownAddress
	}
	if !verifyMFA(e.mfaSecret, strings.TrimSpace(mfaCode), s.now()) {
		s.log.Warn().Str("address", address).Msg("mfa check failed")
		return Signature{}, ErrInvalidMFA
	}

	sig, err := crypto.Sign(crypto.Keccak256([]byte(payload)), e.key)
	if err != nil {
		return Signature{}, fmt.Errorf("sign: %w", err)
	}

	return Signature{
		SignedTx:  hexutil.Encode(sig),
		PublicKey: hexutil.Encode(crypto.FromECDSAPub(&e.key.PublicKey)),
	}, nil
}
