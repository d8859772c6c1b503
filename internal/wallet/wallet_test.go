package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestDeriveKey_KnownVector(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	key, err := DeriveKey(mnemonic, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := crypto.PubkeyToAddress(key.PublicKey).Hex()
	if got != "0x9858EfFD232B4033E47d90003D41EC34EcaEda94" {
		t.Fatalf("unexpected address, got=%s", got)
	}

	salted, err := DeriveKey(mnemonic, "secret")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if crypto.PubkeyToAddress(salted.PublicKey).Hex() == got {
		t.Fatal("expected passphrase to change the derived account")
	}
}

func TestDeriveKey_InvalidMnemonic(t *testing.T) {
	if _, err := DeriveKey("not a real mnemonic", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateMnemonic_24Words(t *testing.T) {
	m, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n := len(strings.Fields(m)); n != 24 {
		t.Fatalf("expected 24 words, got=%d", n)
	}
}

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	s := NewService(NewKeystore(), nil)
	s.now = func() time.Time { return now }
	return s
}

func TestService_CreateAndSign(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, now)

	w, err := s.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ks.Len() != 1 {
		t.Fatalf("expected 1 stored key, got=%d", s.ks.Len())
	}
	if !strings.HasPrefix(w.MFAURI, "otpauth://totp/") || !strings.Contains(w.MFAURI, "issuer=CryptoWallet") {
		t.Fatalf("unexpected mfa uri: %s", w.MFAURI)
	}
	if !strings.Contains(w.MFAURI, "period=300") {
		t.Fatalf("expected period=300 in uri: %s", w.MFAURI)
	}

	key, err := DeriveKey(w.Mnemonic, "")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if crypto.PubkeyToAddress(key.PublicKey).Hex() != w.Address {
		t.Fatalf("mnemonic does not restore %s", w.Address)
	}

	code, err := MFACode(w.MFASecret, now)
	if err != nil {
		t.Fatalf("mfa code: %v", err)
	}

	payload := `{"to":"0xbbbb","value":"1"}`
	sig, err := s.Sign(strings.ToLower(w.Address), payload, code)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	raw, err := hexutil.Decode(sig.SignedTx)
	if err != nil || len(raw) != 65 {
		t.Fatalf("expected 65-byte signature, got=%d err=%v", len(raw), err)
	}
	pub, err := crypto.SigToPub(crypto.Keccak256([]byte(payload)), raw)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if crypto.PubkeyToAddress(*pub).Hex() != w.Address {
		t.Fatalf("signature recovers wrong signer: %s", crypto.PubkeyToAddress(*pub).Hex())
	}
	if sig.PublicKey != hexutil.Encode(crypto.FromECDSAPub(pub)) {
		t.Fatalf("unexpected public key: %s", sig.PublicKey)
	}
}

func TestService_SignRejects(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, now)

	w, err := s.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.Sign(w.Address, "payload", "000000x"); !errors.Is(err, ErrInvalidMFA) {
		t.Fatalf("expected ErrInvalidMFA, got=%v", err)
	}

	stale, _ := MFACode(w.MFASecret, now.Add(-time.Hour))
	if _, err := s.Sign(w.Address, "payload", stale); !errors.Is(err, ErrInvalidMFA) {
		t.Fatalf("expected ErrInvalidMFA for stale code, got=%v", err)
	}

	code, _ := MFACode(w.MFASecret, now)
	if _, err := s.Sign("0x9858EfFD232B4033E47d90003D41EC34EcaEda94", "payload", code); !errors.Is(err, ErrUnknownAddress) {
		t.Fatalf("expected ErrUnknownAddress, got=%v", err)
	}
	if _, err := s.Sign("nope", "payload", code); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got=%v", err)
	}
	if _, err := s.Sign(w.Address, "", code); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty payload, got=%v", err)
	}
}

type recordingRegistrar struct {
	got []string
	err error
}

func (r *recordingRegistrar) RegisterWallet(ctx context.Context, address string) error {
	r.got = append(r.got, address)
	return r.err
}

func TestService_CreateRegistersAddress(t *testing.T) {
	reg := &recordingRegistrar{}
	s := NewService(NewKeystore(), reg)

	w, err := s.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(reg.got) != 1 || reg.got[0] != w.Address {
		t.Fatalf("expected %s registered, got=%v", w.Address, reg.got)
	}

	failing := NewService(NewKeystore(), &recordingRegistrar{err: errors.New("store down")})
	if _, err := failing.Create(context.Background(), ""); err == nil {
		t.Fatal("expected error when registration fails")
	}
	if failing.ks.Len() != 0 {
		t.Fatal("expected no key stored when registration fails")
	}
}
