package ethrpc

import (
	"errors"
	"math/big"
	"testing"
)

func TestFormatEther(t *testing.T) {
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	cases := []struct {
		wei  *big.Int
		want string
	}{
		{big.NewInt(0), "0.0"},
		{nil, "0.0"},
		{oneEth, "1.0"},
		{new(big.Int).Div(oneEth, big.NewInt(2)), "0.5"},
		{new(big.Int).Add(oneEth, new(big.Int).Div(oneEth, big.NewInt(2))), "1.5"},
		{big.NewInt(1), "0.000000000000000001"},
		{big.NewInt(-1500000000000000000), "-1.5"},
		{new(big.Int).Mul(big.NewInt(21000), big.NewInt(10_000_000_000)), "0.00021"},
	}

	for _, c := range cases {
		if got := FormatEther(c.wei); got != c.want {
			t.Fatalf("FormatEther(%v): expected %q, got %q", c.wei, c.want, got)
		}
	}
}

func TestFormatGwei(t *testing.T) {
	if got := FormatGwei(big.NewInt(10_000_000_000)); got != "10.0" {
		t.Fatalf("expected 10.0, got %q", got)
	}
	if got := FormatGwei(big.NewInt(1_500_000_000)); got != "1.5" {
		t.Fatalf("expected 1.5, got %q", got)
	}
	if got := FormatGwei(big.NewInt(1)); got != "0.000000001" {
		t.Fatalf("expected 0.000000001, got %q", got)
	}
}

func TestParseEther(t *testing.T) {
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	got, err := ParseEther("1")
	if err != nil || got.Cmp(oneEth) != 0 {
		t.Fatalf("expected 1 ETH, got=%v err=%v", got, err)
	}

	got, err = ParseEther("0.01")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if want := new(big.Int).Div(oneEth, big.NewInt(100)); got.Cmp(want) != 0 {
		t.Fatalf("expected %v, got=%v", want, got)
	}

	got, err = ParseEther("0")
	if err != nil || got.Sign() != 0 {
		t.Fatalf("expected zero, got=%v err=%v", got, err)
	}

	got, err = ParseEther("0.000000000000000001")
	if err != nil || got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected 1 wei, got=%v err=%v", got, err)
	}

	for _, bad := range []string{"-1", "abc", "", "0.0000000000000000001"} {
		if _, err := ParseEther(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseEther_HugeExponents(t *testing.T) {
	for _, in := range []string{"1e9000000", "1e2000000000", "1e-9000000", "1e78"} {
		if _, err := ParseEther(in); !errors.Is(err, ErrAmountOutOfRange) {
			t.Fatalf("ParseEther(%q): expected ErrAmountOutOfRange, got=%v", in, err)
		}
	}

	maxWei := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := ParseEther(WeiToEth(maxWei).String()); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected 2^256 wei rejected, got=%v", err)
	}
	belowMax := new(big.Int).Sub(maxWei, big.NewInt(1))
	got, err := ParseEther(WeiToEth(belowMax).String())
	if err != nil || got.Cmp(belowMax) != 0 {
		t.Fatalf("expected 2^256-1 wei accepted, got=%v err=%v", got, err)
	}

	if got, err := ParseEther("1.5e3"); err != nil || got.Cmp(new(big.Int).Mul(big.NewInt(1500), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))) != 0 {
		t.Fatalf("expected 1500 ETH, got=%v err=%v", got, err)
	}
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" -2.5 ")
	if err != nil || d.String() != "-2.5" {
		t.Fatalf("expected -2.5, got=%s err=%v", d, err)
	}
	if _, err := ParseAmount("one"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got=%v", err)
	}
	if _, err := ParseAmount("-1e9000000"); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got=%v", err)
	}
}

func TestWeiToEth(t *testing.T) {
	got := WeiToEth(big.NewInt(1500000000000000000))
	if got.String() != "1.5" {
		t.Fatalf("expected 1.5, got %s", got.String())
	}
	if !WeiToEth(nil).IsZero() {
		t.Fatal("expected zero for nil")
	}
}

func TestParseAddressAndHash(t *testing.T) {
	if _, err := ParseAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := ParseAddress("0x1"); err == nil {
		t.Fatal("expected error for short address")
	}
	if _, err := ParseTxHash("0x" + repeat("ab", 32)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := ParseTxHash("0xabc"); err == nil {
		t.Fatal("expected error for short hash")
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
