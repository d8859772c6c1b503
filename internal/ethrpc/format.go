package ethrpc

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	EtherDecimals = 18
	GweiDecimals  = 9

	// maxAmountExponent bounds the decimal exponent of parsed amounts so that
	// "1e9000000" is rejected before anything is expanded to digits.
	maxAmountExponent = 77
)

var (
	ErrInvalidAmount    = errors.New("invalid eth amount")
	ErrAmountOutOfRange = errors.New("eth amount out of range")

	// maxEther is 2^256 wei expressed in ETH.
	maxEther = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 256), -EtherDecimals)
)

// FormatUnits renders v scaled down by 10^decimals. The fraction keeps at
// least one digit and drops trailing zeros: 1e18 wei -> "1.0", 15e17 -> "1.5".
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		v = new(big.Int)
	}
	neg := v.Sign() < 0
	digits := new(big.Int).Abs(v).String()
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}

	split := len(digits) - decimals
	whole, frac := digits[:split], strings.TrimRight(digits[split:], "0")
	if frac == "" {
		frac = "0"
	}

	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

func FormatGwei(wei *big.Int) string {
	return FormatUnits(wei, GweiDecimals)
}

// WeiToEth converts wei into a decimal ETH amount without rounding.
func WeiToEth(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals)
}

// ParseAmount parses a decimal ETH string of either sign. Amounts whose
// exponent is beyond ±77 or whose magnitude reaches 2^256 wei fail with
// ErrAmountOutOfRange.
func ParseAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if e := d.Exponent(); e > maxAmountExponent || e < -maxAmountExponent {
		return decimal.Zero, ErrAmountOutOfRange
	}
	if d.Abs().Cmp(maxEther) >= 0 {
		return decimal.Zero, ErrAmountOutOfRange
	}
	return d, nil
}

// ParseEther parses a decimal ETH string ("1.5", "0.01") into wei. Negative
// amounts and more than 18 fraction digits are rejected; zero is allowed.
func ParseEther(amount string) (*big.Int, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if d.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if d.Exponent() < -EtherDecimals && !d.Equal(d.Truncate(EtherDecimals)) {
		return nil, ErrInvalidAmount
	}
	return d.Shift(EtherDecimals).BigInt(), nil
}
