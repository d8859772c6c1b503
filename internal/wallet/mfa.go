package wallet

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	mfaIssuer = "CryptoWallet"
	// MFAPeriod is the TOTP step. Five minutes leaves time to paste a code
	// into the signing form.
	MFAPeriod = 300
)

var mfaOpts = totp.ValidateOpts{
	Period:    MFAPeriod,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// NewMFASecret creates a TOTP secret bound to account and returns it with its
// otpauth:// provisioning URI.
func NewMFASecret(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: account,
		Period:      MFAPeriod,
		Digits:      mfaOpts.Digits,
		Algorithm:   mfaOpts.Algorithm,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// MFACode returns the code valid for secret at t.
func MFACode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, mfaOpts)
}

func verifyMFA(secret, code string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t, mfaOpts)
	return err == nil && ok
}
