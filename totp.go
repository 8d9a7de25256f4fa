package keyfold

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpProvider is the bridge to the external TOTP library. Low-level code
// generation never lives in this package.
type totpProvider struct {
	config TOTPConfig
}

func newTOTPProvider(cfg TOTPConfig) *totpProvider {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &totpProvider{config: cfg}
}

func (p *totpProvider) algorithm() otp.Algorithm {
	switch p.config.Algorithm {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}

// generate mints a fresh secret and its canonical otpauth:// key URI for the
// given account label.
func (p *totpProvider) generate(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.config.Issuer,
		AccountName: account,
		Period:      uint(p.config.Period),
		Digits:      otp.Digits(p.config.Digits),
		Algorithm:   p.algorithm(),
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.String(), nil
}

// verify checks a code against the stored secret within the configured skew
// window.
func (p *totpProvider) verify(code, secret string, at time.Time) (bool, error) {
	return totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    uint(p.config.Period),
		Skew:      uint(p.config.Skew),
		Digits:    otp.Digits(p.config.Digits),
		Algorithm: p.algorithm(),
	})
}
