package keyfold

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

// newDigitChallenge generates a human-enterable challenge of exactly the
// given number of decimal digits, each drawn independently so leading zeros
// are possible.
func newDigitChallenge(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid challenge digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// newMachineChallenge generates an unguessable opaque challenge of the given
// entropy in bytes, encoded base64url without padding.
func newMachineChallenge(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
