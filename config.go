package keyfold

import (
	"fmt"
	"time"
)

// Config is the full configuration surface of the engine. Instances are
// intended to be configured during initialization and then treated as
// immutable.
type Config struct {
	Hash    HashConfig
	Nonce   NonceConfig
	TOTP    TOTPConfig
	Account AccountConfig
	Notify  NotifyConfig
}

/*
====================================
HASH CONFIG
====================================
*/

// HashConfig bounds the slow-hash derivation parameters. MinIterations is
// enforced on every externally supplied serialized hash.
type HashConfig struct {
	DefaultIterations int
	MinIterations     int
	SaltLength        int
	KeyLength         int
}

/*
====================================
NONCE CONFIG
====================================
*/

// NonceConfig governs one-time nonce issuance.
type NonceConfig struct {
	// TTL is the lifetime of a pending nonce.
	TTL time.Duration
	// MaxCount caps the pending unexpired nonces per account.
	MaxCount int
	// Digits is the length of a human-enterable digit challenge.
	Digits int
	// MachineBytes is the entropy of a machine challenge before encoding.
	MachineBytes int
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures TOTP secret provisioning and verification.
type TOTPConfig struct {
	Issuer    string
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
	Digits    int
	Period    int
	// Skew is the verification window tolerance in periods on either side.
	Skew int
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig governs account-level behavior.
type AccountConfig struct {
	// UpdateRetries bounds the optimistic-concurrency retry loop.
	UpdateRetries int
	// DefaultRequiredMethods applies when neither the token nor the account
	// declares required authentication methods.
	DefaultRequiredMethods []Requirement
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig configures the best-effort notification dispatcher.
type NotifyConfig struct {
	Enabled    bool
	BufferSize int
}

// DefaultConfig returns the baseline configuration. Callers override fields
// before passing it to [Builder.WithConfig].
func DefaultConfig() Config {
	return Config{
		Hash: HashConfig{
			DefaultIterations: 650000,
			MinIterations:     100000,
			SaltLength:        32,
			KeyLength:         32,
		},
		Nonce: NonceConfig{
			TTL:          15 * time.Minute,
			MaxCount:     10,
			Digits:       6,
			MachineBytes: 32,
		},
		TOTP: TOTPConfig{
			Issuer:    "keyfold",
			Algorithm: "SHA1",
			Digits:    6,
			Period:    30,
			Skew:      1,
		},
		Account: AccountConfig{
			UpdateRetries: 10,
		},
		Notify: NotifyConfig{
			Enabled:    true,
			BufferSize: 256,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Nonce.TTL <= 0 {
		return fmt.Errorf("%w: nonce ttl must be positive", ErrInvalidConfig)
	}
	if cfg.Nonce.MaxCount <= 0 {
		return fmt.Errorf("%w: nonce max count must be positive", ErrInvalidConfig)
	}
	if cfg.Nonce.Digits < 6 || cfg.Nonce.Digits > 10 {
		return fmt.Errorf("%w: nonce digits must be between 6 and 10", ErrInvalidConfig)
	}
	if cfg.Nonce.MachineBytes < 16 {
		return fmt.Errorf("%w: nonce machine bytes must be at least 16", ErrInvalidConfig)
	}
	switch cfg.TOTP.Algorithm {
	case "SHA1", "SHA256", "SHA512":
	default:
		return fmt.Errorf("%w: unsupported totp algorithm %q", ErrInvalidConfig, cfg.TOTP.Algorithm)
	}
	if cfg.TOTP.Digits != 6 && cfg.TOTP.Digits != 8 {
		return fmt.Errorf("%w: totp digits must be 6 or 8", ErrInvalidConfig)
	}
	if cfg.TOTP.Period <= 0 {
		return fmt.Errorf("%w: totp period must be positive", ErrInvalidConfig)
	}
	if cfg.TOTP.Skew < 0 {
		return fmt.Errorf("%w: totp skew must not be negative", ErrInvalidConfig)
	}
	if cfg.Account.UpdateRetries <= 0 {
		return fmt.Errorf("%w: account update retries must be positive", ErrInvalidConfig)
	}
	if cfg.Notify.Enabled && cfg.Notify.BufferSize <= 0 {
		return fmt.Errorf("%w: notify buffer size must be positive", ErrInvalidConfig)
	}
	return nil
}
