package hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// AlgorithmID is the only slow-hash algorithm this package derives and
	// parses.
	AlgorithmID = "pbkdf2-sha256"

	// legacyPrefix is prepended by the legacy fast-hash variant. Kept only
	// for verifying records written before client binding existed.
	legacyPrefix = "keyfold"

	minIterationsFloor = 1000
	minSaltLength      = 16
	minKeyLength       = 16
)

var (
	// ErrMalformedHash is returned when a serialized hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed serialized hash")
	// ErrUnsupportedAlgorithm is returned when a serialized hash names an
	// algorithm other than AlgorithmID.
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")
	// ErrWeakParameters is returned when supplied hash parameters fall below
	// the configured minimum security threshold.
	ErrWeakParameters = errors.New("hash parameters below minimum threshold")
)

// Config bounds the derivation parameters. Instances are treated as
// immutable after New.
type Config struct {
	DefaultIterations int
	MinIterations     int
	SaltLength        int
	KeyLength         int
}

// Hasher derives and parses slow hashes under one Config.
type Hasher struct {
	config Config
}

// Derived is the output of a slow-hash derivation.
type Derived struct {
	Salt       []byte
	Key        []byte
	Serialized string
}

// Parsed is the decoded form of a PHC-serialized slow hash.
type Parsed struct {
	AlgorithmID string
	Iterations  int
	Salt        []byte
	Key         []byte
}

// New validates the config and returns a Hasher.
func New(cfg Config) (*Hasher, error) {
	if cfg.MinIterations < minIterationsFloor {
		return nil, fmt.Errorf("min iterations must be at least %d", minIterationsFloor)
	}
	if cfg.DefaultIterations < cfg.MinIterations {
		return nil, errors.New("default iterations below minimum")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, fmt.Errorf("salt length must be at least %d bytes", minSaltLength)
	}
	if cfg.KeyLength < minKeyLength {
		return nil, fmt.Errorf("key length must be at least %d bytes", minKeyLength)
	}
	return &Hasher{config: cfg}, nil
}

// Derive slow-hashes secret with PBKDF2-SHA256. Zero iterations selects the
// configured default; a nil salt generates a fresh random one of the
// configured size. The result carries the raw key material and its PHC
// serialization:
//
//	$pbkdf2-sha256$i=<iterations>$<base64 salt>$<base64 key>
func (h *Hasher) Derive(secret []byte, iterations int, salt []byte) (Derived, error) {
	if h == nil {
		return Derived{}, errors.New("nil hasher")
	}
	if iterations == 0 {
		iterations = h.config.DefaultIterations
	}
	if iterations < h.config.MinIterations {
		return Derived{}, fmt.Errorf("%w: %d iterations, minimum %d",
			ErrWeakParameters, iterations, h.config.MinIterations)
	}

	if salt == nil {
		salt = make([]byte, h.config.SaltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return Derived{}, err
		}
	}
	if len(salt) < minSaltLength {
		return Derived{}, fmt.Errorf("%w: salt shorter than %d bytes", ErrWeakParameters, minSaltLength)
	}

	key := pbkdf2.Key(secret, salt, iterations, h.config.KeyLength, sha256.New)

	serialized := fmt.Sprintf(
		"$%s$i=%d$%s$%s",
		AlgorithmID,
		iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	)

	return Derived{Salt: salt, Key: key, Serialized: serialized}, nil
}

// Parse decodes a PHC-serialized slow hash and enforces the configured
// minimum iteration count on externally supplied material.
func (h *Hasher) Parse(serialized string) (Parsed, error) {
	parsed, err := parsePHC(serialized)
	if err != nil {
		return Parsed{}, err
	}
	if parsed.Iterations < h.config.MinIterations {
		return Parsed{}, fmt.Errorf("%w: %d iterations, minimum %d",
			ErrWeakParameters, parsed.Iterations, h.config.MinIterations)
	}
	return parsed, nil
}

func parsePHC(serialized string) (Parsed, error) {
	parts := strings.Split(serialized, "$")
	if len(parts) != 5 || parts[0] != "" {
		return Parsed{}, fmt.Errorf("%w: expected 4 fields", ErrMalformedHash)
	}

	if parts[1] != AlgorithmID {
		return Parsed{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, parts[1])
	}

	if !strings.HasPrefix(parts[2], "i=") {
		return Parsed{}, fmt.Errorf("%w: missing iteration count", ErrMalformedHash)
	}
	iterations, err := strconv.Atoi(strings.TrimPrefix(parts[2], "i="))
	if err != nil || iterations <= 0 {
		return Parsed{}, fmt.Errorf("%w: invalid iteration count", ErrMalformedHash)
	}

	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: invalid salt encoding", ErrMalformedHash)
	}
	if len(salt) < minSaltLength {
		return Parsed{}, fmt.Errorf("%w: invalid salt length", ErrMalformedHash)
	}

	key, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: invalid key encoding", ErrMalformedHash)
	}
	if len(key) == 0 {
		return Parsed{}, fmt.Errorf("%w: empty key", ErrMalformedHash)
	}

	return Parsed{
		AlgorithmID: parts[1],
		Iterations:  iterations,
		Salt:        salt,
		Key:         key,
	}, nil
}

// FastHash computes the cheap one-way storage hash of material, bound to
// clientID when one is supplied. It must only be applied to material that
// is already high entropy or already slow-hashed.
func FastHash(material []byte, clientID string) []byte {
	h := sha256.New()
	h.Write(material)
	if clientID != "" {
		h.Write([]byte(":"))
		h.Write([]byte(clientID))
	}
	return h.Sum(nil)
}

// LegacyFastHash computes the pre-binding fast-hash variant, which prefixed
// a fixed application string. Used only to verify old records.
func LegacyFastHash(material []byte) []byte {
	h := sha256.New()
	h.Write([]byte(legacyPrefix))
	h.Write([]byte(":"))
	h.Write(material)
	return h.Sum(nil)
}

// VerifyBinding recomputes the fast hash of candidate material under the
// given client binding and compares it to the stored hash in constant time.
func VerifyBinding(material []byte, clientID string, stored []byte) bool {
	computed := FastHash(material, clientID)
	return subtle.ConstantTimeCompare(computed, stored) == 1
}

// VerifyLegacy compares candidate material against a stored legacy fast
// hash in constant time.
func VerifyLegacy(material []byte, stored []byte) bool {
	computed := LegacyFastHash(material)
	return subtle.ConstantTimeCompare(computed, stored) == 1
}
