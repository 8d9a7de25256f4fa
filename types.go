package keyfold

import (
	"context"
	"time"
)

// CredentialType selects one of the credential shapes an account can hold.
type CredentialType uint8

const (
	// CredentialPassword is the singleton password credential.
	CredentialPassword CredentialType = iota
	// CredentialNonce is the bounded array of one-time nonce credentials.
	CredentialNonce
	// CredentialTOTP is the singleton TOTP secret credential.
	CredentialTOTP
)

// String describes a public operation of the credential engine.
func (c CredentialType) String() string {
	switch c {
	case CredentialPassword:
		return "password"
	case CredentialNonce:
		return "nonce"
	case CredentialTOTP:
		return "totp"
	default:
		return "unknown"
	}
}

func (c CredentialType) singleton() bool {
	return c != CredentialNonce
}

// HashParams carries the slow-hash parameters stored alongside a password or
// human-nonce credential so the secret can be re-derived at verification time.
type HashParams struct {
	AlgorithmID string `json:"algorithm"`
	Iterations  int    `json:"iterations"`
	Salt        []byte `json:"salt"`
}

func (p *HashParams) clone() *HashParams {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Salt = append([]byte(nil), p.Salt...)
	return &cp
}

// Token is one stored credential, tagged by Kind. Password and TOTP tokens
// are singletons on the account; nonce tokens form a bounded ordered array.
//
// A token lacking HashParams but carrying LegacySalt is a legacy slow-hash
// record. Legacy tokens are unconditionally treated as expired and are
// evicted whenever the credential set is read, but a direct verification
// against their own fast hash still succeeds once.
type Token struct {
	ID                   string         `json:"id"`
	Kind                 CredentialType `json:"type"`
	AuthenticationMethod string         `json:"authenticationMethod,omitempty"`
	RequiredMethods      []Requirement  `json:"requiredAuthenticationMethods,omitempty"`

	// Password and nonce payload.
	HashParams *HashParams `json:"hashParameters,omitempty"`
	FastHash   []byte      `json:"fastHash,omitempty"`
	LegacySalt []byte      `json:"salt,omitempty"`

	// Nonce payload.
	Expires time.Time `json:"expires,omitempty"`

	// TOTP payload.
	Secret     string `json:"secret,omitempty"`
	OTPAuthURL string `json:"otpAuthUrl,omitempty"`
}

// Legacy reports whether the token is a legacy slow-hash record.
func (t *Token) Legacy() bool {
	return t.HashParams == nil && len(t.LegacySalt) > 0
}

// Expired reports whether the token is ineligible at the given instant.
// Legacy tokens are always expired.
func (t *Token) Expired(now time.Time) bool {
	if t.Legacy() {
		return true
	}
	return !t.Expires.IsZero() && now.After(t.Expires)
}

func (t *Token) clone() *Token {
	if t == nil {
		return nil
	}
	cp := *t
	cp.HashParams = t.HashParams.clone()
	cp.FastHash = append([]byte(nil), t.FastHash...)
	cp.LegacySalt = append([]byte(nil), t.LegacySalt...)
	cp.RequiredMethods = cloneRequirements(t.RequiredMethods)
	return &cp
}

// ClientRegistration records that a client identifier has been seen for an
// account. The ID is the fast hash of the client identifier; the raw
// identifier is never stored.
type ClientRegistration struct {
	ID            string `json:"id"`
	Authenticated bool   `json:"authenticated"`
}

// CredentialMap is the per-account credential set owned by the account store
// and mutated only through this package.
type CredentialMap struct {
	Password *Token  `json:"password,omitempty"`
	Nonces   []Token `json:"nonce,omitempty"`
	TOTP     *Token  `json:"totp,omitempty"`

	RequiredMethods []Requirement                 `json:"requiredAuthenticationMethods,omitempty"`
	Clients         map[string]ClientRegistration `json:"clients,omitempty"`
	RecoveryEmail   string                        `json:"recoveryEmail,omitempty"`
}

// tokens returns the entries stored under the given credential type, newest
// last for nonces. Singleton types yield zero or one entry.
func (m *CredentialMap) tokens(kind CredentialType) []Token {
	switch kind {
	case CredentialPassword:
		if m.Password == nil {
			return nil
		}
		return []Token{*m.Password}
	case CredentialTOTP:
		if m.TOTP == nil {
			return nil
		}
		return []Token{*m.TOTP}
	case CredentialNonce:
		return m.Nonces
	default:
		return nil
	}
}

// setTokens replaces the entries stored under the given credential type.
// Setting a singleton type with more than one entry keeps the last.
func (m *CredentialMap) setTokens(kind CredentialType, toks []Token) {
	switch kind {
	case CredentialPassword:
		if len(toks) == 0 {
			m.Password = nil
			return
		}
		t := toks[len(toks)-1]
		m.Password = &t
	case CredentialTOTP:
		if len(toks) == 0 {
			m.TOTP = nil
			return
		}
		t := toks[len(toks)-1]
		m.TOTP = &t
	case CredentialNonce:
		m.Nonces = toks
	}
}

func (m *CredentialMap) clone() CredentialMap {
	cp := CredentialMap{
		Password:        m.Password.clone(),
		TOTP:            m.TOTP.clone(),
		RequiredMethods: cloneRequirements(m.RequiredMethods),
		RecoveryEmail:   m.RecoveryEmail,
	}
	if m.Nonces != nil {
		cp.Nonces = make([]Token, 0, len(m.Nonces))
		for i := range m.Nonces {
			cp.Nonces = append(cp.Nonces, *m.Nonces[i].clone())
		}
	}
	if m.Clients != nil {
		cp.Clients = make(map[string]ClientRegistration, len(m.Clients))
		for k, v := range m.Clients {
			cp.Clients[k] = v
		}
	}
	return cp
}

// AccountRef selects the target account for an operation. Exactly one of ID
// or Email must be set.
type AccountRef struct {
	ID    string
	Email string
}

func (r AccountRef) valid() bool {
	return (r.ID == "") != (r.Email == "")
}

// ByID selects an account by its opaque identifier.
func ByID(id string) AccountRef { return AccountRef{ID: id} }

// ByEmail selects an account by its primary email.
func ByEmail(email string) AccountRef { return AccountRef{Email: email} }

// AccountRecord is the identity projection of an account, as returned by the
// account store.
type AccountRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AccountMeta is the mutable credential metadata of an account: the
// credential map plus the optimistic-concurrency sequence number.
type AccountMeta struct {
	Sequence    int64         `json:"sequence"`
	Credentials CredentialMap `json:"credentials"`
}

// AccountStore is the persistence collaborator contract. Implementations must
// offer a conditional update keyed by the account's sequence number:
// Update succeeds only when the stored sequence equals expectedSequence, and
// bumps it by exactly one. A stale expectedSequence must surface as
// [ErrSequenceConflict] (retryable); a missing account as
// [ErrAccountNotFound] (terminal).
//
// [MemoryAccountStore] and [RedisAccountStore] are the bundled
// implementations.
type AccountStore interface {
	Get(ctx context.Context, ref AccountRef) (*AccountRecord, *AccountMeta, error)
	Update(ctx context.Context, ref AccountRef, meta *AccountMeta, expectedSequence int64) error
}

// PasswordParams configures SetPassword. Hash is the PHC-serialized slow hash
// of the password, derived by the caller; it is validated against the
// configured minimum iteration count before storage.
type PasswordParams struct {
	Hash                 string
	ClientID             string
	AuthenticationMethod string
	RequiredMethods      []Requirement
}

// NonceKind selects the challenge shape of a nonce credential.
type NonceKind uint8

const (
	// NonceDigits issues a short human-enterable digit challenge. The
	// challenge is low entropy and is slow-hashed before storage.
	NonceDigits NonceKind = iota
	// NonceMachine issues a large unguessable machine challenge. The
	// challenge is high entropy and skips the slow-hash step.
	NonceMachine
)

// NonceParams configures SetNonce.
type NonceParams struct {
	Kind                 NonceKind
	ClientID             string
	ServiceID            string
	AuthenticationMethod string
	RequiredMethods      []Requirement
}

// TOTPParams configures SetTOTP.
type TOTPParams struct {
	AuthenticationMethod string
	RequiredMethods      []Requirement
}

// TokenResult is returned by the Set operations. Challenge is populated for
// nonce credentials, Secret and OTPAuthURL for TOTP.
type TokenResult struct {
	ID         string
	Kind       CredentialType
	Challenge  string
	Secret     string
	OTPAuthURL string
}

// TokenList splits an account's credentials of one type into live and
// expired views. All preserves storage order.
type TokenList struct {
	All     []Token
	Tokens  []Token
	Expired []Token
}

// VerifyParams carries the proof for a Verify call. Hash is the
// PHC-serialized slow hash for password verification; Challenge is the nonce
// challenge or TOTP code. AuthenticatedMethods lists the method identifiers
// the caller has already satisfied in this authentication flow.
type VerifyParams struct {
	Hash                 string
	Challenge            string
	ClientID             string
	AuthenticatedMethods []string
}

// VerifiedToken identifies which credential discharged a verification.
type VerifiedToken struct {
	Kind                 CredentialType
	AuthenticationMethod string
}

// VerifyResult is returned by a successful Verify. A non-matching proof
// yields a nil result and a nil error; callers must treat nil as failure.
type VerifyResult struct {
	ID    string
	Email string
	Token VerifiedToken
}
