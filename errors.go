package keyfold

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrAccountNotFound is returned when the account selected by an
	// AccountRef does not exist in the account store.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTokenNotFound is returned when the addressed credential is absent,
	// expired, or was never created.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTooManyNonces is returned when a nonce creation would exceed the
	// configured maximum pending count even after evicting expired entries.
	ErrTooManyNonces = errors.New("too many unprocessed nonce tokens")
	// ErrRequirementsNotMet is returned by Verify when the token's required
	// authentication methods are not discharged by the supplied
	// authenticated methods.
	ErrRequirementsNotMet = errors.New("authentication requirements not met")
	// ErrTOTPExists is returned when a TOTP credential is created while an
	// active one already exists. Remove the existing credential first.
	ErrTOTPExists = errors.New("totp credential already exists")
	// ErrClientAlreadyAuthenticated is returned when a client registration is
	// promoted to authenticated a second time. Treated as a possible
	// phishing relay, not silently accepted.
	ErrClientAlreadyAuthenticated = errors.New("client already authenticated")
	// ErrInvalidConfig is returned by Builder.Build for out-of-range or
	// inconsistent configuration values.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidRef is returned when an AccountRef does not carry exactly one
	// of account ID or email.
	ErrInvalidRef = errors.New("account ref must carry exactly one of id or email")
	// ErrConflictRetryExhausted is returned when the optimistic-concurrency
	// retry budget is exhausted without a successful write.
	ErrConflictRetryExhausted = errors.New("account update conflict retry budget exhausted")
	// ErrSequenceConflict is the conflict condition AccountStore
	// implementations must return from Update when the expected sequence is
	// stale. It is always retried internally and never surfaces to Engine
	// callers.
	ErrSequenceConflict = errors.New("account sequence conflict")
	// ErrStoreUnavailable wraps unexpected account store failures.
	ErrStoreUnavailable = errors.New("account store unavailable")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrTokenNotFound)
}
