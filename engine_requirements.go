package keyfold

import (
	"context"
	"errors"
	"strings"
)

// SetAuthenticationRequirements replaces the account-level required
// authentication methods evaluated when a token does not declare its own.
func (e *Engine) SetAuthenticationRequirements(ctx context.Context, ref AccountRef, methods []Requirement) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !ref.valid() {
		return ErrInvalidRef
	}

	_, err := e.creds.withAccount(ctx, ref, func(_ *AccountRecord, creds *CredentialMap) error {
		creds.RequiredMethods = cloneRequirements(methods)
		return nil
	})
	return err
}

// GetAuthenticationRequirements returns the account-level required
// authentication methods, falling back to the configured default when the
// account has none.
func (e *Engine) GetAuthenticationRequirements(ctx context.Context, ref AccountRef) ([]Requirement, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !ref.valid() {
		return nil, ErrInvalidRef
	}

	view, err := e.creds.read(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(view.credentials.RequiredMethods) > 0 {
		return cloneRequirements(view.credentials.RequiredMethods), nil
	}
	return cloneRequirements(e.config.Account.DefaultRequiredMethods), nil
}

// SetRecoveryEmail stores the out-of-band address nonce challenges are
// delivered to when the primary email is unavailable.
func (e *Engine) SetRecoveryEmail(ctx context.Context, ref AccountRef, recoveryEmail string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !ref.valid() {
		return ErrInvalidRef
	}
	if !strings.Contains(recoveryEmail, "@") {
		return errors.New("invalid recovery email")
	}

	_, err := e.creds.withAccount(ctx, ref, func(_ *AccountRecord, creds *CredentialMap) error {
		creds.RecoveryEmail = recoveryEmail
		return nil
	})
	return err
}
