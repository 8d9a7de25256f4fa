package keyfold

import (
	"context"

	"github.com/google/uuid"
	"github.com/keyfold/keyfold/hashing"
)

// SetPassword stores the account's password credential, replacing any
// existing one. The supplied hash must be a PHC-serialized slow hash derived
// by the caller; it is parsed, checked against the configured minimum
// iteration count, and stored as hash parameters plus a fast hash bound to
// the optional client identifier.
func (e *Engine) SetPassword(ctx context.Context, ref AccountRef, params PasswordParams) (*TokenResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !ref.valid() {
		return nil, ErrInvalidRef
	}

	parsed, err := e.hasher.Parse(params.Hash)
	if err != nil {
		return nil, err
	}

	token := Token{
		ID:                   uuid.NewString(),
		Kind:                 CredentialPassword,
		AuthenticationMethod: methodOrDefault(params.AuthenticationMethod, CredentialPassword),
		RequiredMethods:      cloneRequirements(params.RequiredMethods),
		HashParams: &HashParams{
			AlgorithmID: parsed.AlgorithmID,
			Iterations:  parsed.Iterations,
			Salt:        parsed.Salt,
		},
		FastHash: hashing.FastHash(parsed.Key, params.ClientID),
	}

	view, err := e.creds.withAccount(ctx, ref, func(_ *AccountRecord, creds *CredentialMap) error {
		creds.Password = token.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(Event{
		Type:       EventTokenCreated,
		AccountID:  view.record.ID,
		Email:      view.record.Email,
		TokenID:    token.ID,
		Credential: CredentialPassword.String(),
	})

	return &TokenResult{ID: token.ID, Kind: CredentialPassword}, nil
}

func (e *Engine) verifyPassword(ctx context.Context, view *accountView, params VerifyParams) (*VerifyResult, error) {
	token := view.credentials.Password
	if token == nil {
		return nil, ErrTokenNotFound
	}

	required := e.requiredMethodsFor(token, &view.credentials)
	if !RequirementsSatisfied(required, params.AuthenticatedMethods) {
		return nil, ErrRequirementsNotMet
	}

	if token.Legacy() {
		if !hashing.VerifyLegacy([]byte(params.Hash), token.FastHash) {
			return nil, nil
		}
		// Legacy records verify once, then leave the account.
		if _, err := e.creds.removeOne(ctx, viewRef(view), CredentialPassword, ""); err != nil {
			return nil, err
		}
		return e.verified(view, token, CredentialPassword), nil
	}

	parsed, err := e.hasher.Parse(params.Hash)
	if err != nil {
		return nil, err
	}
	if !hashing.VerifyBinding(parsed.Key, params.ClientID, token.FastHash) {
		return nil, nil
	}

	return e.verified(view, token, CredentialPassword), nil
}
