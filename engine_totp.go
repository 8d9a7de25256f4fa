package keyfold

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SetTOTP provisions a TOTP secret for the account and returns the secret
// with its canonical otpauth:// key URI. TOTP is a singleton credential: a
// second provisioning attempt while one exists fails with [ErrTOTPExists]
// until the existing credential is removed.
func (e *Engine) SetTOTP(ctx context.Context, ref AccountRef, params TOTPParams) (*TokenResult, error) {
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

	label := view.record.Email
	if label == "" {
		label = view.record.ID
	}
	secret, uri, err := e.totp.generate(label)
	if err != nil {
		return nil, err
	}

	token := Token{
		ID:                   uuid.NewString(),
		Kind:                 CredentialTOTP,
		AuthenticationMethod: methodOrDefault(params.AuthenticationMethod, CredentialTOTP),
		RequiredMethods:      cloneRequirements(params.RequiredMethods),
		Secret:               secret,
		OTPAuthURL:           uri,
	}

	view, err = e.creds.withAccount(ctx, ref, func(_ *AccountRecord, creds *CredentialMap) error {
		if creds.TOTP != nil {
			return ErrTOTPExists
		}
		creds.TOTP = token.clone()
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
		Credential: CredentialTOTP.String(),
	})

	return &TokenResult{
		ID:         token.ID,
		Kind:       CredentialTOTP,
		Secret:     secret,
		OTPAuthURL: uri,
	}, nil
}

func (e *Engine) verifyTOTP(view *accountView, params VerifyParams) (*VerifyResult, error) {
	token := view.credentials.TOTP
	if token == nil {
		return nil, ErrTokenNotFound
	}

	required := e.requiredMethodsFor(token, &view.credentials)
	if !RequirementsSatisfied(required, params.AuthenticatedMethods) {
		return nil, ErrRequirementsNotMet
	}

	ok, err := e.totp.verify(params.Challenge, token.Secret, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	return e.verified(view, token, CredentialTOTP), nil
}
