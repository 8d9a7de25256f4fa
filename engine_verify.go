package keyfold

import "context"

// Verify checks a proof against the account's live credential of the given
// type. The flow is the same for every type: look up the live credential
// ([ErrTokenNotFound] when it is entirely absent or expired), gate on the
// required authentication methods ([ErrRequirementsNotMet]), then perform
// the type-specific comparison. A non-matching proof yields a nil result and
// a nil error; callers never learn more than "no match".
//
// A matched nonce is consumed immediately: the same proof verifies at most
// once.
func (e *Engine) Verify(ctx context.Context, ref AccountRef, kind CredentialType, params VerifyParams) (*VerifyResult, error) {
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

	switch kind {
	case CredentialPassword:
		return e.verifyPassword(ctx, view, params)
	case CredentialNonce:
		return e.verifyNonce(ctx, view, params)
	case CredentialTOTP:
		return e.verifyTOTP(view, params)
	default:
		return nil, ErrTokenNotFound
	}
}
