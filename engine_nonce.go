package keyfold

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keyfold/keyfold/hashing"
)

// SetNonce issues a one-time credential and returns its challenge. A human
// challenge is a short digit string, slow-hashed before storage; a machine
// challenge is a large unguessable token stored under the fast hash alone.
//
// The pending set is bounded: when the configured maximum is reached the
// engine evicts expired entries and retries once before rejecting with
// [ErrTooManyNonces].
func (e *Engine) SetNonce(ctx context.Context, ref AccountRef, params NonceParams) (*TokenResult, error) {
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

	token, challenge, err := e.buildNonce(&view.credentials, params)
	if err != nil {
		return nil, err
	}

	maxCount := e.config.Nonce.MaxCount
	ok, err := e.creds.pushBounded(ctx, ref, CredentialNonce, *token, maxCount)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := e.creds.sweepExpired(ctx, ref, CredentialNonce); err != nil {
			return nil, err
		}
		ok, err = e.creds.pushBounded(ctx, ref, CredentialNonce, *token, maxCount)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: maximum %d pending", ErrTooManyNonces, maxCount)
		}
	}

	e.emit(Event{
		Type:       EventTokenCreated,
		AccountID:  view.record.ID,
		Email:      view.record.Email,
		TokenID:    token.ID,
		Credential: CredentialNonce.String(),
		ServiceID:  params.ServiceID,
	})

	return &TokenResult{ID: token.ID, Kind: CredentialNonce, Challenge: challenge}, nil
}

func (e *Engine) buildNonce(creds *CredentialMap, params NonceParams) (*Token, string, error) {
	token := &Token{
		ID:                   uuid.NewString(),
		Kind:                 CredentialNonce,
		AuthenticationMethod: methodOrDefault(params.AuthenticationMethod, CredentialNonce),
		RequiredMethods:      cloneRequirements(params.RequiredMethods),
		Expires:              time.Now().Add(e.config.Nonce.TTL),
	}

	switch params.Kind {
	case NonceMachine:
		challenge, err := newMachineChallenge(e.config.Nonce.MachineBytes)
		if err != nil {
			return nil, "", err
		}
		// High entropy: the slow-hash step buys nothing here.
		token.FastHash = hashing.FastHash([]byte(challenge), params.ClientID)
		return token, challenge, nil

	default:
		challenge, err := newDigitChallenge(e.config.Nonce.Digits)
		if err != nil {
			return nil, "", err
		}
		derived, err := e.hasher.Derive([]byte(challenge), 0, e.reusableSalt(creds))
		if err != nil {
			return nil, "", err
		}
		token.HashParams = &HashParams{
			AlgorithmID: hashing.AlgorithmID,
			Iterations:  e.config.Hash.DefaultIterations,
			Salt:        derived.Salt,
		}
		token.FastHash = hashing.FastHash(derived.Key, params.ClientID)
		return token, challenge, nil
	}
}

// reusableSalt returns the salt of the most recent pending nonce whose hash
// parameters match the current configuration, so bursts of nonce issuance do
// not mint a fresh salt each time. Nil means derive with a new one.
func (e *Engine) reusableSalt(creds *CredentialMap) []byte {
	now := time.Now()
	for i := len(creds.Nonces) - 1; i >= 0; i-- {
		t := &creds.Nonces[i]
		if t.Expired(now) || t.HashParams == nil {
			continue
		}
		if t.HashParams.AlgorithmID == hashing.AlgorithmID &&
			t.HashParams.Iterations == e.config.Hash.DefaultIterations {
			return t.HashParams.Salt
		}
	}
	return nil
}

func (e *Engine) verifyNonce(ctx context.Context, view *accountView, params VerifyParams) (*VerifyResult, error) {
	now := time.Now()

	live := 0
	var matched *Token
	for i := range view.credentials.Nonces {
		t := &view.credentials.Nonces[i]
		if t.Legacy() {
			// Still verifiable against its own legacy fast hash, once.
			live++
			if matched == nil && hashing.VerifyLegacy([]byte(params.Challenge), t.FastHash) {
				matched = t
			}
			continue
		}
		if t.Expired(now) {
			continue
		}
		live++
		if matched != nil {
			continue
		}
		if e.nonceMatches(t, params) {
			matched = t
		}
	}

	if live == 0 {
		return nil, ErrTokenNotFound
	}
	if matched == nil {
		return nil, nil
	}

	required := e.requiredMethodsFor(matched, &view.credentials)
	if !RequirementsSatisfied(required, params.AuthenticatedMethods) {
		return nil, ErrRequirementsNotMet
	}

	// One-shot: the matched nonce is consumed before the result is reported.
	// Losing the removal race to a concurrent verify means the other call
	// consumed it first.
	if _, err := e.creds.removeOne(ctx, viewRef(view), CredentialNonce, matched.ID); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return e.verified(view, matched, CredentialNonce), nil
}

func (e *Engine) nonceMatches(t *Token, params VerifyParams) bool {
	if t.HashParams == nil {
		return hashing.VerifyBinding([]byte(params.Challenge), params.ClientID, t.FastHash)
	}
	derived, err := e.hasher.Derive([]byte(params.Challenge), t.HashParams.Iterations, t.HashParams.Salt)
	if err != nil {
		return false
	}
	return hashing.VerifyBinding(derived.Key, params.ClientID, t.FastHash)
}
