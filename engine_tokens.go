package keyfold

import (
	"context"
	"log"
	"time"
)

// legacyAlgorithmID is the algorithm synthesized onto legacy records when
// they are returned from Get, so callers never observe a token without hash
// parameters.
const legacyAlgorithmID = "bcrypt"

// Get retrieves the singleton credential of the given type, or the nonce
// with the given id. With filterExpired set, an expired match is reported as
// [ErrTokenNotFound].
func (e *Engine) Get(ctx context.Context, ref AccountRef, kind CredentialType, id string, filterExpired bool) (*Token, error) {
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
	e.evictLegacy(ctx, view, kind)

	toks := view.credentials.tokens(kind)
	var found *Token
	for i := range toks {
		if id == "" || toks[i].ID == id {
			found = &toks[i]
			break
		}
	}
	if found == nil {
		return nil, ErrTokenNotFound
	}
	if filterExpired && found.Expired(time.Now()) {
		return nil, ErrTokenNotFound
	}

	return normalizeLegacy(found.clone()), nil
}

// GetAll retrieves every credential of the given type, split into live and
// expired views. Legacy records are excluded from all three lists.
func (e *Engine) GetAll(ctx context.Context, ref AccountRef, kind CredentialType) (*TokenList, error) {
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
	e.evictLegacy(ctx, view, kind)

	now := time.Now()
	list := &TokenList{}
	for _, t := range view.credentials.tokens(kind) {
		if t.Legacy() {
			continue
		}
		list.All = append(list.All, t)
		if t.Expired(now) {
			list.Expired = append(list.Expired, t)
		} else {
			list.Tokens = append(list.Tokens, t)
		}
	}
	return list, nil
}

// Remove deletes the nonce with the given id, or the whole credential of the
// given type when id is empty. Removing an absent credential fails with
// [ErrTokenNotFound].
func (e *Engine) Remove(ctx context.Context, ref AccountRef, kind CredentialType, id string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !ref.valid() {
		return ErrInvalidRef
	}

	view, err := e.creds.removeOne(ctx, ref, kind, id)
	if err != nil {
		return err
	}

	e.emit(Event{
		Type:       EventTokenRemoved,
		AccountID:  view.record.ID,
		Email:      view.record.Email,
		TokenID:    id,
		Credential: kind.String(),
	})
	return nil
}

// RemoveExpiredTokens sweeps every expired or legacy entry of the given type
// and returns how many were removed.
func (e *Engine) RemoveExpiredTokens(ctx context.Context, ref AccountRef, kind CredentialType) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if !ref.valid() {
		return 0, ErrInvalidRef
	}
	return e.creds.sweepExpired(ctx, ref, kind)
}

// evictLegacy drops legacy-format records as a side effect of reading the
// credential set. Best effort: a failed eviction never fails the read.
func (e *Engine) evictLegacy(ctx context.Context, view *accountView, kind CredentialType) {
	hasLegacy := false
	for _, t := range view.credentials.tokens(kind) {
		if t.Legacy() {
			hasLegacy = true
			break
		}
	}
	if !hasLegacy {
		return
	}
	if _, err := e.creds.sweepLegacy(ctx, viewRef(view), kind); err != nil {
		log.Print("keyfold: legacy token eviction failed")
	}
}

func normalizeLegacy(t *Token) *Token {
	if !t.Legacy() {
		return t
	}
	t.HashParams = &HashParams{
		AlgorithmID: legacyAlgorithmID,
		Salt:        t.LegacySalt,
	}
	return t
}
