package keyfold

import (
	"time"

	"github.com/keyfold/keyfold/hashing"
)

// Engine is the credential lifecycle manager. Build one through [Builder];
// the zero value is not usable.
type Engine struct {
	config Config
	store  AccountStore
	creds  *credStore
	hasher *hashing.Hasher
	totp   *totpProvider
	notify *notifyDispatcher
}

// Close drains pending notifications and stops the dispatcher. The engine
// must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.notify.Close()
}

// NotifyDropped returns the number of notifications discarded because of
// dispatcher backpressure.
func (e *Engine) NotifyDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.notify.Dropped()
}

func (e *Engine) ready() bool {
	return e != nil && e.creds != nil && e.hasher != nil
}

func (e *Engine) emit(event Event) {
	if e == nil {
		return
	}
	event.At = time.Now()
	e.notify.Emit(event)
}

// requiredMethodsFor resolves the requirement list evaluated at verification
// time: the token's own list wins, then the account-level list, then the
// configured default.
func (e *Engine) requiredMethodsFor(token *Token, creds *CredentialMap) []Requirement {
	if len(token.RequiredMethods) > 0 {
		return token.RequiredMethods
	}
	if len(creds.RequiredMethods) > 0 {
		return creds.RequiredMethods
	}
	return e.config.Account.DefaultRequiredMethods
}

func viewRef(view *accountView) AccountRef {
	return AccountRef{ID: view.record.ID}
}

func (e *Engine) verified(view *accountView, token *Token, kind CredentialType) *VerifyResult {
	e.emit(Event{
		Type:       EventTokenVerified,
		AccountID:  view.record.ID,
		Email:      view.record.Email,
		TokenID:    token.ID,
		Credential: kind.String(),
	})
	return &VerifyResult{
		ID:    view.record.ID,
		Email: view.record.Email,
		Token: VerifiedToken{
			Kind:                 kind,
			AuthenticationMethod: methodOrDefault(token.AuthenticationMethod, kind),
		},
	}
}

func methodOrDefault(method string, kind CredentialType) string {
	if method != "" {
		return method
	}
	return kind.String()
}
