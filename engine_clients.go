package keyfold

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/keyfold/keyfold/hashing"
)

func clientKey(clientID string) string {
	return hex.EncodeToString(hashing.FastHash([]byte(clientID), ""))
}

// RegisterClient records that a client identifier has been seen for the
// account, or promotes an existing registration to authenticated. Promotion
// happens exactly once: a second attempt is treated as a possible phishing
// relay and rejected with [ErrClientAlreadyAuthenticated] alongside a
// warning event, never silently accepted. Only the fast hash of the client
// identifier is ever stored.
func (e *Engine) RegisterClient(ctx context.Context, ref AccountRef, clientID string, authenticated bool) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !ref.valid() {
		return ErrInvalidRef
	}

	key := clientKey(clientID)
	created := false
	noop := false
	var accountID, email string

	_, err := e.creds.withAccount(ctx, ref, func(record *AccountRecord, creds *CredentialMap) error {
		accountID, email = record.ID, record.Email
		created = false
		noop = false
		existing, ok := creds.Clients[key]
		if authenticated && ok && existing.Authenticated {
			return ErrClientAlreadyAuthenticated
		}
		if ok && !authenticated {
			// Re-registering a known client without promotion changes nothing.
			noop = true
			return errNoChange
		}
		if creds.Clients == nil {
			creds.Clients = make(map[string]ClientRegistration)
		}
		created = !ok
		creds.Clients[key] = ClientRegistration{
			ID:            key,
			Authenticated: existing.Authenticated || authenticated,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrClientAlreadyAuthenticated) {
			e.emit(Event{
				Type:      EventClientWarning,
				AccountID: accountID,
				Email:     email,
			})
		}
		return err
	}
	if noop {
		return nil
	}

	eventType := EventClientAuthenticated
	if created && !authenticated {
		eventType = EventClientCreated
	}
	e.emit(Event{
		Type:      eventType,
		AccountID: accountID,
		Email:     email,
	})
	return nil
}

// IsClientRegistered reports whether the client identifier has a stored
// registration in the authenticated state.
func (e *Engine) IsClientRegistered(ctx context.Context, ref AccountRef, clientID string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	if !ref.valid() {
		return false, ErrInvalidRef
	}

	view, err := e.creds.read(ctx, ref)
	if err != nil {
		return false, err
	}
	reg, ok := view.credentials.Clients[clientKey(clientID)]
	return ok && reg.Authenticated, nil
}
