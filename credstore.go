package keyfold

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Adapter-internal control-flow sentinels. Never surfaced to callers.
var (
	errNoChange     = errors.New("no change")
	errBoundReached = errors.New("bound reached")
)

// mutateFunc computes a new credential map in place. It must be pure: the
// optimistic-concurrency loop may invoke it several times before a write
// lands.
type mutateFunc func(rec *AccountRecord, creds *CredentialMap) error

// accountView is the post-mutation projection returned by the adapter.
type accountView struct {
	record      AccountRecord
	credentials CredentialMap
}

// credStore performs optimistic-concurrency read-modify-write cycles against
// an account's credential map. A write conflict is retried up to the bound;
// every other failure propagates unchanged.
type credStore struct {
	store   AccountStore
	retries int
}

func newCredStore(store AccountStore, retries int) *credStore {
	return &credStore{store: store, retries: retries}
}

func (s *credStore) read(ctx context.Context, ref AccountRef) (*accountView, error) {
	rec, meta, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &accountView{record: *rec, credentials: meta.Credentials.clone()}, nil
}

func (s *credStore) withAccount(ctx context.Context, ref AccountRef, fn mutateFunc) (*accountView, error) {
	for attempt := 0; attempt < s.retries; attempt++ {
		rec, meta, err := s.store.Get(ctx, ref)
		if err != nil {
			return nil, err
		}

		creds := meta.Credentials.clone()
		if err := fn(rec, &creds); err != nil {
			if errors.Is(err, errNoChange) {
				return &accountView{record: *rec, credentials: creds}, nil
			}
			return nil, err
		}

		next := &AccountMeta{Sequence: meta.Sequence + 1, Credentials: creds}
		err = s.store.Update(ctx, ref, next, meta.Sequence)
		if err == nil {
			return &accountView{record: *rec, credentials: creds}, nil
		}
		if errors.Is(err, ErrSequenceConflict) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: %d attempts", ErrConflictRetryExhausted, s.retries)
}

// pushBounded appends token under the given type only while the current
// count is below maxCount. A reached bound is reported as ok=false, not an
// error: the caller decides whether to evict expired entries and retry.
// Singleton types replace unconditionally.
func (s *credStore) pushBounded(ctx context.Context, ref AccountRef, kind CredentialType, token Token, maxCount int) (bool, error) {
	_, err := s.withAccount(ctx, ref, func(_ *AccountRecord, creds *CredentialMap) error {
		toks := creds.tokens(kind)
		if !kind.singleton() && len(toks) >= maxCount {
			return errBoundReached
		}
		creds.setTokens(kind, append(toks, token))
		return nil
	})
	if errors.Is(err, errBoundReached) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// removeOne deletes the array entry with the given id, or the whole
// singleton/array when tokenID is empty.
func (s *credStore) removeOne(ctx context.Context, ref AccountRef, kind CredentialType, tokenID string) (*accountView, error) {
	return s.withAccount(ctx, ref, func(_ *AccountRecord, creds *CredentialMap) error {
		toks := creds.tokens(kind)
		if len(toks) == 0 {
			return fmt.Errorf("%w: no %s credential", ErrTokenNotFound, kind)
		}
		if tokenID == "" {
			creds.setTokens(kind, nil)
			return nil
		}

		kept := toks[:0:0]
		found := false
		for _, t := range toks {
			if t.ID == tokenID {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		if !found {
			return fmt.Errorf("%w: %s id %s", ErrTokenNotFound, kind, tokenID)
		}
		creds.setTokens(kind, kept)
		return nil
	})
}

// sweepLegacy evicts only legacy-format entries, leaving merely expired ones
// in place. Used by the read paths, which must not disturb expired tokens
// that getAll still reports.
func (s *credStore) sweepLegacy(ctx context.Context, ref AccountRef, kind CredentialType) (int, error) {
	removed := 0
	_, err := s.withAccount(ctx, ref, func(_ *AccountRecord, creds *CredentialMap) error {
		removed = 0
		toks := creds.tokens(kind)
		kept := toks[:0:0]
		for _, t := range toks {
			if t.Legacy() {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		if removed == 0 {
			return errNoChange
		}
		creds.setTokens(kind, kept)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// sweepExpired removes every entry of the given type whose expiry has passed
// or which carries the legacy-format marker. A sweep that removes nothing
// performs no write and does not advance the account sequence.
func (s *credStore) sweepExpired(ctx context.Context, ref AccountRef, kind CredentialType) (int, error) {
	removed := 0
	_, err := s.withAccount(ctx, ref, func(_ *AccountRecord, creds *CredentialMap) error {
		removed = 0
		now := time.Now()
		toks := creds.tokens(kind)
		kept := toks[:0:0]
		for _, t := range toks {
			if t.Expired(now) {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		if removed == 0 {
			return errNoChange
		}
		creds.setTokens(kind, kept)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
