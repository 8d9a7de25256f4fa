package keyfold

import (
	"context"
	"errors"
	"testing"
	"time"
)

// conflictingStore injects a fixed number of sequence conflicts before
// delegating to the in-memory store.
type conflictingStore struct {
	*MemoryAccountStore
	conflicts int
	updates   int
}

func (s *conflictingStore) Update(ctx context.Context, ref AccountRef, meta *AccountMeta, expectedSequence int64) error {
	s.updates++
	if s.conflicts > 0 {
		s.conflicts--
		return ErrSequenceConflict
	}
	return s.MemoryAccountStore.Update(ctx, ref, meta, expectedSequence)
}

func seededCredStore(t *testing.T, conflicts, retries int) (*credStore, *conflictingStore) {
	t.Helper()
	mem := NewMemoryAccountStore()
	mem.CreateAccount(AccountRecord{ID: "u1", Email: "u1@example.com"})
	store := &conflictingStore{MemoryAccountStore: mem, conflicts: conflicts}
	return newCredStore(store, retries), store
}

func nonceToken(id string, expires time.Time) Token {
	return Token{
		ID:       id,
		Kind:     CredentialNonce,
		FastHash: []byte{0x01},
		Expires:  expires,
	}
}

func TestWithAccountRetriesConflicts(t *testing.T) {
	creds, store := seededCredStore(t, 3, 10)

	view, err := creds.withAccount(context.Background(), ByID("u1"), func(_ *AccountRecord, c *CredentialMap) error {
		c.RecoveryEmail = "backup@example.com"
		return nil
	})
	if err != nil {
		t.Fatalf("withAccount failed: %v", err)
	}
	if view.credentials.RecoveryEmail != "backup@example.com" {
		t.Fatal("mutation did not land")
	}
	if store.updates != 4 {
		t.Fatalf("expected 4 update attempts, got %d", store.updates)
	}

	_, meta, err := store.Get(context.Background(), ByID("u1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if meta.Sequence != 1 {
		t.Fatalf("expected sequence 1 after one successful mutation, got %d", meta.Sequence)
	}
}

func TestWithAccountExhaustsRetryBudget(t *testing.T) {
	creds, _ := seededCredStore(t, 100, 5)

	_, err := creds.withAccount(context.Background(), ByID("u1"), func(_ *AccountRecord, c *CredentialMap) error {
		c.RecoveryEmail = "backup@example.com"
		return nil
	})
	if !errors.Is(err, ErrConflictRetryExhausted) {
		t.Fatalf("expected ErrConflictRetryExhausted, got %v", err)
	}
}

func TestWithAccountMissingAccountIsTerminal(t *testing.T) {
	creds, store := seededCredStore(t, 0, 10)

	_, err := creds.withAccount(context.Background(), ByID("ghost"), func(_ *AccountRecord, c *CredentialMap) error {
		return nil
	})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if store.updates != 0 {
		t.Fatal("missing account must not be retried")
	}
}

func TestPushBoundedStopsAtBound(t *testing.T) {
	creds, _ := seededCredStore(t, 0, 10)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	for i := 0; i < 2; i++ {
		ok, err := creds.pushBounded(ctx, ByID("u1"), CredentialNonce, nonceToken("n", expires), 2)
		if err != nil || !ok {
			t.Fatalf("push %d: ok=%v err=%v", i, ok, err)
		}
	}

	ok, err := creds.pushBounded(ctx, ByID("u1"), CredentialNonce, nonceToken("n3", expires), 2)
	if err != nil {
		t.Fatalf("push at bound errored: %v", err)
	}
	if ok {
		t.Fatal("expected push at bound to report false")
	}
}

func TestRemoveOneByIDAndWhole(t *testing.T) {
	creds, _ := seededCredStore(t, 0, 10)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		if ok, err := creds.pushBounded(ctx, ByID("u1"), CredentialNonce, nonceToken(id, expires), 10); err != nil || !ok {
			t.Fatalf("push %s: ok=%v err=%v", id, ok, err)
		}
	}

	if _, err := creds.removeOne(ctx, ByID("u1"), CredentialNonce, "b"); err != nil {
		t.Fatalf("removeOne failed: %v", err)
	}
	view, err := creds.read(ctx, ByID("u1"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(view.credentials.Nonces) != 2 {
		t.Fatalf("expected 2 nonces, got %d", len(view.credentials.Nonces))
	}

	if _, err := creds.removeOne(ctx, ByID("u1"), CredentialNonce, "b"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound for removed id, got %v", err)
	}

	if _, err := creds.removeOne(ctx, ByID("u1"), CredentialNonce, ""); err != nil {
		t.Fatalf("remove all failed: %v", err)
	}
	if _, err := creds.removeOne(ctx, ByID("u1"), CredentialNonce, ""); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound on empty array, got %v", err)
	}
}

func TestSweepExpiredRemovesExpiredAndLegacy(t *testing.T) {
	creds, _ := seededCredStore(t, 0, 10)
	ctx := context.Background()

	live := nonceToken("live", time.Now().Add(time.Hour))
	stale := nonceToken("stale", time.Now().Add(-time.Minute))
	legacy := Token{ID: "old", Kind: CredentialNonce, FastHash: []byte{0x02}, LegacySalt: []byte("legacy-salt-data")}

	for _, tok := range []Token{live, stale, legacy} {
		if ok, err := creds.pushBounded(ctx, ByID("u1"), CredentialNonce, tok, 10); err != nil || !ok {
			t.Fatalf("push %s: ok=%v err=%v", tok.ID, ok, err)
		}
	}

	removed, err := creds.sweepExpired(ctx, ByID("u1"), CredentialNonce)
	if err != nil {
		t.Fatalf("sweepExpired failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	view, err := creds.read(ctx, ByID("u1"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(view.credentials.Nonces) != 1 || view.credentials.Nonces[0].ID != "live" {
		t.Fatalf("unexpected survivors: %+v", view.credentials.Nonces)
	}
}

func TestSweepLegacyLeavesExpiredInPlace(t *testing.T) {
	creds, store := seededCredStore(t, 0, 10)
	ctx := context.Background()

	stale := nonceToken("stale", time.Now().Add(-time.Minute))
	legacy := Token{ID: "old", Kind: CredentialNonce, FastHash: []byte{0x02}, LegacySalt: []byte("legacy-salt-data")}

	for _, tok := range []Token{stale, legacy} {
		if ok, err := creds.pushBounded(ctx, ByID("u1"), CredentialNonce, tok, 10); err != nil || !ok {
			t.Fatalf("push %s: ok=%v err=%v", tok.ID, ok, err)
		}
	}

	removed, err := creds.sweepLegacy(ctx, ByID("u1"), CredentialNonce)
	if err != nil {
		t.Fatalf("sweepLegacy failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	view, err := creds.read(ctx, ByID("u1"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(view.credentials.Nonces) != 1 || view.credentials.Nonces[0].ID != "stale" {
		t.Fatalf("unexpected survivors: %+v", view.credentials.Nonces)
	}

	// A sweep that removes nothing must not advance the sequence.
	before := store.updates
	if _, err := creds.sweepLegacy(ctx, ByID("u1"), CredentialNonce); err != nil {
		t.Fatalf("second sweepLegacy failed: %v", err)
	}
	if store.updates != before {
		t.Fatal("no-op sweep must not write")
	}
}
