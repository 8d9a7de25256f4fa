package keyfold

import (
	"context"
	"errors"
	"testing"

	"github.com/keyfold/keyfold/hashing"
)

func seedLegacyNonce(t *testing.T, store *MemoryAccountStore, proof string) {
	t.Helper()
	ctx := context.Background()

	_, meta, err := store.Get(ctx, ByID("u1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	meta.Credentials.Nonces = append(meta.Credentials.Nonces, Token{
		ID:         "legacy-1",
		Kind:       CredentialNonce,
		FastHash:   hashing.LegacyFastHash([]byte(proof)),
		LegacySalt: []byte("legacy-salt-data"),
	})
	if err := store.Update(ctx, ByID("u1"), meta, meta.Sequence); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestLegacyTokenExcludedFromGetAll(t *testing.T) {
	engine, store, _ := newTestEngine(t, engineTestConfig())
	seedLegacyNonce(t, store, "old-proof")

	list, err := engine.GetAll(context.Background(), ByID("u1"), CredentialNonce)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(list.All) != 0 || len(list.Tokens) != 0 || len(list.Expired) != 0 {
		t.Fatalf("legacy token must be invisible to GetAll: %+v", list)
	}

	// Reading the credential set evicts the legacy record.
	_, meta, err := store.Get(context.Background(), ByID("u1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(meta.Credentials.Nonces) != 0 {
		t.Fatal("expected legacy token evicted after read")
	}
}

func TestLegacyTokenTreatedAsExpiredByGet(t *testing.T) {
	engine, store, _ := newTestEngine(t, engineTestConfig())
	seedLegacyNonce(t, store, "old-proof")

	_, err := engine.Get(context.Background(), ByID("u1"), CredentialNonce, "legacy-1", true)
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound for legacy token, got %v", err)
	}
}

func TestLegacyTokenNormalizedWhenFetchedUnfiltered(t *testing.T) {
	engine, store, _ := newTestEngine(t, engineTestConfig())
	seedLegacyNonce(t, store, "old-proof")

	tok, err := engine.Get(context.Background(), ByID("u1"), CredentialNonce, "legacy-1", false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tok.HashParams == nil || tok.HashParams.AlgorithmID != legacyAlgorithmID {
		t.Fatalf("expected synthesized hash parameters, got %+v", tok.HashParams)
	}
	if string(tok.HashParams.Salt) != "legacy-salt-data" {
		t.Fatal("synthesized parameters must carry the legacy salt")
	}
}

func TestLegacyTokenVerifiesExactlyOnce(t *testing.T) {
	engine, store, _ := newTestEngine(t, engineTestConfig())
	seedLegacyNonce(t, store, "old-proof")
	ctx := context.Background()

	result, err := engine.Verify(ctx, ByID("u1"), CredentialNonce, VerifyParams{Challenge: "old-proof"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result == nil || result.ID != "u1" {
		t.Fatalf("expected legacy verification to succeed once, got %+v", result)
	}

	_, err = engine.Verify(ctx, ByID("u1"), CredentialNonce, VerifyParams{Challenge: "old-proof"})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound on second verify, got %v", err)
	}
}

func TestLegacyPasswordVerifiesOnceThenLeaves(t *testing.T) {
	engine, store, _ := newTestEngine(t, engineTestConfig())
	ctx := context.Background()

	_, meta, err := store.Get(ctx, ByID("u1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	meta.Credentials.Password = &Token{
		ID:         "legacy-pw",
		Kind:       CredentialPassword,
		FastHash:   hashing.LegacyFastHash([]byte("legacy-slow-hash")),
		LegacySalt: []byte("legacy-salt-data"),
	}
	if err := store.Update(ctx, ByID("u1"), meta, meta.Sequence); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	result, err := engine.Verify(ctx, ByID("u1"), CredentialPassword, VerifyParams{Hash: "legacy-slow-hash"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected legacy password verification to succeed")
	}

	_, err = engine.Verify(ctx, ByID("u1"), CredentialPassword, VerifyParams{Hash: "legacy-slow-hash"})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after consumption, got %v", err)
	}
}
