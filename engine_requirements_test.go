package keyfold

import (
	"context"
	"errors"
	"testing"
)

func TestAuthenticationRequirementsRoundTrip(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineTestConfig())
	ctx := context.Background()

	reqs := []Requirement{Method("password"), AnyOf("totp", "nonce")}
	if err := engine.SetAuthenticationRequirements(ctx, ByID("u1"), reqs); err != nil {
		t.Fatalf("SetAuthenticationRequirements failed: %v", err)
	}

	got, err := engine.GetAuthenticationRequirements(ctx, ByID("u1"))
	if err != nil {
		t.Fatalf("GetAuthenticationRequirements failed: %v", err)
	}
	if len(got) != 2 || got[0].Methods[0] != "password" || len(got[1].Methods) != 2 {
		t.Fatalf("requirements did not round trip: %+v", got)
	}
}

func TestAuthenticationRequirementsDefault(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Account.DefaultRequiredMethods = []Requirement{Method("password")}
	engine, _, _ := newTestEngine(t, cfg)

	got, err := engine.GetAuthenticationRequirements(context.Background(), ByID("u1"))
	if err != nil {
		t.Fatalf("GetAuthenticationRequirements failed: %v", err)
	}
	if len(got) != 1 || got[0].Methods[0] != "password" {
		t.Fatalf("expected configured default, got %+v", got)
	}
}

func TestAccountRequirementsGateVerification(t *testing.T) {
	cfg := engineTestConfig()
	engine, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	if err := engine.SetAuthenticationRequirements(ctx, ByID("u1"), []Requirement{Method("email")}); err != nil {
		t.Fatalf("SetAuthenticationRequirements failed: %v", err)
	}
	issued, err := engine.SetNonce(ctx, ByID("u1"), NonceParams{Kind: NonceMachine})
	if err != nil {
		t.Fatalf("SetNonce failed: %v", err)
	}

	_, err = engine.Verify(ctx, ByID("u1"), CredentialNonce, VerifyParams{Challenge: issued.Challenge})
	if !errors.Is(err, ErrRequirementsNotMet) {
		t.Fatalf("expected ErrRequirementsNotMet, got %v", err)
	}

	verified, err := engine.Verify(ctx, ByID("u1"), CredentialNonce, VerifyParams{
		Challenge:            issued.Challenge,
		AuthenticatedMethods: []string{"email"},
	})
	if err != nil || verified == nil {
		t.Fatalf("expected gated verification to succeed: result=%v err=%v", verified, err)
	}
}

func TestTokenRequirementsOverrideAccountRequirements(t *testing.T) {
	cfg := engineTestConfig()
	engine, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	if err := engine.SetAuthenticationRequirements(ctx, ByID("u1"), []Requirement{Method("email")}); err != nil {
		t.Fatalf("SetAuthenticationRequirements failed: %v", err)
	}
	issued, err := engine.SetNonce(ctx, ByID("u1"), NonceParams{
		Kind:            NonceMachine,
		RequiredMethods: []Requirement{Method("totp")},
	})
	if err != nil {
		t.Fatalf("SetNonce failed: %v", err)
	}

	verified, err := engine.Verify(ctx, ByID("u1"), CredentialNonce, VerifyParams{
		Challenge:            issued.Challenge,
		AuthenticatedMethods: []string{"totp"},
	})
	if err != nil || verified == nil {
		t.Fatalf("token-level requirements must win: result=%v err=%v", verified, err)
	}
}

func TestSetRecoveryEmail(t *testing.T) {
	engine, store, _ := newTestEngine(t, engineTestConfig())
	ctx := context.Background()

	if err := engine.SetRecoveryEmail(ctx, ByID("u1"), "not-an-email"); err == nil {
		t.Fatal("expected invalid recovery email to be rejected")
	}

	if err := engine.SetRecoveryEmail(ctx, ByID("u1"), "backup@example.com"); err != nil {
		t.Fatalf("SetRecoveryEmail failed: %v", err)
	}

	_, meta, err := store.Get(ctx, ByID("u1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if meta.Credentials.RecoveryEmail != "backup@example.com" {
		t.Fatalf("recovery email not stored: %q", meta.Credentials.RecoveryEmail)
	}
}
