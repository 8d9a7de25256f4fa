package keyfold

import (
	"context"
	"sync"
	"testing"

	"github.com/keyfold/keyfold/hashing"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) snapshot() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.events))
	copy(out, n.events)
	return out
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

// engineTestConfig keeps the slow hash cheap so tests stay fast.
func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Hash.DefaultIterations = 1000
	cfg.Hash.MinIterations = 1000
	cfg.Nonce.MaxCount = 3
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *MemoryAccountStore, *recordingNotifier) {
	t.Helper()

	store := NewMemoryAccountStore()
	store.CreateAccount(AccountRecord{ID: "u1", Email: "u1@example.com"})

	sink := &recordingNotifier{}
	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithNotifier(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store, sink
}

// clientHash derives a PHC-serialized proof the way an outer caller would
// before handing it to SetPassword or Verify.
func clientHash(t *testing.T, cfg Config, secret string) string {
	t.Helper()

	hasher, err := hashing.New(hashing.Config{
		DefaultIterations: cfg.Hash.DefaultIterations,
		MinIterations:     cfg.Hash.MinIterations,
		SaltLength:        cfg.Hash.SaltLength,
		KeyLength:         cfg.Hash.KeyLength,
	})
	if err != nil {
		t.Fatalf("hashing.New failed: %v", err)
	}
	derived, err := hasher.Derive([]byte(secret), 0, nil)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	return derived.Serialized
}
