package keyfold

import (
	"context"
	"sync"
)

// MemoryAccountStore is an in-memory AccountStore for embedded deployments
// and tests. Sequence checking matches the contract of the Redis-backed
// store exactly, so adapter behavior is identical against either.
type MemoryAccountStore struct {
	mu      sync.Mutex
	byID    map[string]*memoryAccount
	byEmail map[string]string
}

type memoryAccount struct {
	record AccountRecord
	meta   AccountMeta
}

// NewMemoryAccountStore creates an empty store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		byID:    make(map[string]*memoryAccount),
		byEmail: make(map[string]string),
	}
}

// CreateAccount seeds an account with an empty credential map and sequence
// zero. Account creation is otherwise outside this package's scope.
func (s *MemoryAccountStore) CreateAccount(rec AccountRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[rec.ID] = &memoryAccount{record: rec}
	if rec.Email != "" {
		s.byEmail[rec.Email] = rec.ID
	}
}

func (s *MemoryAccountStore) resolve(ref AccountRef) (*memoryAccount, error) {
	if !ref.valid() {
		return nil, ErrInvalidRef
	}
	id := ref.ID
	if id == "" {
		var ok bool
		id, ok = s.byEmail[ref.Email]
		if !ok {
			return nil, ErrAccountNotFound
		}
	}
	acct, ok := s.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

// Get implements [AccountStore].
func (s *MemoryAccountStore) Get(ctx context.Context, ref AccountRef) (*AccountRecord, *AccountMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.resolve(ref)
	if err != nil {
		return nil, nil, err
	}

	rec := acct.record
	meta := AccountMeta{
		Sequence:    acct.meta.Sequence,
		Credentials: acct.meta.Credentials.clone(),
	}
	return &rec, &meta, nil
}

// Update implements [AccountStore]. The write lands only when the stored
// sequence still equals expectedSequence, and advances it by exactly one.
func (s *MemoryAccountStore) Update(ctx context.Context, ref AccountRef, meta *AccountMeta, expectedSequence int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if acct.meta.Sequence != expectedSequence {
		return ErrSequenceConflict
	}

	acct.meta = AccountMeta{
		Sequence:    expectedSequence + 1,
		Credentials: meta.Credentials.clone(),
	}
	return nil
}
