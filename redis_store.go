package keyfold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisAccountPrefix = "kf"

// RedisAccountStore is a Redis-backed AccountStore. The credential metadata
// of each account is held as a single JSON document; conditional updates use
// WATCH on the account key so a concurrent mutation between read and write
// surfaces as [ErrSequenceConflict].
type RedisAccountStore struct {
	redis  *redis.Client
	prefix string
}

type redisAccountDoc struct {
	Account AccountRecord `json:"account"`
	Meta    AccountMeta   `json:"meta"`
}

// NewRedisAccountStore wraps an existing client. The client's lifecycle stays
// with the caller.
func NewRedisAccountStore(client *redis.Client) *RedisAccountStore {
	return &RedisAccountStore{redis: client, prefix: redisAccountPrefix}
}

func (s *RedisAccountStore) accountKey(id string) string {
	return s.prefix + ":acct:" + id
}

func (s *RedisAccountStore) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

// CreateAccount seeds an account document with an empty credential map and
// sequence zero, plus the email lookup index.
func (s *RedisAccountStore) CreateAccount(ctx context.Context, rec AccountRecord) error {
	doc := redisAccountDoc{Account: rec}
	encoded, err := json.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.accountKey(rec.ID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if rec.Email != "" {
		if err := s.redis.Set(ctx, s.emailKey(rec.Email), rec.ID, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *RedisAccountStore) resolveID(ctx context.Context, ref AccountRef) (string, error) {
	if !ref.valid() {
		return "", ErrInvalidRef
	}
	if ref.ID != "" {
		return ref.ID, nil
	}
	id, err := s.redis.Get(ctx, s.emailKey(ref.Email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return id, nil
}

// Get implements [AccountStore].
func (s *RedisAccountStore) Get(ctx context.Context, ref AccountRef) (*AccountRecord, *AccountMeta, error) {
	id, err := s.resolveID(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.redis.Get(ctx, s.accountKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var doc redisAccountDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: corrupt account document: %v", ErrStoreUnavailable, err)
	}
	return &doc.Account, &doc.Meta, nil
}

// Update implements [AccountStore]. The sequence check and the write execute
// under WATCH; any interleaved write to the account key aborts the
// transaction and is reported as [ErrSequenceConflict].
func (s *RedisAccountStore) Update(ctx context.Context, ref AccountRef, meta *AccountMeta, expectedSequence int64) error {
	id, err := s.resolveID(ctx, ref)
	if err != nil {
		return err
	}
	key := s.accountKey(id)

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		var doc redisAccountDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%w: corrupt account document: %v", ErrStoreUnavailable, err)
		}
		if doc.Meta.Sequence != expectedSequence {
			return ErrSequenceConflict
		}

		doc.Meta = AccountMeta{
			Sequence:    expectedSequence + 1,
			Credentials: meta.Credentials,
		}
		encoded, err := json.Marshal(&doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrSequenceConflict
	}
	return err
}
