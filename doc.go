// Package keyfold manages the authentication credentials attached to a user
// account: passwords, one-time nonces (human-readable digit challenges or
// large unguessable machine tokens), and TOTP secrets, plus a trusted-client
// registry and a multi-factor required-authentication-methods policy.
//
// keyfold is a library, not a service. An outer authentication layer decides
// when to issue, verify, or revoke a credential and calls [Engine] methods to
// do it. Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// keyfold is the public surface. It exposes [Engine], [Builder], [Config],
// the credential value types ([Token], [Requirement], [VerifyResult]), and
// the two collaborator contracts it consumes: [AccountStore] for persistence
// and [Notifier] for event dispatch. Slow-hash derivation and the portable
// PHC serialization live in the hashing subpackage.
//
// # Concurrency model
//
// keyfold holds no locks and no shared mutable state of its own. Correctness
// under concurrent mutation of the same account relies entirely on the
// account store's optimistic-concurrency primitive: every mutation reads the
// account's sequence number, computes a new credential map, and writes back
// conditioned on that sequence being unchanged. A conflict is retried
// internally up to a bounded count and never surfaces to callers below that
// bound.
//
// # What this package must NOT do
//
//   - Issue sessions, cookies, or transport tokens of any kind.
//   - Create or delete account records; it only mutates credential metadata
//     on accounts that already exist.
//   - Fail a credential mutation because a notification could not be
//     delivered. Notification is fire-and-forget.
package keyfold
