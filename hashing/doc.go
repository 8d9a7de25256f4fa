// Package hashing implements the two cryptographic treatments keyfold applies
// to secrets: a deliberately slow PBKDF2 derivation with a portable PHC
// serialization for low-entropy, human-enterable secrets, and a fast one-way
// hash for at-rest storage of material that is already high entropy or
// already slow-hashed. The fast hash can additionally bind a secret to a
// client identifier so a proof captured for one client cannot be replayed as
// another.
package hashing
