// Package storage provides conversation state store implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and sliding TTL
//   - memory: In-memory with the same key scheme and expiry, for tests and local runs
//
// Both share the key layout and encoding in the codec package.
package storage
