// Package events provides event bus implementations for turn events.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: In-memory for testing and single-process runs
package events
