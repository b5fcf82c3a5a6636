// Package agents provides agent definition lookups.
//
// Implementations:
//   - postgres: reads the control plane's "Agent" table through pgxpool
//   - memory: in-process registry, optionally seeded from a YAML file
package agents
