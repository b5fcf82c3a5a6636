// Package ports defines the interfaces between the turn orchestrator and its
// adapters (state backend, agent lookup, execution step, event bus, metrics).
package ports
