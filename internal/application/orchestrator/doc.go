// Package orchestrator implements conversation turn processing.
//
// The manager runs one turn as a fixed sequence:
//   - Validate the workflow graph structure
//   - Load prior conversation state for the (tenant, conversation) pair
//   - Append the user message and run the execution step
//   - Persist the new state with a sliding expiry
//
// A failed turn never overwrites previously persisted state. The validator
// is usable on its own for pre-flight checks.
package orchestrator
