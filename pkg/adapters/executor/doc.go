// Package executor provides graph execution step implementations.
//
// The factory creates an executor based on provider configuration.
// Currently supports:
//   - echo: placeholder that answers every turn by echoing the user message
package executor
