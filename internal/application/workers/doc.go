// Package workers runs asynchronous conversation turns.
//
// The pool subscribes once to the turn.requests topic and hands each request
// to one of a fixed number of worker goroutines, which execute it through the
// orchestrator. Outcomes surface as turn.completed or turn.failed events.
//
// The health monitor reports idle, busy and stopped workers.
package workers
