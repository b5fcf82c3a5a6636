// Package domain holds the types shared by the turn orchestrator, its adapters
// and its APIs: workflow graph documents, conversation state, agents, turn
// requests and results, events and the error taxonomy.
package domain
