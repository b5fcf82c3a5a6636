package domain

// FlowGraph is an agent's workflow graph document as decoded from JSON.
// It is kept opaque so malformed documents can be reported rather than rejected
// at decode time.
type FlowGraph map[string]interface{}

// ValidationResult is the outcome of a structural check of a FlowGraph.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors"`
	NodeCount int      `json:"node_count"`
	EdgeCount int      `json:"edge_count"`
}
