package orchestrator

import (
	"fmt"

	"github.com/aescanero/dago-turns/pkg/domain"
)

// Validator checks the structure of workflow graph documents
type Validator struct{}

// NewValidator creates a new flow validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that the graph has node and edge arrays and that every node
// has an id and a type and every edge a from and a to. It never fails: all
// problems are accumulated into the result.
//
// Edge endpoints are not resolved against node ids and duplicate node ids are
// accepted.
func (v *Validator) Validate(g domain.FlowGraph) *domain.ValidationResult {
	errs := []string{}

	nodes, hasNodes := g["nodes"]
	edges, hasEdges := g["edges"]

	if !hasNodes {
		errs = append(errs, "Missing 'nodes' array")
	}
	if !hasEdges {
		errs = append(errs, "Missing 'edges' array")
	}

	if hasNodes {
		errs = append(errs, v.validateNodes(nodes)...)
	}
	if hasEdges {
		errs = append(errs, v.validateEdges(edges)...)
	}

	return &domain.ValidationResult{
		Valid:     len(errs) == 0,
		Errors:    errs,
		NodeCount: countOf(nodes),
		EdgeCount: countOf(edges),
	}
}

// validateNodes checks the node list
func (v *Validator) validateNodes(raw interface{}) []string {
	nodes, ok := raw.([]interface{})
	if !ok {
		return []string{"'nodes' must be an array"}
	}

	var errs []string
	nodeIDs := make(map[interface{}]struct{}, len(nodes))
	for i, n := range nodes {
		node := asObject(n)

		id, hasID := node["id"]
		if !hasID {
			errs = append(errs, fmt.Sprintf("Node at index %d missing 'id'", i))
		} else if isHashable(id) {
			nodeIDs[id] = struct{}{}
		}

		if _, hasType := node["type"]; !hasType {
			label := interface{}(i)
			if hasID {
				label = id
			}
			errs = append(errs, fmt.Sprintf("Node %v missing 'type'", label))
		}
	}

	return errs
}

// validateEdges checks the edge list
func (v *Validator) validateEdges(raw interface{}) []string {
	edges, ok := raw.([]interface{})
	if !ok {
		return []string{"'edges' must be an array"}
	}

	var errs []string
	for i, e := range edges {
		edge := asObject(e)
		if _, ok := edge["from"]; !ok {
			errs = append(errs, fmt.Sprintf("Edge at index %d missing 'from'", i))
		}
		if _, ok := edge["to"]; !ok {
			errs = append(errs, fmt.Sprintf("Edge at index %d missing 'to'", i))
		}
	}

	return errs
}

// asObject returns v as a JSON object, or an empty object for any other value
func asObject(v interface{}) map[string]interface{} {
	switch obj := v.(type) {
	case map[string]interface{}:
		return obj
	case domain.FlowGraph:
		return obj
	default:
		return nil
	}
}

// countOf returns the length of a JSON array and zero for anything else
func countOf(v interface{}) int {
	if list, ok := v.([]interface{}); ok {
		return len(list)
	}
	return 0
}

// isHashable reports whether v can be used as a map key
func isHashable(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return false
	default:
		return true
	}
}
