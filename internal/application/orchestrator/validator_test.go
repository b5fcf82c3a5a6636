package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlow(t *testing.T, doc string) domain.FlowGraph {
	t.Helper()

	var flow domain.FlowGraph
	require.NoError(t, json.Unmarshal([]byte(doc), &flow))
	return flow
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		doc       string
		valid     bool
		errors    []string
		nodeCount int
		edgeCount int
	}{
		{
			name:   "empty graph is valid",
			doc:    `{"nodes": [], "edges": []}`,
			valid:  true,
			errors: []string{},
		},
		{
			name:      "well formed graph",
			doc:       `{"nodes": [{"id": "kb_search", "type": "tool"}, {"id": "get_feedback", "type": "user_input"}], "edges": [{"from": "kb_search", "to": "get_feedback"}]}`,
			valid:     true,
			errors:    []string{},
			nodeCount: 2,
			edgeCount: 1,
		},
		{
			name:   "missing both arrays",
			doc:    `{}`,
			errors: []string{"Missing 'nodes' array", "Missing 'edges' array"},
		},
		{
			name:      "missing nodes",
			doc:       `{"edges": [{"from": "a", "to": "b"}]}`,
			errors:    []string{"Missing 'nodes' array"},
			edgeCount: 1,
		},
		{
			name:      "missing edges",
			doc:       `{"nodes": [{"id": "a", "type": "tool"}]}`,
			errors:    []string{"Missing 'edges' array"},
			nodeCount: 1,
		},
		{
			name:      "node missing type references its id and edge missing to references its index",
			doc:       `{"nodes": [{"id": "a"}], "edges": [{"from": "a"}]}`,
			errors:    []string{"Node a missing 'type'", "Edge at index 0 missing 'to'"},
			nodeCount: 1,
			edgeCount: 1,
		},
		{
			name:      "node missing id and type references index twice",
			doc:       `{"nodes": [{"id": "a", "type": "tool"}, {}], "edges": []}`,
			errors:    []string{"Node at index 1 missing 'id'", "Node 1 missing 'type'"},
			nodeCount: 2,
		},
		{
			name:      "edge missing both endpoints",
			doc:       `{"nodes": [], "edges": [{"from": "a", "to": "b"}, {"condition": "x"}]}`,
			errors:    []string{"Edge at index 1 missing 'from'", "Edge at index 1 missing 'to'"},
			edgeCount: 2,
		},
		{
			name:   "non array fields are reported and skipped",
			doc:    `{"nodes": {"id": "a"}, "edges": "a->b"}`,
			errors: []string{"'nodes' must be an array", "'edges' must be an array"},
		},
		{
			name:      "one bad field does not stop checking the other",
			doc:       `{"nodes": 7, "edges": [{"to": "b"}]}`,
			errors:    []string{"'nodes' must be an array", "Edge at index 0 missing 'from'"},
			edgeCount: 1,
		},
		{
			name:   "null arrays are not arrays",
			doc:    `{"nodes": null, "edges": null}`,
			errors: []string{"'nodes' must be an array", "'edges' must be an array"},
		},
		{
			name:      "non object elements miss every key",
			doc:       `{"nodes": ["a"], "edges": [1]}`,
			errors:    []string{"Node at index 0 missing 'id'", "Node 0 missing 'type'", "Edge at index 0 missing 'from'", "Edge at index 0 missing 'to'"},
			nodeCount: 1,
			edgeCount: 1,
		},
		{
			name:      "duplicate ids and dangling edges are accepted",
			doc:       `{"nodes": [{"id": "a", "type": "tool"}, {"id": "a", "type": "llm"}], "edges": [{"from": "a", "to": "ghost"}]}`,
			valid:     true,
			errors:    []string{},
			nodeCount: 2,
			edgeCount: 1,
		},
		{
			name:      "numeric ids are rendered as is",
			doc:       `{"nodes": [{"id": 42}], "edges": []}`,
			errors:    []string{"Node 42 missing 'type'"},
			nodeCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(parseFlow(t, tt.doc))

			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.errors, result.Errors)
			assert.Equal(t, tt.nodeCount, result.NodeCount)
			assert.Equal(t, tt.edgeCount, result.EdgeCount)
		})
	}

	t.Run("nil graph", func(t *testing.T) {
		result := v.Validate(nil)
		assert.False(t, result.Valid)
		assert.Len(t, result.Errors, 2)
	})

	t.Run("deterministic", func(t *testing.T) {
		flow := parseFlow(t, `{"nodes": [{}, {"id": "b"}], "edges": [{}]}`)
		assert.Equal(t, v.Validate(flow), v.Validate(flow))
	})
}
