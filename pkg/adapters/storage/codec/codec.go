// Package codec defines the persisted form of conversation state.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/aescanero/dago-turns/pkg/domain"
)

// ErrCyclicMetadata is returned when metadata contains itself
var ErrCyclicMetadata = errors.New("metadata contains a cycle")

// StateKey returns the namespaced key for a conversation's state
func StateKey(tenantID, conversationID string) string {
	return fmt.Sprintf("conversation:%s:%s:state", tenantID, conversationID)
}

// Encode serializes state to JSON. Metadata values JSON cannot represent
// natively are stored in their string form. Cyclic metadata, or a value
// whose String or Error method panics, yields an error.
func Encode(state *domain.ConversationState) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("failed to encode metadata: %v", r)
		}
	}()

	doc := *state
	if state.Metadata != nil {
		n := normalizer{path: make(map[uintptr]bool)}
		doc.Metadata, err = n.normalizeMap(state.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}
	if doc.Messages == nil {
		doc.Messages = []domain.Message{}
	}

	data, err = json.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

// Decode parses state previously produced by Encode
func Decode(data []byte) (*domain.ConversationState, error) {
	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.Messages == nil {
		state.Messages = []domain.Message{}
	}
	return &state, nil
}

// normalizer tracks the containers on the current path so self-references
// are reported instead of recursing forever
type normalizer struct {
	path map[uintptr]bool
}

func (n normalizer) enter(v interface{}) (uintptr, error) {
	ptr := reflect.ValueOf(v).Pointer()
	if ptr == 0 {
		return 0, nil
	}
	if n.path[ptr] {
		return 0, ErrCyclicMetadata
	}
	n.path[ptr] = true
	return ptr, nil
}

func (n normalizer) leave(ptr uintptr) {
	if ptr != 0 {
		delete(n.path, ptr)
	}
}

func (n normalizer) normalizeMap(m map[string]interface{}) (map[string]interface{}, error) {
	ptr, err := n.enter(m)
	if err != nil {
		return nil, err
	}
	defer n.leave(ptr)

	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if out[k], err = n.normalize(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// normalize rewrites v into a tree of JSON-native values
func (n normalizer) normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, bool, string, json.Number, json.RawMessage,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Sprint(val), nil
		}
		return val, nil
	case float32:
		return n.normalize(float64(val))
	case map[string]interface{}:
		if val == nil {
			return nil, nil
		}
		return n.normalizeMap(val)
	case []interface{}:
		if val == nil {
			return nil, nil
		}
		if len(val) == 0 {
			return []interface{}{}, nil
		}
		ptr, err := n.enter(val)
		if err != nil {
			return nil, err
		}
		defer n.leave(ptr)

		out := make([]interface{}, len(val))
		for i, item := range val {
			if out[i], err = n.normalize(item); err != nil {
				return nil, err
			}
		}
		return out, nil
	case []string:
		return val, nil
	case time.Time:
		return val.Format(time.RFC3339Nano), nil
	case time.Duration:
		return val.String(), nil
	}

	if isNil(v) {
		return nil, nil
	}

	switch val := v.(type) {
	case error:
		return val.Error(), nil
	case fmt.Stringer:
		return val.String(), nil
	}

	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v), nil
	}
	return v, nil
}

func isNil(v interface{}) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
