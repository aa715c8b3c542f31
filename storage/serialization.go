package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/talkops-ai/tfknowledge/core"
)

type nodeRecord struct {
	ID         string         `json:"id"`
	Label      core.NodeLabel `json:"label"`
	Content    string         `json:"content"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// MarshalNode serializes a node.
func MarshalNode(n *Node) ([]byte, error) {
	data, err := json.Marshal(nodeRecord(*n))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalNode deserializes a node. Integral numeric properties come back as
// int64, all other numbers as float64.
func UnmarshalNode(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec nodeRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	for k, v := range rec.Properties {
		rec.Properties[k] = fromNumber(v)
	}
	n := Node(rec)
	return &n, nil
}

// DecodeProperties decodes a JSON object of node properties with the same
// number handling as UnmarshalNode.
func DecodeProperties(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	props := map[string]any{}
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	for k, v := range props {
		props[k] = fromNumber(v)
	}
	return props, nil
}

func fromNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
