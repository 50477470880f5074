package eval

import (
	"encoding/json"
	"fmt"

	"github.com/embedbench/sdk/tensor"
)

// JSON codec for Output payloads, used to move per-unit outputs across the
// work queue. Each payload kind encodes as null when absent, {"value": v}
// when single, and {"values": [...]} when a sequence; sequence elements
// recurse, so nesting survives a round trip exactly.

// MarshalJSON implements json.Marshaler.
func (sc Scalar) MarshalJSON() ([]byte, error) {
	switch sc.state {
	case payloadAbsent:
		return []byte("null"), nil
	case payloadSingle:
		return json.Marshal(struct {
			Value float64 `json:"value"`
		}{sc.value})
	default:
		items := sc.items
		if items == nil {
			items = []Scalar{}
		}
		return json.Marshal(struct {
			Values []Scalar `json:"values"`
		}{items})
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (sc *Scalar) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*sc = Scalar{}
		return nil
	}
	var raw struct {
		Value  *float64  `json:"value"`
		Values *[]Scalar `json:"values"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("eval: decode scalar payload: %w", err)
	}
	switch {
	case raw.Value != nil && raw.Values != nil:
		return fmt.Errorf("eval: scalar payload has both value and values")
	case raw.Value != nil:
		*sc = SingleScalar(*raw.Value)
	case raw.Values != nil:
		items := *raw.Values
		for i, it := range items {
			if !it.Present() {
				return fmt.Errorf("eval: scalar payload element %d is null", i)
			}
		}
		*sc = Scalar{state: payloadMany, items: items}
	default:
		return fmt.Errorf("eval: scalar payload has neither value nor values")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Artifact) MarshalJSON() ([]byte, error) {
	switch a.state {
	case payloadAbsent:
		return []byte("null"), nil
	case payloadSingle:
		return json.Marshal(struct {
			Value tensor.Dense `json:"value"`
		}{a.value})
	default:
		items := a.items
		if items == nil {
			items = []Artifact{}
		}
		return json.Marshal(struct {
			Values []Artifact `json:"values"`
		}{items})
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Artifact) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = Artifact{}
		return nil
	}
	var raw struct {
		Value  *tensor.Dense `json:"value"`
		Values *[]Artifact   `json:"values"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("eval: decode artifact payload: %w", err)
	}
	switch {
	case raw.Value != nil && raw.Values != nil:
		return fmt.Errorf("eval: artifact payload has both value and values")
	case raw.Value != nil:
		*a = SingleArtifact(*raw.Value)
	case raw.Values != nil:
		items := *raw.Values
		for i, it := range items {
			if !it.Present() {
				return fmt.Errorf("eval: artifact payload element %d is null", i)
			}
		}
		*a = Artifact{state: payloadMany, items: items}
	default:
		return fmt.Errorf("eval: artifact payload has neither value nor values")
	}
	return nil
}
