package ast

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON renders a Value tagged by its Kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(struct {
			Kind ValueKind `json:"kind"`
			Str  string    `json:"value"`
		}{v.Kind, v.Str})
	case ValueIdent:
		return json.Marshal(struct {
			Kind ValueKind `json:"kind"`
			Str  string    `json:"value"`
		}{v.Kind, v.Str})
	case ValueNumber:
		return json.Marshal(struct {
			Kind ValueKind `json:"kind"`
			Num  float64   `json:"value"`
		}{v.Kind, v.Num})
	case ValueBool:
		return json.Marshal(struct {
			Kind ValueKind `json:"kind"`
			Bool bool      `json:"value"`
		}{v.Kind, v.Bool})
	case ValueArray:
		return json.Marshal(struct {
			Kind  ValueKind `json:"kind"`
			Array []Value   `json:"value"`
		}{v.Kind, v.Array})
	default:
		return nil, fmt.Errorf("ast: unknown value kind %q", v.Kind)
	}
}

// UnmarshalJSON decodes a tagged Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind ValueKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	v.Kind = head.Kind
	switch head.Kind {
	case ValueString, ValueIdent:
		var body struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		v.Str = body.Value
	case ValueNumber:
		var body struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		v.Num = body.Value
	case ValueBool:
		var body struct {
			Value bool `json:"value"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		v.Bool = body.Value
	case ValueArray:
		var body struct {
			Value []Value `json:"value"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		v.Array = body.Value
	default:
		return fmt.Errorf("ast: unknown value kind %q", head.Kind)
	}
	return nil
}

// String renders a Value for diagnostics and debug printing.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return fmt.Sprintf("%q", v.Str)
	case ValueIdent:
		return v.Str
	case ValueNumber:
		return fmt.Sprintf("%g", v.Num)
	case ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValueArray:
		return fmt.Sprintf("%v", v.Array)
	default:
		return "<invalid value>"
	}
}
