// ABOUTME: Response normalization for inconsistently wrapped webhook bodies
// ABOUTME: Unwraps a leading array, then extracts a named field from the payload

package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Shape describes the top-level form of a response body.
type Shape int

const (
	ShapeEmpty  Shape = iota // null or no body at all
	ShapeArray               // [ ... ]
	ShapeObject              // { ... }
	ShapeScalar              // string, number or boolean
)

func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeArray:
		return "array"
	case ShapeObject:
		return "object"
	case ShapeScalar:
		return "scalar"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Payload is the logical object carried by a response, possibly absent.
type Payload struct {
	obj Record
}

// Present reports whether the response carried an object.
func (p Payload) Present() bool {
	return p.obj != nil
}

// Object returns the payload object, or nil when absent.
func (p Payload) Object() Record {
	return p.obj
}

// Field returns the named field, or nil when the payload or field is absent.
func (p Payload) Field(name string) any {
	if p.obj == nil {
		return nil
	}
	return p.obj[name]
}

// Records extracts a list of objects from the named field. An absent or
// null field yields an empty list. Non-object elements are skipped.
func (p Payload) Records(name string) ([]Record, error) {
	items, err := p.list(name)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, Record(rec))
		}
	}
	return out, nil
}

// Strings extracts a list of strings from the named field. An absent or
// null field yields an empty list.
func (p Payload) Strings(name string) ([]string, error) {
	items, err := p.list(name)
	if err != nil {
		return nil, err
	}
	return textList(items), nil
}

func (p Payload) list(name string) ([]any, error) {
	switch v := p.Field(name).(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("field %q is %T, not a list", name, v)
	}
}

// Normalize applies the unwrap rule shared by every endpoint: a sequence
// yields its first element, anything else is the payload itself. Only an
// object counts as a present payload.
func Normalize(body []byte) (Payload, Shape, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Payload{}, ShapeEmpty, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Payload{}, ShapeEmpty, fmt.Errorf("decoding response body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Payload{}, ShapeEmpty, fmt.Errorf("decoding response body: trailing data")
	}

	switch t := v.(type) {
	case nil:
		return Payload{}, ShapeEmpty, nil
	case []any:
		if len(t) == 0 {
			return Payload{}, ShapeArray, nil
		}
		obj, _ := t[0].(map[string]any)
		return Payload{obj: obj}, ShapeArray, nil
	case map[string]any:
		return Payload{obj: t}, ShapeObject, nil
	default:
		return Payload{}, ShapeScalar, nil
	}
}
