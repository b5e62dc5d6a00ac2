package store

import (
	"bytes"
	"encoding/json"
)

// Category selects the default policy of a document.
type Category string

const (
	CategorySettings Category = "settings"
	CategoryCourses  Category = "courses"
	CategoryHistory  Category = "history"
	CategoryScenario Category = "scenario"
)

// Shape is the top-level JSON type a document must have.
type Shape int

const (
	ShapeObject Shape = iota
	ShapeArray
)

func (s Shape) String() string {
	if s == ShapeArray {
		return "array"
	}
	return "object"
}

// Policy says what a document category looks like and what replaces it when
// it is missing, empty or corrupt.
type Policy struct {
	Shape Shape

	// Default returns a fresh default value.
	Default func() any

	// Repair allows replacing an unreadable document with Default. When
	// false, an unreadable document is an error and is never rewritten.
	Repair bool

	// Salvage, when set, drops the parts of a well-shaped document whose
	// types do not match and returns what is left with the number dropped.
	// Only consulted when Repair is true.
	Salvage func(data []byte) (kept any, dropped int, err error)
}

// DefaultSettings is the settings document created on first use.
func DefaultSettings() map[string]any {
	return map[string]any{
		"admin_password": "1234",
		"language":       "ar",
		"theme":          "dark",
	}
}

// policies is the category → default table applied by every read.
var policies = map[Category]Policy{
	CategorySettings: {Shape: ShapeObject, Default: func() any { return DefaultSettings() }, Repair: true, Salvage: salvageFields[Settings]},
	CategoryCourses:  {Shape: ShapeArray, Default: func() any { return []any{} }, Repair: true, Salvage: salvageElements[Course]},
	CategoryHistory:  {Shape: ShapeArray, Default: func() any { return []any{} }, Repair: true, Salvage: salvageElements[HistoryRecord]},
	// Scenarios belong to the editor; a broken one is reported, not replaced
	CategoryScenario: {Shape: ShapeObject, Default: func() any { return map[string]any{} }, Repair: false},
}

// PolicyFor returns the policy of c. Unknown categories get an object
// document that is never repaired.
func PolicyFor(c Category) Policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return Policy{Shape: ShapeObject, Default: func() any { return map[string]any{} }}
}

// hasShape reports whether data is valid JSON of the given top-level shape.
func hasShape(data []byte, shape Shape) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return false
	}
	switch shape {
	case ShapeArray:
		return trimmed[0] == '['
	default:
		return trimmed[0] == '{'
	}
}

// salvageElements keeps the elements of a JSON array that decode as T,
// unchanged, and counts the rest.
func salvageElements[T any](data []byte) (any, int, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, 0, err
	}

	kept := make([]json.RawMessage, 0, len(elems))
	for _, e := range elems {
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			continue
		}
		kept = append(kept, e)
	}
	return kept, len(elems) - len(kept), nil
}

// salvageFields keeps the members of a JSON object whose values decode into
// the matching field of T, and counts the rest. Unknown members are kept.
func salvageFields[T any](data []byte) (any, int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, 0, err
	}

	dropped := 0
	for name, value := range fields {
		single, err := json.Marshal(map[string]json.RawMessage{name: value})
		if err != nil {
			return nil, 0, err
		}
		var v T
		if err := json.Unmarshal(single, &v); err != nil {
			delete(fields, name)
			dropped++
		}
	}
	return fields, dropped, nil
}
