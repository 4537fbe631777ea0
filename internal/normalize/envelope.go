// Package normalize converts the upstream API's divergent response shapes
// into the console's canonical collections. Nothing in this package returns
// an error: an unrecognized shape is treated as "no data".
package normalize

import (
	"bytes"
	"encoding/json"
)

// envelope matches one response shape and extracts the item list from it
type envelope struct {
	name  string
	match func(raw []byte, resource string) ([]json.RawMessage, bool)
}

// envelopes is tried in order; the first match wins.
var envelopes = []envelope{
	{name: "array", match: matchArray},
	{name: "data", match: matchData},
	{name: "named", match: matchNamed},
	{name: "completed", match: matchCompleted},
}

// List extracts the item list for resource from raw. It accepts a bare array,
// {data:[...]}, {<resource>:[...]} and {<resource>:{completed:[...]}}, in that
// order, and returns an empty list for anything else.
func List(raw []byte, resource string) []json.RawMessage {
	for _, env := range envelopes {
		if items, ok := env.match(raw, resource); ok {
			return items
		}
	}
	return []json.RawMessage{}
}

// Shape reports which envelope matched raw, or "" when none did
func Shape(raw []byte, resource string) string {
	for _, env := range envelopes {
		if _, ok := env.match(raw, resource); ok {
			return env.name
		}
	}
	return ""
}

func matchArray(raw []byte, _ string) ([]json.RawMessage, bool) {
	return asArray(raw)
}

func matchData(raw []byte, _ string) ([]json.RawMessage, bool) {
	obj, ok := asObject(raw)
	if !ok {
		return nil, false
	}
	return asArray(obj["data"])
}

func matchNamed(raw []byte, resource string) ([]json.RawMessage, bool) {
	obj, ok := asObject(raw)
	if !ok {
		return nil, false
	}
	return asArray(obj[resource])
}

func matchCompleted(raw []byte, resource string) ([]json.RawMessage, bool) {
	obj, ok := asObject(raw)
	if !ok {
		return nil, false
	}
	inner, ok := asObject(obj[resource])
	if !ok {
		return nil, false
	}
	return asArray(inner["completed"])
}

func asArray(raw []byte) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, true
}

func asObject(raw []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// single unwraps a one-object response, accepting {data:{...}} and
// {<resource>:{...}} around the object itself.
func single(raw []byte, resource string) record {
	obj, ok := asObject(raw)
	if !ok {
		return record{}
	}
	if inner, ok := asObject(obj["data"]); ok {
		return inner
	}
	if inner, ok := asObject(obj[resource]); ok {
		return inner
	}
	return obj
}
