package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// record is a loosely-typed upstream JSON object
type record map[string]json.RawMessage

func toRecord(raw json.RawMessage) (record, bool) {
	obj, ok := asObject(raw)
	return record(obj), ok
}

func (r record) has(key string) bool {
	v, ok := r[key]
	return ok && !isNull(v)
}

// str returns the first present key as a string. Numbers are formatted.
func (r record) str(keys ...string) string {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || isNull(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

// num returns the first present numeric key. Numeric strings are accepted.
func (r record) num(keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || isNull(v) {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func (r record) integer(keys ...string) int64 {
	f, _ := r.num(keys...)
	return int64(f)
}

func (r record) obj(key string) record {
	inner, ok := asObject(r[key])
	if !ok {
		return record{}
	}
	return inner
}

func (r record) list(keys ...string) []json.RawMessage {
	for _, key := range keys {
		if items, ok := asArray(r[key]); ok {
			return items
		}
	}
	return nil
}

// timestamp returns the first present key parsed as a timestamp. Strings are
// read as RFC 3339 (or a plain date); numbers as epoch milliseconds, or
// seconds when too small to be milliseconds.
func (r record) timestamp(keys ...string) *time.Time {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || isNull(v) {
			continue
		}
		if t, ok := parseTime(v); ok {
			return &t
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(v json.RawMessage) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}

	var n float64
	if err := json.Unmarshal(v, &n); err != nil || n <= 0 {
		return time.Time{}, false
	}
	if n < 1e11 {
		return time.Unix(int64(n), 0).UTC(), true
	}
	return time.UnixMilli(int64(n)).UTC(), true
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
