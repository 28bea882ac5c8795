package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SourceRecord is one legacy content item in one raw locale, keyed by the
// source system's suffixed field names. Records are never mutated; use Clone.
type SourceRecord map[string]any

// Clone returns a shallow copy of the record.
func (r SourceRecord) Clone() SourceRecord {
	out := make(SourceRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value at key rendered as a string, or "" when absent.
func (r SourceRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
