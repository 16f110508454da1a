// Package jsonutil provides tolerant JSON decoding for LLM responses.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases
// where LLMs return numbers or booleans instead of strings. Returns empty
// string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleInt decodes an integer that an LLM may have emitted as a number,
// a numeric string, or a float.
type FlexibleInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexibleInt(num)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return fmt.Errorf("parse %q as number: %w", str, err)
		}
		*f = FlexibleInt(parsed)
		return nil
	}

	return fmt.Errorf("cannot decode %s as integer", s)
}

// Int returns the value as a plain int.
func (f FlexibleInt) Int() int {
	return int(f)
}

// FlexibleStringList decodes a list whose entries an LLM may have emitted as
// strings, numbers, booleans, or small objects. Objects are flattened to
// their JSON text. A bare string decodes to a single-element list.
type FlexibleStringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleStringList) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*f = nil
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err == nil {
		out := make([]string, 0, len(raws))
		for _, raw := range raws {
			out = append(out, FlexibleStringValue(raw))
		}
		*f = out
		return nil
	}

	// Not a list: treat the whole value as one entry.
	*f = []string{FlexibleStringValue(data)}
	return nil
}
