package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "string", raw: `"hello"`, expected: "hello"},
		{name: "integer", raw: `42`, expected: "42"},
		{name: "float", raw: `3.5`, expected: "3.5"},
		{name: "bool", raw: `true`, expected: "true"},
		{name: "null", raw: `null`, expected: ""},
		{name: "object falls back to raw", raw: `{"a":1}`, expected: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FlexibleStringValue(json.RawMessage(tt.raw)))
		})
	}
}

func TestFlexibleInt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{name: "number", input: `85`, expected: 85},
		{name: "float truncates", input: `85.7`, expected: 85},
		{name: "numeric string", input: `"72"`, expected: 72},
		{name: "padded numeric string", input: `" 60 "`, expected: 60},
		{name: "null is zero", input: `null`, expected: 0},
		{name: "non-numeric string fails", input: `"high"`, wantErr: true},
		{name: "object fails", input: `{"score": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexibleInt
			err := json.Unmarshal([]byte(tt.input), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.Int())
		})
	}
}

func TestFlexibleStringList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "string list", input: `["a", "b"]`, expected: []string{"a", "b"}},
		{name: "mixed list", input: `["a", 2, true]`, expected: []string{"a", "2", "true"}},
		{name: "list of objects", input: `[{"finding": "x"}]`, expected: []string{`{"finding": "x"}`}},
		{name: "bare string becomes single element", input: `"only one"`, expected: []string{"only one"}},
		{name: "null is nil", input: `null`, expected: nil},
		{name: "empty list", input: `[]`, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexibleStringList
			err := json.Unmarshal([]byte(tt.input), &f)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, []string(f))
		})
	}
}

func TestFlexibleFieldsInStruct(t *testing.T) {
	type report struct {
		Score    FlexibleInt        `json:"score"`
		Findings FlexibleStringList `json:"findings"`
	}

	var r report
	err := json.Unmarshal([]byte(`{"score": "88", "findings": "all good"}`), &r)
	require.NoError(t, err)
	assert.Equal(t, 88, r.Score.Int())
	assert.Equal(t, []string{"all good"}, []string(r.Findings))
}
