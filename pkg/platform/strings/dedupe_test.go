package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "repeated parameters",
			input:    []string{"CLI1", "CLI2"},
			expected: []string{"CLI1", "CLI2"},
		},
		{
			name:     "comma separated values",
			input:    []string{"CLI1, CLI2", "CLI3"},
			expected: []string{"CLI1", "CLI2", "CLI3"},
		},
		{
			name:     "drops duplicates and blanks",
			input:    []string{"CLI1,,CLI1", " ", "CLI2,CLI1"},
			expected: []string{"CLI1", "CLI2"},
		},
		{
			name:     "only blanks",
			input:    []string{" , ", ""},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  foo  ", "bar  ", "  baz"},
			expected: []string{"foo", "bar", "baz"},
		},
		{
			name:     "case sensitive",
			input:    []string{"CLI1", "cli1"},
			expected: []string{"CLI1", "cli1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
