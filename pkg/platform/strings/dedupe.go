// Package strings provides helpers for list-valued query parameters.
package strings

import (
	"strings"
)

// SplitList flattens repeated and comma-separated values into one list,
// trimming whitespace and dropping empties and duplicates. Order of first
// occurrence is preserved.
//
// Example:
//
//	SplitList([]string{"A, B", "C", "A", " "})
//	// Returns: []string{"A", "B", "C"}
func SplitList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strings.Split(v, ",")...)
	}
	return DedupeAndTrim(parts)
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
