// Package strings holds small slice helpers shared by services.
package strings

import (
	"strings"
)

// Dedupe removes repeated values, keeping the first occurrence. The result is
// never nil so it encodes as an empty JSON array.
//
// Example:
//
//	Dedupe([]int{3, 1, 3, 2, 1})
//	// Returns: []int{3, 1, 2}
func Dedupe[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// DedupeAndTrim trims each element, drops blanks and repeats, and keeps
// first-seen order. The result is never nil.
//
// Example:
//
//	DedupeAndTrim([]string{"  U-1 ", "U-2", "U-1", "", "  "})
//	// Returns: []string{"U-1", "U-2"}
func DedupeAndTrim(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return Dedupe(trimmed)
}
