// Package strings provides small string-set utilities shared across the
// authorization flow, mainly for OAuth scope handling.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice, trimming
// whitespace from each element. Order is preserved.
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

// Union merges additions into base, preserving base order and appending new
// elements in their first-seen order. The result never contains duplicates
// or empty strings. base is not mutated.
func Union(base, additions []string) []string {
	result := DedupeAndTrim(append(append([]string(nil), base...), additions...))
	return result
}

// SplitScope splits a space-delimited scope string into its tokens, dropping
// empty runs and duplicates.
func SplitScope(scope string) []string {
	return DedupeAndTrim(strings.Fields(scope))
}

// JoinScope renders a scope token set back into its space-delimited wire
// form.
func JoinScope(tokens []string) string {
	return strings.Join(DedupeAndTrim(tokens), " ")
}
