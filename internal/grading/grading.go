// Package grading decides whether submitted answers are correct. It is pure
// string comparison: no persistence, no side effects, the same inputs always
// yield the same verdict, so attempts can safely be re-scored.
package grading

import "strings"

// Normalize canonicalizes an answer for comparison: surrounding whitespace
// stripped, case folded. Applied identically to submitted and reference
// strings.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsCorrect reports whether a submitted answer matches the question's correct
// answer or any alternative accepted answer. The check is uniform across
// question types: true/false reduces to comparing "true"/"false" tokens, and
// alternatives (populated for text input in practice) are consulted for every
// type. An empty submission is never correct.
func IsCorrect(submitted, correctAnswer string, alternativeAnswers []string) bool {
	normalized := Normalize(submitted)
	if normalized == "" {
		return false
	}

	if normalized == Normalize(correctAnswer) {
		return true
	}
	for _, alt := range alternativeAnswers {
		if normalized == Normalize(alt) {
			return true
		}
	}
	return false
}
