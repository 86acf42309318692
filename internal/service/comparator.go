package service

import "strings"

// Verdict is the scoring decision for one submission.
type Verdict struct {
	Matched bool
	Score   float64
}

// CompareOutput trims surrounding whitespace from both outputs and compares
// the remainder byte for byte. A match earns the full weight.
func CompareOutput(actual, expected string, weight float64) Verdict {
	if strings.TrimSpace(actual) == strings.TrimSpace(expected) {
		return Verdict{Matched: true, Score: weight}
	}
	return Verdict{}
}
