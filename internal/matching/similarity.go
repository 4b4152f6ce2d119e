package matching

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity scores two strings on a 0-100 scale: 100 minus the Levenshtein
// edit distance between their canonical forms, normalized by the longer
// length and floor-clamped at 0. Symmetric and deterministic. If either
// input canonicalizes to the empty string the score is 0 — an empty name is
// never a match, and we never divide by zero.
func Similarity(a, b string) int {
	ca := Canonical(a)
	cb := Canonical(b)
	if ca == "" || cb == "" {
		return 0
	}
	if ca == cb {
		return 100
	}

	longer := len(ca)
	if len(cb) > longer {
		longer = len(cb)
	}

	distance := levenshtein.ComputeDistance(ca, cb)
	score := 100 - (distance*100)/longer
	if score < 0 {
		return 0
	}
	return score
}

// TeacherSimilar reports whether two teacher/homeroom labels plausibly
// refer to the same classroom: one contains the other after
// canonicalization, or their similarity clears 80.
func TeacherSimilar(a, b string) bool {
	ca := Canonical(a)
	cb := Canonical(b)
	if ca == "" || cb == "" {
		return false
	}
	if strings.Contains(ca, cb) || strings.Contains(cb, ca) {
		return true
	}
	return Similarity(ca, cb) > 80
}
