package matching

import "strings"

// gradeAliases maps cleaned grade spellings to their canonical token.
// Canonical tokens map to themselves so normalization is idempotent.
var gradeAliases = map[string]string{
	"pre":             "Pre",
	"prek":            "Pre",
	"prekindergarten": "Pre",
	"preschool":       "Pre",
	"pk":              "Pre",
	"k":               "K",
	"kg":              "K",
	"kinder":          "K",
	"kindergarten":    "K",
	"first":           "1",
	"second":          "2",
	"third":           "3",
	"fourth":          "4",
	"fifth":           "5",
	"sixth":           "6",
	"seventh":         "7",
	"eighth":          "8",
	"ninth":           "9",
	"tenth":           "10",
	"eleventh":        "11",
	"twelfth":         "12",
}

// NormalizeGrade maps heterogeneous grade spellings ("K", "Kindergarten",
// "3rd", "Third", "03") onto one of Pre, K, 1..12. Unrecognized input is
// reduced to its lowercase alphanumeric form rather than discarded, so two
// identical-but-unknown tokens still compare equal. Grade equality is only
// ever a secondary signal, never an identifier on its own.
func NormalizeGrade(raw string) string {
	cleaned := cleanGradeToken(raw)
	if cleaned == "" {
		return ""
	}

	cleaned = strings.TrimPrefix(cleaned, "grade")
	if cleaned == "" {
		return ""
	}

	if canonical, ok := gradeAliases[cleaned]; ok {
		return canonical
	}

	if num := trimOrdinalSuffix(cleaned); isDigits(num) {
		num = strings.TrimLeft(num, "0")
		if num == "" {
			num = "0"
		}
		return num
	}

	return cleaned
}

func cleanGradeToken(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// trimOrdinalSuffix strips "st", "nd", "rd", "th" from numeral tokens like
// "3rd" or "11th". Non-numeric prefixes are returned unchanged.
func trimOrdinalSuffix(s string) string {
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		if trimmed, ok := strings.CutSuffix(s, suffix); ok && isDigits(trimmed) && trimmed != "" {
			return trimmed
		}
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
