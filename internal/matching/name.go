// Package matching implements the record-linkage engine that resolves
// uploaded dataset rows against the enrolled-student roster. Everything in
// this package is a pure function of its inputs; persistence and transport
// live in the service layer.
package matching

import "strings"

// NameFormat tags the input shape a name was parsed from. It is kept for
// diagnostics only and never feeds a matching decision.
type NameFormat string

const (
	FormatSplit     NameFormat = "split"
	FormatLastFirst NameFormat = "last-first"
	FormatFirstLast NameFormat = "first-last"
	FormatSingle    NameFormat = "single"
	FormatEmpty     NameFormat = "empty"
)

// Name is the structured form every free-text name resolves to.
type Name struct {
	First  string
	Last   string
	Format NameFormat
}

// ParseName resolves the three name shapes an adapter can hand us: a
// separate first/last pair, a "Last, First" string, or a "First Last"
// string. A bare single token yields an empty last name and is treated as
// low-information input downstream.
func ParseName(first, last, full string) Name {
	first = stripQuotes(strings.TrimSpace(first))
	last = stripQuotes(strings.TrimSpace(last))
	if first != "" || last != "" {
		return Name{First: first, Last: last, Format: FormatSplit}
	}
	return parseFullName(full)
}

func parseFullName(raw string) Name {
	raw = stripQuotes(strings.TrimSpace(raw))
	if raw == "" {
		return Name{Format: FormatEmpty}
	}

	if idx := strings.Index(raw, ","); idx >= 0 {
		last := strings.TrimSpace(raw[:idx])
		first := strings.TrimSpace(raw[idx+1:])
		return Name{First: first, Last: last, Format: FormatLastFirst}
	}

	tokens := strings.Fields(raw)
	if len(tokens) == 1 {
		return Name{First: tokens[0], Format: FormatSingle}
	}
	return Name{
		First:  tokens[0],
		Last:   strings.Join(tokens[1:], " "),
		Format: FormatFirstLast,
	}
}

// Key returns the fixed "<lastname> <firstname>" comparison key in
// canonical form, so equality checks are deterministic across sources.
func (n Name) Key() string {
	return joinKey(Canonical(n.Last), Canonical(n.First))
}

// ReversedKey swaps the parts, used by the fuzzy stage to tolerate
// first/last inversions in the source file.
func (n Name) ReversedKey() string {
	return joinKey(Canonical(n.First), Canonical(n.Last))
}

// IsEmpty reports whether the name canonicalizes to nothing usable.
func (n Name) IsEmpty() bool {
	return n.Key() == ""
}

func joinKey(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// Canonical lowercases the input, drops every character outside [a-z]
// (punctuation, apostrophes, hyphens, digits), and collapses whitespace.
// Idempotent: Canonical(Canonical(s)) == Canonical(s).
func Canonical(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			pendingSpace = true
		}
	}
	return b.String()
}

// stripQuotes removes surrounding quote characters left behind by
// spreadsheet exports.
func stripQuotes(s string) string {
	return strings.Trim(s, `"'`)
}
