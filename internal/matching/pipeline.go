package matching

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sis-match-api/internal/models"
)

// Params carries every tunable of the pipeline. The shipped defaults were
// inherited from the legacy matcher; operators can override any of them
// through configuration.
type Params struct {
	FuzzyThreshold         int
	IDConfidence           int
	NameGradeConfidence    int
	NameOnlyConfidence     int
	GradeBoost             int
	TeacherBoost           int
	GradeMismatchPenalty   int
	TeacherMismatchPenalty int
	MaxAlternatives        int
}

// DefaultParams returns the legacy-compatible tuning.
func DefaultParams() Params {
	return Params{
		FuzzyThreshold:         70,
		IDConfidence:           95,
		NameGradeConfidence:    85,
		NameOnlyConfidence:     75,
		GradeBoost:             10,
		TeacherBoost:           5,
		GradeMismatchPenalty:   15,
		TeacherMismatchPenalty: 5,
		MaxAlternatives:        5,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.FuzzyThreshold <= 0 {
		p.FuzzyThreshold = def.FuzzyThreshold
	}
	if p.IDConfidence <= 0 {
		p.IDConfidence = def.IDConfidence
	}
	if p.NameGradeConfidence <= 0 {
		p.NameGradeConfidence = def.NameGradeConfidence
	}
	if p.NameOnlyConfidence <= 0 {
		p.NameOnlyConfidence = def.NameOnlyConfidence
	}
	if p.MaxAlternatives <= 0 {
		p.MaxAlternatives = def.MaxAlternatives
	}
	return p
}

// Match resolves one candidate row against the roster index. Strategies run
// in order — exact id, name+grade, name-only, fuzzy — and the first one to
// produce a single unambiguous winner ends the pipeline. Ties are never
// broken by guessing: the row comes back unmatched with every tied student
// listed as an alternative, in roster-id order. Pure function, no I/O.
func Match(row models.CandidateRow, idx *RosterIndex, p Params) models.MatchResult {
	p = p.withDefaults()

	if result, conclusive := matchByID(row, idx, p); conclusive {
		return result
	}

	name := ParseName(row.FirstName, row.LastName, row.FullName)
	key := name.Key()
	if key == "" {
		if row.StudentID == "" {
			return unmatched(models.MatchByNone, "insufficient identifying information")
		}
		return unmatched(models.MatchByNone, fmt.Sprintf("student id %q not found in roster and no usable name", row.StudentID))
	}

	if result, conclusive := matchByNameGrade(row, key, idx, p); conclusive {
		return result
	}

	if result, conclusive := matchByNameOnly(row, key, idx, p); conclusive {
		return result
	}

	return matchByFuzzy(row, name, idx, p)
}

func matchByID(row models.CandidateRow, idx *RosterIndex, p Params) (models.MatchResult, bool) {
	if row.StudentID == "" {
		return models.MatchResult{}, false
	}
	student := idx.ByNumber(row.StudentID)
	if student == nil {
		return models.MatchResult{}, false
	}

	result := models.MatchResult{
		Matched:          true,
		MatchedStudentID: student.ID,
		Confidence:       p.IDConfidence,
		Band:             models.BandExact,
		MatchedBy:        models.MatchByID,
		Reason:           fmt.Sprintf("student number %s matched %s", NormalizeStudentNumber(row.StudentID), student.FullName()),
	}
	// A conflicting grade is surfaced as a warning but never overrides an
	// exact id hit.
	if gradesConflict(row.Grade, student.Grade) {
		result.GradeMismatch = true
		result.Reason += fmt.Sprintf(" (grade %q does not match roster grade %q)", row.Grade, student.Grade)
	}
	return result, true
}

func matchByNameGrade(row models.CandidateRow, key string, idx *RosterIndex, p Params) (models.MatchResult, bool) {
	if row.Grade == "" {
		return models.MatchResult{}, false
	}
	grade := NormalizeGrade(row.Grade)

	var survivors []*models.EnrolledStudent
	for _, student := range idx.ByNameKey(key) {
		if NormalizeGrade(student.Grade) == grade {
			survivors = append(survivors, student)
		}
	}
	if len(survivors) != 1 {
		return models.MatchResult{}, false
	}

	student := survivors[0]
	return models.MatchResult{
		Matched:          true,
		MatchedStudentID: student.ID,
		Confidence:       p.NameGradeConfidence,
		Band:             models.BandHigh,
		MatchedBy:        models.MatchByNameGrade,
		Reason:           fmt.Sprintf("exact name and grade matched %s (grade %s)", student.FullName(), student.Grade),
	}, true
}

func matchByNameOnly(row models.CandidateRow, key string, idx *RosterIndex, p Params) (models.MatchResult, bool) {
	candidates := idx.ByNameKey(key)
	switch len(candidates) {
	case 0:
		return models.MatchResult{}, false
	case 1:
		student := candidates[0]
		result := models.MatchResult{
			Matched:          true,
			MatchedStudentID: student.ID,
			Confidence:       p.NameOnlyConfidence,
			Band:             models.BandMedium,
			MatchedBy:        models.MatchByNameOnly,
			Reason:           fmt.Sprintf("exact name matched %s", student.FullName()),
		}
		if gradesConflict(row.Grade, student.Grade) {
			result.GradeMismatch = true
		}
		return result, true
	default:
		// Candidates arrive pre-sorted by roster id from the index.
		result := unmatched(models.MatchByNone, fmt.Sprintf("%d enrolled students share this name; cannot link without more information", len(candidates)))
		result.Ambiguous = true
		for _, student := range candidates {
			if len(result.Alternatives) == p.MaxAlternatives {
				break
			}
			result.Alternatives = append(result.Alternatives, models.Alternative{
				StudentID: student.ID,
				Name:      student.FullName(),
				Score:     100,
			})
		}
		return result, true
	}
}

type fuzzyCandidate struct {
	student  *models.EnrolledStudent
	base     int
	adjusted int
}

func matchByFuzzy(row models.CandidateRow, name Name, idx *RosterIndex, p Params) models.MatchResult {
	grade := NormalizeGrade(row.Grade)
	key := name.Key()

	scored := make([]fuzzyCandidate, 0, 8)
	for i := range idx.Students() {
		student := &idx.Students()[i]
		studentName := ParseName(student.FirstName, student.LastName, "")

		base := Similarity(key, studentName.Key())
		// A reversed comparison tolerates first/last swaps in the source.
		if swapped := Similarity(key, studentName.ReversedKey()); swapped > base {
			base = swapped
		}
		if base == 0 {
			continue
		}

		adjusted := base
		if row.Grade != "" && student.Grade != "" {
			if NormalizeGrade(student.Grade) == grade {
				adjusted += p.GradeBoost
			} else {
				adjusted -= p.GradeMismatchPenalty
			}
		}
		if row.Teacher != "" && student.Teacher != "" {
			if TeacherSimilar(row.Teacher, student.Teacher) {
				adjusted += p.TeacherBoost
			} else {
				adjusted -= p.TeacherMismatchPenalty
			}
		}
		if adjusted < 0 {
			adjusted = 0
		}
		if adjusted > 100 {
			adjusted = 100
		}

		scored = append(scored, fuzzyCandidate{student: student, base: base, adjusted: adjusted})
	}

	sort.Slice(scored, func(a, b int) bool {
		if scored[a].adjusted != scored[b].adjusted {
			return scored[a].adjusted > scored[b].adjusted
		}
		return scored[a].student.ID < scored[b].student.ID
	})

	retained := make([]fuzzyCandidate, 0, len(scored))
	for _, c := range scored {
		if c.base >= p.FuzzyThreshold {
			retained = append(retained, c)
		}
	}

	if len(retained) == 0 {
		result := unmatched(models.MatchByNone, fmt.Sprintf("no enrolled student scored at or above the %d%% similarity threshold", p.FuzzyThreshold))
		result.Alternatives = alternativesFrom(scored, p.MaxAlternatives)
		return result
	}

	if len(retained) > 1 && retained[0].adjusted == retained[1].adjusted {
		tied := retained[:0:0]
		for _, c := range retained {
			if c.adjusted == retained[0].adjusted {
				tied = append(tied, c)
			}
		}
		sort.Slice(tied, func(a, b int) bool { return tied[a].student.ID < tied[b].student.ID })
		result := unmatched(models.MatchByNone, fmt.Sprintf("%d enrolled students tied at similarity %d; refusing to guess", len(tied), retained[0].adjusted))
		result.Ambiguous = true
		result.Alternatives = alternativesFrom(tied, p.MaxAlternatives)
		return result
	}

	winner := retained[0]
	result := models.MatchResult{
		Matched:          true,
		MatchedStudentID: winner.student.ID,
		Confidence:       winner.adjusted,
		Band:             models.BandLow,
		MatchedBy:        models.MatchByFuzzy,
		Reason:           fmt.Sprintf("fuzzy name similarity %d%% matched %s", winner.adjusted, winner.student.FullName()),
	}
	if gradesConflict(row.Grade, winner.student.Grade) {
		result.GradeMismatch = true
	}
	if len(retained) > 1 {
		result.Alternatives = alternativesFrom(retained[1:], p.MaxAlternatives)
	}
	return result
}

func alternativesFrom(candidates []fuzzyCandidate, limit int) []models.Alternative {
	if len(candidates) == 0 {
		return nil
	}
	alternatives := make([]models.Alternative, 0, limit)
	for _, c := range candidates {
		if len(alternatives) == limit {
			break
		}
		alternatives = append(alternatives, models.Alternative{
			StudentID: c.student.ID,
			Name:      c.student.FullName(),
			Score:     c.adjusted,
		})
	}
	return alternatives
}

func gradesConflict(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeGrade(a) != NormalizeGrade(b)
}

func unmatched(method models.MatchMethod, reason string) models.MatchResult {
	return models.MatchResult{
		Matched:   false,
		Band:      models.BandUncertain,
		MatchedBy: method,
		Reason:    reason,
	}
}
