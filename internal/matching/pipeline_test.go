package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-match-api/internal/models"
)

func mustIndex(t *testing.T, roster []models.EnrolledStudent) *RosterIndex {
	t.Helper()
	idx, err := NewRosterIndex(roster)
	require.NoError(t, err)
	return idx
}

func TestMatchByIDExact(t *testing.T) {
	idx := mustIndex(t, testRoster())

	result := Match(models.CandidateRow{StudentID: "1001"}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.Equal(t, "S1", result.MatchedStudentID)
	assert.Equal(t, models.MatchByID, result.MatchedBy)
	assert.Equal(t, models.BandExact, result.Band)
	assert.GreaterOrEqual(t, result.Confidence, 90)
}

func TestMatchByIDTakesPrecedenceOverName(t *testing.T) {
	idx := mustIndex(t, testRoster())

	// The name belongs to a different student; the district id still wins.
	result := Match(models.CandidateRow{StudentID: "1001", FullName: "John Smith"}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.Equal(t, "S1", result.MatchedStudentID)
	assert.Equal(t, models.MatchByID, result.MatchedBy)
}

func TestMatchByIDGradeMismatchIsWarningOnly(t *testing.T) {
	idx := mustIndex(t, testRoster())

	result := Match(models.CandidateRow{StudentID: "1001", Grade: "5"}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.True(t, result.GradeMismatch)
	assert.Equal(t, models.MatchByID, result.MatchedBy)
}

func TestMatchByIDFormulaArtifact(t *testing.T) {
	idx := mustIndex(t, testRoster())

	result := Match(models.CandidateRow{StudentID: `="0001001"`}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.Equal(t, "S1", result.MatchedStudentID)
}

func TestMatchByNameGrade(t *testing.T) {
	idx := mustIndex(t, testRoster())

	result := Match(models.CandidateRow{FullName: "John Smith", Grade: "4"}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.Equal(t, "S4", result.MatchedStudentID)
	assert.Equal(t, models.MatchByNameGrade, result.MatchedBy)
	assert.Equal(t, models.BandHigh, result.Band)
}

func TestMatchByNameGradeDisambiguatesSharedName(t *testing.T) {
	idx := mustIndex(t, testRoster())

	// Two Sam Lees, but only one in grade 5.
	result := Match(models.CandidateRow{FullName: "Sam Lee", Grade: "5"}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.Equal(t, "S3", result.MatchedStudentID)
	assert.Equal(t, models.MatchByNameGrade, result.MatchedBy)
}

func TestMatchByNameOnly(t *testing.T) {
	idx := mustIndex(t, testRoster())

	result := Match(models.CandidateRow{FullName: "Diaz, Ana"}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.Equal(t, "S1", result.MatchedStudentID)
	assert.Equal(t, models.MatchByNameOnly, result.MatchedBy)
	assert.Equal(t, models.BandMedium, result.Band)
}

func TestMatchSharedNameWithoutGradeIsAmbiguous(t *testing.T) {
	idx := mustIndex(t, testRoster())

	result := Match(models.CandidateRow{FullName: "Sam Lee"}, idx, DefaultParams())
	assert.False(t, result.Matched)
	assert.True(t, result.Ambiguous)
	require.Len(t, result.Alternatives, 2)
	assert.Equal(t, "S2", result.Alternatives[0].StudentID)
	assert.Equal(t, "S3", result.Alternatives[1].StudentID)
}

func TestMatchByFuzzyUniqueTopScorer(t *testing.T) {
	idx := mustIndex(t, testRoster())

	// "Jon Smyth" vs "Smith, John" scores 80, above the default threshold.
	result := Match(models.CandidateRow{FullName: "Jon Smyth"}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.Equal(t, "S4", result.MatchedStudentID)
	assert.Equal(t, models.MatchByFuzzy, result.MatchedBy)
	assert.Equal(t, models.BandLow, result.Band)
	assert.GreaterOrEqual(t, result.Confidence, 70)
}

func TestMatchByFuzzyGradeBoost(t *testing.T) {
	idx := mustIndex(t, testRoster())

	plain := Match(models.CandidateRow{FullName: "Jon Smyth"}, idx, DefaultParams())
	boosted := Match(models.CandidateRow{FullName: "Jon Smyth", Grade: "4"}, idx, DefaultParams())
	require.True(t, plain.Matched)
	require.True(t, boosted.Matched)
	assert.Equal(t, plain.Confidence+DefaultParams().GradeBoost, boosted.Confidence)
}

func TestMatchByFuzzyGradeMismatchPenalty(t *testing.T) {
	idx := mustIndex(t, testRoster())

	plain := Match(models.CandidateRow{FullName: "Jon Smyth"}, idx, DefaultParams())
	penalized := Match(models.CandidateRow{FullName: "Jon Smyth", Grade: "2"}, idx, DefaultParams())
	require.True(t, plain.Matched)
	require.True(t, penalized.Matched)
	assert.Equal(t, plain.Confidence-DefaultParams().GradeMismatchPenalty, penalized.Confidence)
	assert.True(t, penalized.GradeMismatch)
}

func TestMatchByFuzzyTeacherBoost(t *testing.T) {
	idx := mustIndex(t, testRoster())

	plain := Match(models.CandidateRow{FullName: "Jon Smyth"}, idx, DefaultParams())
	boosted := Match(models.CandidateRow{FullName: "Jon Smyth", Teacher: "Johnson"}, idx, DefaultParams())
	require.True(t, boosted.Matched)
	assert.Equal(t, plain.Confidence+DefaultParams().TeacherBoost, boosted.Confidence)
}

func TestMatchByFuzzyTiedTopIsAmbiguous(t *testing.T) {
	roster := []models.EnrolledStudent{
		{ID: "S1", StudentNumber: "1", FirstName: "Jon", LastName: "Smith", Grade: "4"},
		{ID: "S2", StudentNumber: "2", FirstName: "Jan", LastName: "Smith", Grade: "4"},
	}
	idx := mustIndex(t, roster)

	// Equidistant from both roster names: one substitution each.
	result := Match(models.CandidateRow{FullName: "Jen Smith"}, idx, DefaultParams())
	assert.False(t, result.Matched)
	assert.True(t, result.Ambiguous)
	require.Len(t, result.Alternatives, 2)
	assert.Equal(t, "S1", result.Alternatives[0].StudentID)
	assert.Equal(t, "S2", result.Alternatives[1].StudentID)
}

func TestMatchByFuzzySwappedFirstLast(t *testing.T) {
	idx := mustIndex(t, testRoster())

	// First and last arrive swapped (and misspelled); the reversed
	// comparison still finds the roster's John Smith.
	result := Match(models.CandidateRow{FirstName: "Smith", LastName: "Johm"}, idx, DefaultParams())
	assert.True(t, result.Matched)
	assert.Equal(t, "S4", result.MatchedStudentID)
	assert.Equal(t, models.MatchByFuzzy, result.MatchedBy)
}

func TestMatchBelowThresholdUnmatched(t *testing.T) {
	idx := mustIndex(t, testRoster())

	result := Match(models.CandidateRow{FullName: "Zebulon Quarkowski"}, idx, DefaultParams())
	assert.False(t, result.Matched)
	assert.Equal(t, models.BandUncertain, result.Band)
	assert.Equal(t, models.MatchByNone, result.MatchedBy)
}

func TestMatchInsufficientInformation(t *testing.T) {
	idx := mustIndex(t, testRoster())

	result := Match(models.CandidateRow{Raw: map[string]string{"score": "82"}}, idx, DefaultParams())
	assert.False(t, result.Matched)
	assert.Equal(t, "insufficient identifying information", result.Reason)
}

func TestMatchDeterministic(t *testing.T) {
	idx := mustIndex(t, testRoster())
	row := models.CandidateRow{FullName: "Jon Smyth", Grade: "4", Teacher: "Johnson"}

	first := Match(row, idx, DefaultParams())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Match(row, idx, DefaultParams()))
	}
}

func TestMatchThresholdConfigurable(t *testing.T) {
	idx := mustIndex(t, testRoster())
	params := DefaultParams()
	params.FuzzyThreshold = 90

	// 80 no longer clears the raised threshold.
	result := Match(models.CandidateRow{FullName: "Jon Smyth"}, idx, params)
	assert.False(t, result.Matched)
}
