package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sis-match-api/internal/models"
)

// RosterIndex is a read-only index over one roster snapshot, built once per
// batch. It provides O(1) average lookups by district student number and by
// canonical full-name key. Name collisions are expected (two students can
// share a name) and are preserved as lists, never overwritten. The index is
// immutable after construction; a new roster requires a new index.
type RosterIndex struct {
	students []models.EnrolledStudent
	byNumber map[string]*models.EnrolledStudent
	byName   map[string][]*models.EnrolledStudent
}

// NewRosterIndex builds the index. A roster record without an internal id
// is structurally invalid and aborts the build — this is the engine's only
// fatal condition; everything else degrades per-row. An empty roster is
// valid and simply matches nothing.
func NewRosterIndex(roster []models.EnrolledStudent) (*RosterIndex, error) {
	idx := &RosterIndex{
		students: roster,
		byNumber: make(map[string]*models.EnrolledStudent, len(roster)),
		byName:   make(map[string][]*models.EnrolledStudent, len(roster)),
	}

	for i := range roster {
		student := &roster[i]
		if student.ID == "" {
			return nil, fmt.Errorf("roster record %d (%q) has no id", i, student.FullName())
		}

		if num := NormalizeStudentNumber(student.StudentNumber); num != "" {
			idx.byNumber[num] = student
		}

		key := ParseName(student.FirstName, student.LastName, "").Key()
		if key != "" {
			idx.byName[key] = append(idx.byName[key], student)
		}
	}

	// Fixed ordering inside collision lists keeps ambiguous outcomes
	// reproducible across runs.
	for _, list := range idx.byName {
		sort.Slice(list, func(a, b int) bool { return list[a].ID < list[b].ID })
	}

	return idx, nil
}

// ByNumber looks up a student by district student number. The input is
// normalized the same way indexed numbers were.
func (idx *RosterIndex) ByNumber(raw string) *models.EnrolledStudent {
	num := NormalizeStudentNumber(raw)
	if num == "" {
		return nil
	}
	return idx.byNumber[num]
}

// ByNameKey returns every roster student sharing the canonical name key.
func (idx *RosterIndex) ByNameKey(key string) []*models.EnrolledStudent {
	return idx.byName[key]
}

// Students exposes the underlying snapshot for full scans (fuzzy stage).
func (idx *RosterIndex) Students() []models.EnrolledStudent {
	return idx.students
}

// Size returns the number of enrolled students in the snapshot.
func (idx *RosterIndex) Size() int {
	return len(idx.students)
}

// NormalizeStudentNumber strips spreadsheet formula artifacts (a leading
// `="` with trailing `"`), surrounding quotes, and leading zeros so padded
// exports still compare equal to the roster's district numbers.
func NormalizeStudentNumber(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, `="`) {
		s = strings.TrimPrefix(s, `="`)
		s = strings.TrimSuffix(s, `"`)
	}
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
