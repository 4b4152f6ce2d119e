package models

// CandidateRow is an adapter-normalized view of one source CSV row.
// Whichever identifying fields the upstream adapter could extract are
// populated; everything else rides along in Raw untouched. Rows are
// ephemeral and exist only for the duration of one match run.
type CandidateRow struct {
	StudentID string            `json:"student_id,omitempty"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	FullName  string            `json:"full_name,omitempty"`
	Grade     string            `json:"grade,omitempty"`
	Teacher   string            `json:"teacher,omitempty"`
	Raw       map[string]string `json:"raw,omitempty"`
}

// HasName reports whether the row carries any name fragment at all.
func (r CandidateRow) HasName() bool {
	return r.FirstName != "" || r.LastName != "" || r.FullName != ""
}
