package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MatchMethod identifies which pipeline strategy produced a result.
type MatchMethod string

const (
	MatchByID        MatchMethod = "id"
	MatchByNameGrade MatchMethod = "name-grade"
	MatchByNameOnly  MatchMethod = "name-only"
	MatchByFuzzy     MatchMethod = "fuzzy"
	MatchByNone      MatchMethod = "none"
)

// ConfidenceBand buckets a numeric confidence score for reporting.
type ConfidenceBand string

const (
	BandExact     ConfidenceBand = "exact"
	BandHigh      ConfidenceBand = "high"
	BandMedium    ConfidenceBand = "medium"
	BandLow       ConfidenceBand = "low"
	BandUncertain ConfidenceBand = "uncertain"
)

// Alternative describes a roster student that scored close enough to a
// candidate row to be worth surfacing for manual disambiguation.
type Alternative struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
}

// MatchResult is the outcome of linking one candidate row to the roster.
// A successful result always names exactly one student; ties are reported
// as unmatched with the contenders listed in Alternatives.
type MatchResult struct {
	Matched          bool           `json:"matched"`
	MatchedStudentID string         `json:"matched_student_id,omitempty"`
	Confidence       int            `json:"confidence"`
	Band             ConfidenceBand `json:"band"`
	MatchedBy        MatchMethod    `json:"matched_by"`
	Reason           string         `json:"reason"`
	GradeMismatch    bool           `json:"grade_mismatch,omitempty"`
	Ambiguous        bool           `json:"ambiguous,omitempty"`
	Alternatives     []Alternative  `json:"alternatives,omitempty"`
}

// MatchedRow pairs an input row with its match outcome.
type MatchedRow struct {
	Row    CandidateRow `json:"row"`
	Result MatchResult  `json:"result"`
}

// ReportStatus tracks asynchronous match runs.
type ReportStatus string

const (
	ReportStatusRunning   ReportStatus = "RUNNING"
	ReportStatusCompleted ReportStatus = "COMPLETED"
	ReportStatusFailed    ReportStatus = "FAILED"
)

// BandCounts tallies results per confidence band.
type BandCounts struct {
	Exact  int `json:"exact"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// MatchingReport is the immutable aggregate produced by one match run.
// It is persisted for audit even when the match rate is poor, so that
// operators can diagnose data-quality problems in the source file.
type MatchingReport struct {
	ID                string       `db:"id" json:"id"`
	DatasetLabel      string       `db:"dataset_label" json:"dataset_label"`
	SourceType        string       `db:"source_type" json:"source_type"`
	Status            ReportStatus `db:"status" json:"status"`
	TotalRows         int          `db:"total_rows" json:"total_rows"`
	TotalEnrolled     int          `db:"total_enrolled" json:"total_enrolled"`
	MatchedCount      int          `db:"matched_count" json:"matched_count"`
	UnmatchedCount    int          `db:"unmatched_count" json:"unmatched_count"`
	AmbiguousCount    int          `db:"ambiguous_count" json:"ambiguous_count"`
	DuplicateMatches  int          `db:"duplicate_matches" json:"duplicate_matches"`
	MatchRate         float64      `db:"match_rate" json:"match_rate"`
	Bands             BandCounts   `db:"bands" json:"bands"`
	UnmatchedNames    StringList   `db:"unmatched_names" json:"unmatched_names"`
	FailureReason     string       `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
}

// StringList stores a JSON-encoded string slice in a single column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported string list source %T", src)
	}
	return json.Unmarshal(raw, l)
}

// Value implements driver.Valuer for band counts stored as JSON.
func (b BandCounts) Value() (driver.Value, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal band counts: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (b *BandCounts) Scan(src interface{}) error {
	if src == nil {
		*b = BandCounts{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported band counts source %T", src)
	}
	return json.Unmarshal(raw, b)
}

// MatchedRecord is the persisted form of a successfully linked row. Only
// rows with Matched == true are ever stored; unmatched rows live solely in
// the report for manual review.
type MatchedRecord struct {
	ID         string         `db:"id" json:"id"`
	ReportID   string         `db:"report_id" json:"report_id"`
	StudentID  string         `db:"student_id" json:"student_id"`
	MatchedBy  MatchMethod    `db:"matched_by" json:"matched_by"`
	Confidence int            `db:"confidence" json:"confidence"`
	Band       ConfidenceBand `db:"band" json:"band"`
	Payload    RawPayload     `db:"payload" json:"payload,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// RawPayload stores the row's original fields as a JSON column.
type RawPayload map[string]string

// Value implements driver.Valuer.
func (p RawPayload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (p *RawPayload) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported payload source %T", src)
	}
	return json.Unmarshal(raw, p)
}

// ExportFormat enumerates supported report export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ReportFilter captures filtering criteria for listing reports.
type ReportFilter struct {
	SourceType string
	Status     ReportStatus
	Page       int
	PageSize   int
}
