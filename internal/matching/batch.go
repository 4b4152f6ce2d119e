package matching

import (
	"context"
	"sync"

	"github.com/noah-isme/sis-match-api/internal/models"
)

// BatchOutcome bundles the annotated rows and the aggregate report for one
// match run. Report identity fields (id, labels, timestamps) are filled in
// by the caller; the engine only produces the tallies.
type BatchOutcome struct {
	Rows   []models.MatchedRow
	Report models.MatchingReport
}

// RunBatch builds one roster index and resolves every candidate row against
// it. Rows are independent, so they are sharded across workers holding a
// read-only reference to the same index; per-row results land in a
// pre-sized slice, keeping output order identical to input order.
// Cancellation is honored between rows, never inside the scoring math.
func RunBatch(ctx context.Context, roster []models.EnrolledStudent, rows []models.CandidateRow, p Params, workers int) (*BatchOutcome, error) {
	idx, err := NewRosterIndex(roster)
	if err != nil {
		return nil, err
	}

	results := make([]models.MatchedRow, len(rows))
	if err := matchAll(ctx, rows, results, idx, p, workers); err != nil {
		return nil, err
	}

	return &BatchOutcome{
		Rows:   results,
		Report: buildReport(results, idx.Size()),
	}, nil
}

func matchAll(ctx context.Context, rows []models.CandidateRow, results []models.MatchedRow, idx *RosterIndex, p Params, workers int) error {
	if workers < 1 {
		workers = 1
	}
	if workers > len(rows) {
		workers = len(rows)
	}
	if workers <= 1 {
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = models.MatchedRow{Row: row, Result: Match(row, idx, p)}
		}
		return nil
	}

	var wg sync.WaitGroup
	chunk := (len(rows) + workers - 1) / workers
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				results[i] = models.MatchedRow{Row: rows[i], Result: Match(rows[i], idx, p)}
			}
		}(start, end)
	}
	wg.Wait()

	return ctx.Err()
}

// buildReport folds per-row results into the aggregate. The fold is purely
// additive, so the order results were produced in does not matter.
func buildReport(rows []models.MatchedRow, rosterSize int) models.MatchingReport {
	report := models.MatchingReport{
		TotalRows:     len(rows),
		TotalEnrolled: rosterSize,
	}

	matchedIDs := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		result := row.Result
		if result.Matched {
			report.MatchedCount++
			matchedIDs[result.MatchedStudentID] = struct{}{}
			switch result.Band {
			case models.BandExact:
				report.Bands.Exact++
			case models.BandHigh:
				report.Bands.High++
			case models.BandMedium:
				report.Bands.Medium++
			case models.BandLow:
				report.Bands.Low++
			}
			continue
		}

		report.UnmatchedCount++
		if result.Ambiguous {
			report.AmbiguousCount++
		}
		report.UnmatchedNames = append(report.UnmatchedNames, unmatchedLabel(row.Row))
	}

	// "Duplicate matches" counts rows that resolved to a student some other
	// row already claimed — distinct from one student legitimately having
	// several assessment rows, which callers interpret via source type.
	report.DuplicateMatches = report.MatchedCount - len(matchedIDs)

	if report.TotalRows > 0 {
		report.MatchRate = float64(report.MatchedCount) / float64(report.TotalRows) * 100
	}

	return report
}

func unmatchedLabel(row models.CandidateRow) string {
	name := ParseName(row.FirstName, row.LastName, row.FullName)
	switch {
	case name.First != "" || name.Last != "":
		if name.Last == "" {
			return name.First
		}
		return name.First + " " + name.Last
	case row.StudentID != "":
		return "id:" + row.StudentID
	default:
		return "(no identifying fields)"
	}
}
