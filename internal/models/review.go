package models

import "time"

// ── Review Types ────────────────────────────────────────

type ReviewStatus string

const (
	ReviewStatusAttempted ReviewStatus = "attempted"
	ReviewStatusNew       ReviewStatus = "new"
)

type ReviewResult string

const (
	ReviewResultCorrect ReviewResult = "correct"
	ReviewResultWrong   ReviewResult = "wrong"
)

type ReviewItem struct {
	Subject  Subject   `json:"subject"`
	Question *Question `json:"question,omitempty"`

	// User's attempt for this question; nil for questions never attempted.
	Attempt *AttemptRecord `json:"attempt,omitempty"`
}

// ── Request Types ────────────────────────────────────────

type ReviewFilter struct {
	Subject  *Subject
	Standard *string
	Status   ReviewStatus
	Result   *ReviewResult
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

// Offset returns the row offset for the filter's page.
func (f ReviewFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

type ReviewNoteRequest struct {
	Reason string `json:"wrongReason"`
	Notes  string `json:"wrongNotes"`
}

// ── Response Types ────────────────────────────────────────

type ReviewListResponse struct {
	Items    []ReviewItem `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}
