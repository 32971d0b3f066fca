package models

import "time"

// Review reason codes a user may attach to an attempt.
var ReviewReasons = []string{
	"content error",
	"misread the question",
	"test strategy error",
	"time pressure",
	"guessed",
}

func ValidReviewReason(reason string) bool {
	for _, r := range ReviewReasons {
		if r == reason {
			return true
		}
	}
	return false
}

type ReviewNote struct {
	Reason   string `json:"wrongReason,omitempty"`
	Notes    string `json:"wrongNotes,omitempty"`
	Reviewed bool   `json:"reviewed"`
}

// AttemptRecord is the outcome of one question submission. The answer fields
// are written once; only Review may change afterwards.
type AttemptRecord struct {
	QuestionID       int         `json:"question_id"`
	Selected         string      `json:"selected"`
	Correct          bool        `json:"correct"`
	AnsweredAt       time.Time   `json:"date"`
	TimeSpentSeconds int         `json:"time"`
	Review           *ReviewNote `json:"review,omitempty"`
}

// SubjectProgress is one user's state for one subject.
type SubjectProgress struct {
	Subject       Subject               `json:"subject"`
	Attempted     map[int]AttemptRecord `json:"attempted"`
	ResumePointer int                   `json:"resume_pointer"`
}

// AttemptedIDs returns the set of question IDs with an attempt record.
func (p *SubjectProgress) AttemptedIDs() map[int]bool {
	ids := make(map[int]bool, len(p.Attempted))
	for id := range p.Attempted {
		ids[id] = true
	}
	return ids
}

// SubjectAttempt is an attempt tagged with its subject, used by cross-subject reports.
type SubjectAttempt struct {
	Subject Subject `json:"subject"`
	AttemptRecord
}
