package models

// ── Practice Session Types ───────────────────────────────

type StartSessionRequest struct {
	Subject Subject `json:"subject"`
}

type ChoiceRequest struct {
	Choice string `json:"choice"`
}

type FilterRequest struct {
	Standards []string `json:"standards"`
	Levels    []string `json:"levels"`
}

// SessionView is the client-visible snapshot of a practice session.
type SessionView struct {
	ID             string    `json:"id"`
	State          string    `json:"state"`
	Subject        Subject   `json:"subject"`
	Question       *Question `json:"question,omitempty"`
	Passage        *Passage  `json:"passage,omitempty"`
	SelectedChoice string    `json:"selected_choice,omitempty"`
	Submitted      bool      `json:"submitted"`
	Correct        *bool     `json:"correct,omitempty"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	TotalAnswered  int       `json:"total_answered"`
	TotalCorrect   int       `json:"total_correct"`
	Accuracy       int       `json:"accuracy"`
	ResumePointer  int       `json:"resume_pointer"`
	Standards      []string  `json:"standards"`
	Levels         []string  `json:"levels"`
	Notice         string    `json:"notice,omitempty"`
}

// SelectionResponse answers a stateless next-question query.
type SelectionResponse struct {
	Subject    Subject `json:"subject"`
	QuestionID *int    `json:"question_id"`
	Exhausted  bool    `json:"exhausted"`
}
