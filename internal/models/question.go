package models

import (
	"bytes"
	"encoding/json"
	"time"
)

type Subject string

const (
	SubjectMath    Subject = "math"
	SubjectReading Subject = "reading"
	SubjectEnglish Subject = "english"
	SubjectScience Subject = "science"
)

// Subjects lists every practice subject in display order.
var Subjects = []Subject{SubjectMath, SubjectReading, SubjectEnglish, SubjectScience}

func (s Subject) Valid() bool {
	_, ok := Standards[s]
	return ok
}

// HasPassages reports whether questions of this subject are grouped under passages.
func (s Subject) HasPassages() bool {
	return s != SubjectMath
}

// Standards are the curriculum skill tags per subject. The strings are the
// keys of the catalog index files and must not change.
var Standards = map[Subject][]string{
	SubjectMath: {
		"number and quantity",
		"algebra",
		"functions",
		"geometry",
		"statistics and probability",
	},
	SubjectEnglish: {
		"topic development in terms of purpose & focus",
		"organization, unity, and cohesion",
		"knowledge of language",
		"sentence structure and formation",
		"usage conventions",
		"punctuation conventions",
	},
	SubjectReading: {
		"close reading",
		"central ideas, themes, and summaries",
		"relationships",
		"word meanings and word choice",
		"text structure",
		"purpose and point of view",
		"arguments",
		"multiple texts",
	},
	SubjectScience: {
		"interpretation of data",
		"scientific investigation",
		"evaluation of models, inferences, & experimental results",
	},
}

// ValidStandard reports whether std is one of subject's standards.
func ValidStandard(subject Subject, std string) bool {
	for _, s := range Standards[subject] {
		if s == std {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var DifficultyLevels = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// ChoiceLabels are the four answer labels every question carries.
var ChoiceLabels = []string{"A", "B", "C", "D"}

func ValidChoice(label string) bool {
	return label == "A" || label == "B" || label == "C" || label == "D"
}

// ── Core Structs ───────────────────────────────────────

type Choices struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Text returns the text of the choice with the given label.
func (c Choices) Text(label string) string {
	switch label {
	case "A":
		return c.A
	case "B":
		return c.B
	case "C":
		return c.C
	case "D":
		return c.D
	}
	return ""
}

type Question struct {
	ID            int        `json:"id"`
	Subject       Subject    `json:"subject"`
	Prompt        string     `json:"question"`
	Choices       Choices    `json:"choices"`
	CorrectAnswer string     `json:"correct_answer"`
	Explanation   string     `json:"explanation"`
	Standard      string     `json:"standard"`
	Difficulty    Difficulty `json:"difficulty,omitempty"`
	PassageID     *int       `json:"passageID,omitempty"`
}

// Clone returns a copy that shares no memory with q.
func (q *Question) Clone() *Question {
	cp := *q
	if q.PassageID != nil {
		pid := *q.PassageID
		cp.PassageID = &pid
	}
	return &cp
}

type Passage struct {
	ID          int       `json:"id"`
	Subject     Subject   `json:"subject"`
	Type        string    `json:"type"`
	Body        string    `json:"passage"`
	QuestionIDs []int     `json:"questionIDs"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Passage) Clone() *Passage {
	cp := *p
	if p.QuestionIDs != nil {
		cp.QuestionIDs = make([]int, len(p.QuestionIDs))
		copy(cp.QuestionIDs, p.QuestionIDs)
	}
	return &cp
}

// ── Upload Types ───────────────────────────────────────

// NewQuestion is a question as authored or generated, before an ID is assigned.
type NewQuestion struct {
	Prompt        string     `json:"question"`
	Choices       Choices    `json:"choices"`
	CorrectAnswer string     `json:"correct_answer"`
	Explanation   string     `json:"explanation"`
	Standard      string     `json:"standard"`
	Difficulty    Difficulty `json:"difficulty"`
}

type NewPassage struct {
	Type string `json:"type"`
	Body string `json:"passage"`
}

// QuestionSet is one upload unit: standalone math questions, or a passage
// with its questions for the other subjects.
type QuestionSet struct {
	Passage   *NewPassage   `json:"passage,omitempty"`
	Questions []NewQuestion `json:"questions"`
}

// UnmarshalJSON accepts either a bare array of questions or an object with a
// passage and its questions.
func (s *QuestionSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		s.Passage = nil
		return json.Unmarshal(trimmed, &s.Questions)
	}
	type plain QuestionSet
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*s = QuestionSet(p)
	return nil
}

type UploadRequest struct {
	Subject   Subject     `json:"subject"`
	Questions QuestionSet `json:"questions"`
}

type UploadResponse struct {
	Subject     Subject `json:"subject"`
	PassageID   *int    `json:"passage_id,omitempty"`
	QuestionIDs []int   `json:"question_ids"`
}

// ── Test Types ─────────────────────────────────────────

type TestResponse struct {
	Subject     Subject `json:"subject"`
	QuestionIDs []int   `json:"question_ids"`
}

type TestAnswerRequest struct {
	Choice string `json:"choice"`
}

type TestGradeRequest struct {
	QuestionIDs []int `json:"question_ids"`
}

type TestGradeResult struct {
	QuestionID int    `json:"question_id"`
	Selected   string `json:"selected,omitempty"`
	Correct    bool   `json:"correct"`
	Answer     string `json:"correct_answer"`
}

type TestGradeResponse struct {
	Subject    Subject           `json:"subject"`
	Answered   int               `json:"answered"`
	Correct    int               `json:"correct"`
	Total      int               `json:"total"`
	Percentage int               `json:"percentage"`
	Results    []TestGradeResult `json:"results"`
}

// ── Generation Types ───────────────────────────────────

// GenerateRequest asks for one batch per subject. Subject and Subjects may
// be combined.
type GenerateRequest struct {
	Subject  Subject   `json:"subject"`
	Subjects []Subject `json:"subjects"`
}
