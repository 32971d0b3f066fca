package questions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"github.com/act-prep/backend/internal/catalog"
	"github.com/act-prep/backend/internal/models"
)

// DefaultTestSize is the number of questions in a practice test.
const DefaultTestSize = 20

var ErrInvalidUpload = errors.New("invalid question upload")

type Service struct {
	store   *Store
	catalog *catalog.Store
}

func NewService(store *Store, cat *catalog.Store) *Service {
	return &Service{store: store, catalog: cat}
}

func (s *Service) GetQuestion(ctx context.Context, subject models.Subject, id int) (*models.Question, error) {
	return s.store.GetQuestion(ctx, subject, id)
}

func (s *Service) GetPassage(ctx context.Context, id int) (*models.Passage, error) {
	return s.store.GetPassage(ctx, id)
}

// ── Upload ──────────────────────────────────────────────

// Upload stores a question set, then registers every new ID in the catalog
// under its standard and difficulty and writes the catalog files.
func (s *Service) Upload(ctx context.Context, subject models.Subject, set models.QuestionSet) (*models.UploadResponse, error) {
	if err := ValidateSet(subject, set); err != nil {
		return nil, err
	}

	resp, err := s.store.InsertSet(ctx, subject, set, s.catalog.Current().MaxID(subject))
	if err != nil {
		return nil, fmt.Errorf("insert question set: %w", err)
	}

	for i, id := range resp.QuestionIDs {
		q := set.Questions[i]
		if err := s.catalog.Append(subject, q.Standard, q.Difficulty, id); err != nil {
			return nil, fmt.Errorf("catalog append %s/%d: %w", subject, id, err)
		}
	}
	if err := s.catalog.Save(); err != nil {
		// the rows are in; the in-memory catalog already serves them
		log.Printf("[questions] WARN: save catalog failed: %v", err)
	}

	log.Printf("[questions] uploaded %d %s questions (ids %v)", len(resp.QuestionIDs), subject, resp.QuestionIDs)
	return resp, nil
}

// ValidateSet checks a question set before anything is written.
func ValidateSet(subject models.Subject, set models.QuestionSet) error {
	if !subject.Valid() {
		return catalog.ErrUnknownSubject
	}
	if len(set.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidUpload)
	}
	if subject.HasPassages() {
		if set.Passage == nil || set.Passage.Body == "" {
			return fmt.Errorf("%w: %s questions need a passage", ErrInvalidUpload, subject)
		}
	} else if set.Passage != nil {
		return fmt.Errorf("%w: math questions have no passage", ErrInvalidUpload)
	}

	for i, q := range set.Questions {
		switch {
		case q.Prompt == "":
			return fmt.Errorf("%w: question %d: empty question text", ErrInvalidUpload, i+1)
		case q.Choices.A == "" || q.Choices.B == "" || q.Choices.C == "" || q.Choices.D == "":
			return fmt.Errorf("%w: question %d: choices A-D are required", ErrInvalidUpload, i+1)
		case !models.ValidChoice(q.CorrectAnswer):
			return fmt.Errorf("%w: question %d: correct_answer must be A, B, C or D", ErrInvalidUpload, i+1)
		case !models.ValidStandard(subject, q.Standard):
			return fmt.Errorf("%w: question %d: unknown standard %q", ErrInvalidUpload, i+1, q.Standard)
		case q.Difficulty != "" && !q.Difficulty.Valid():
			return fmt.Errorf("%w: question %d: unknown difficulty %q", ErrInvalidUpload, i+1, q.Difficulty)
		}
	}
	return nil
}

// ── Practice Tests ──────────────────────────────────────

// SampleTest draws up to n distinct question IDs uniformly at random from
// every standard of the subject.
func (s *Service) SampleTest(subject models.Subject, n int) (*models.TestResponse, error) {
	idx := s.catalog.Current()
	if _, err := idx.Subject(subject); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultTestSize
	}

	ids := idx.StandardIDs(subject).Sorted()
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > n {
		ids = ids[:n]
	}
	return &models.TestResponse{Subject: subject, QuestionIDs: ids}, nil
}

func (s *Service) SaveTestAnswer(ctx context.Context, userID int64, subject models.Subject, questionID int, choice string) error {
	if !models.ValidChoice(choice) {
		return fmt.Errorf("%w: choice must be A, B, C or D", ErrInvalidUpload)
	}
	if _, err := s.store.GetQuestion(ctx, subject, questionID); err != nil {
		return err
	}
	return s.store.SaveTestAnswer(ctx, userID, subject, questionID, choice)
}

// GradeTest scores the saved answers for the given questions. Unanswered and
// unknown questions count as wrong.
func (s *Service) GradeTest(ctx context.Context, userID int64, subject models.Subject, ids []int) (*models.TestGradeResponse, error) {
	questions, err := s.store.GetQuestions(ctx, subject, ids)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.TestAnswers(ctx, userID, subject, ids)
	if err != nil {
		return nil, err
	}

	resp := &models.TestGradeResponse{Subject: subject, Total: len(ids), Results: make([]models.TestGradeResult, 0, len(ids))}
	for _, id := range ids {
		result := models.TestGradeResult{QuestionID: id, Selected: answers[id]}
		if q, ok := questions[id]; ok {
			result.Answer = q.CorrectAnswer
			result.Correct = result.Selected != "" && result.Selected == q.CorrectAnswer
		}
		if result.Selected != "" {
			resp.Answered++
		}
		if result.Correct {
			resp.Correct++
		}
		resp.Results = append(resp.Results, result)
	}
	if resp.Total > 0 {
		resp.Percentage = int(math.Round(100 * float64(resp.Correct) / float64(resp.Total)))
	}
	return resp, nil
}
