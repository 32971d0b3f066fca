package questions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/act-prep/backend/internal/database"
	"github.com/act-prep/backend/internal/models"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrPassageNotFound  = errors.New("passage not found")
)

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

const questionCols = `subject, id, prompt, choice_a, choice_b, choice_c, choice_d,
		        correct_answer, explanation, standard, difficulty, passage_id`

// ── Reads ───────────────────────────────────────────────

func (s *Store) GetQuestion(ctx context.Context, subject models.Subject, id int) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE subject = ? AND id = ?`,
		subject, id,
	)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question %s/%d: %w", subject, id, err)
	}
	return q, nil
}

// GetQuestions returns the questions with the given IDs that exist, keyed by ID.
func (s *Store) GetQuestions(ctx context.Context, subject models.Subject, ids []int) (map[int]*models.Question, error) {
	out := make(map[int]*models.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := []interface{}{subject}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions
		 WHERE subject = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

// GetPassage returns a passage with the IDs of the questions that reference it.
func (s *Store) GetPassage(ctx context.Context, id int) (*models.Passage, error) {
	var p models.Passage
	err := s.db.QueryRowContext(ctx,
		`SELECT id, subject, passage_type, body, created_at FROM passages WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Subject, &p.Type, &p.Body, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPassageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get passage %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM questions WHERE passage_id = ? ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get passage questions: %w", err)
	}
	defer rows.Close()

	p.QuestionIDs = []int{}
	for rows.Next() {
		var qid int
		if err := rows.Scan(&qid); err != nil {
			return nil, fmt.Errorf("scan passage question: %w", err)
		}
		p.QuestionIDs = append(p.QuestionIDs, qid)
	}
	return &p, rows.Err()
}

func (s *Store) CountQuestions(ctx context.Context, subject models.Subject) (int, error) {
	return countQuestions(ctx, s.db, subject)
}

func (s *Store) CountPassages(ctx context.Context) (int, error) {
	return countPassages(ctx, s.db)
}

func countQuestions(ctx context.Context, db database.DBTX, subject models.Subject) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE subject = ?`, subject).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func countPassages(ctx context.Context, db database.DBTX) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// ── Writes ──────────────────────────────────────────────

// InsertSet stores one question set in a single transaction. The passage, if
// any, gets id = passage count + 1; the i-th question gets id = base + i + 1,
// where base is the question count for the subject or floorID, whichever is
// larger. Callers pass the highest ID already handed out elsewhere as floorID.
func (s *Store) InsertSet(ctx context.Context, subject models.Subject, set models.QuestionSet, floorID int) (*models.UploadResponse, error) {
	resp := &models.UploadResponse{Subject: subject, QuestionIDs: make([]int, 0, len(set.Questions))}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		now := time.Now().UTC()

		if set.Passage != nil {
			count, err := countPassages(ctx, tx)
			if err != nil {
				return err
			}
			pid := count + 1
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO passages (id, subject, passage_type, body, created_at) VALUES (?, ?, ?, ?, ?)`,
				pid, subject, set.Passage.Type, set.Passage.Body, now,
			); err != nil {
				return fmt.Errorf("insert passage: %w", err)
			}
			resp.PassageID = &pid
		}

		count, err := countQuestions(ctx, tx, subject)
		if err != nil {
			return err
		}
		base := count
		if floorID > count {
			log.Printf("[questions] WARN: %s catalog reaches id %d but only %d rows are stored, numbering from %d",
				subject, floorID, count, floorID+1)
			base = floorID
		}
		for i, q := range set.Questions {
			id := base + i + 1
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO questions
				 (subject, id, prompt, choice_a, choice_b, choice_c, choice_d,
				  correct_answer, explanation, standard, difficulty, passage_id, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				subject, id, q.Prompt, q.Choices.A, q.Choices.B, q.Choices.C, q.Choices.D,
				q.CorrectAnswer, q.Explanation, q.Standard, nullDifficulty(q.Difficulty), resp.PassageID, now,
			); err != nil {
				return fmt.Errorf("insert question %d: %w", id, err)
			}
			resp.QuestionIDs = append(resp.QuestionIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ── Test Answers ────────────────────────────────────────

// SaveTestAnswer stores the user's current answer; later calls overwrite it.
func (s *Store) SaveTestAnswer(ctx context.Context, userID int64, subject models.Subject, questionID int, choice string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO test_answers (user_id, subject, question_id, selected_choice, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, subject, question_id)
		 DO UPDATE SET selected_choice = excluded.selected_choice, updated_at = excluded.updated_at`,
		userID, subject, questionID, choice, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save test answer: %w", err)
	}
	return nil
}

// TestAnswers returns the user's saved answers for the given questions.
func (s *Store) TestAnswers(ctx context.Context, userID int64, subject models.Subject, ids []int) (map[int]string, error) {
	out := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := []interface{}{userID, subject}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, selected_choice FROM test_answers
		 WHERE user_id = ? AND subject = ? AND question_id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("load test answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var choice string
		if err := rows.Scan(&id, &choice); err != nil {
			return nil, fmt.Errorf("scan test answer: %w", err)
		}
		out[id] = choice
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var q models.Question
	var difficulty sql.NullString
	var passageID sql.NullInt64
	if err := row.Scan(&q.Subject, &q.ID, &q.Prompt, &q.Choices.A, &q.Choices.B, &q.Choices.C, &q.Choices.D,
		&q.CorrectAnswer, &q.Explanation, &q.Standard, &difficulty, &passageID); err != nil {
		return nil, err
	}
	q.Difficulty = models.Difficulty(difficulty.String)
	if passageID.Valid {
		pid := int(passageID.Int64)
		q.PassageID = &pid
	}
	return &q, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullDifficulty(d models.Difficulty) *string {
	if d == "" {
		return nil
	}
	s := string(d)
	return &s
}
