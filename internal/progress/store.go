// Package progress persists attempt records, the per-subject resume pointer
// and the review notes users attach to their attempts.
package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/act-prep/backend/internal/database"
	"github.com/act-prep/backend/internal/models"
)

var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrInvalidReason   = errors.New("invalid review reason")
)

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// ── Subject Progress ────────────────────────────────────

// Load returns every attempt the user made in subject and the resume
// pointer, which is 1 until it has been advanced.
func (s *Store) Load(ctx context.Context, userID int64, subject models.Subject) (*models.SubjectProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, selected_choice, correct, answered_at, time_spent_seconds,
		        review_reason, review_notes, reviewed
		 FROM attempts WHERE user_id = ? AND subject = ?`,
		userID, subject,
	)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	defer rows.Close()

	p := &models.SubjectProgress{
		Subject:       subject,
		Attempted:     make(map[int]models.AttemptRecord),
		ResumePointer: 1,
	}
	for rows.Next() {
		rec, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		p.Attempted[rec.QuestionID] = *rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT resume_pointer FROM subject_progress WHERE user_id = ? AND subject = ?`,
		userID, subject,
	).Scan(&p.ResumePointer)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load resume pointer: %w", err)
	}
	return p, nil
}

// RecordAttempt inserts one attempt record. An existing record for the same
// question is left untouched and created is false.
func (s *Store) RecordAttempt(ctx context.Context, userID int64, subject models.Subject, rec models.AttemptRecord) (bool, error) {
	answeredAt := rec.AnsweredAt
	if answeredAt.IsZero() {
		answeredAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (user_id, subject, question_id, selected_choice, correct, answered_at, time_spent_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, subject, question_id) DO NOTHING`,
		userID, subject, rec.QuestionID, rec.Selected, rec.Correct, answeredAt.UTC(), rec.TimeSpentSeconds,
	)
	if err != nil {
		return false, fmt.Errorf("insert attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attempt: %w", err)
	}
	return n == 1, nil
}

// AdvanceResumePointer raises the stored pointer to `to`, but only if every
// question from the stored value up to to-1 has an attempt. A pointer that
// lags behind after a failed write catches up on the next call. It returns the
// stored pointer afterwards, which never decreases.
func (s *Store) AdvanceResumePointer(ctx context.Context, userID int64, subject models.Subject, to int) (int, error) {
	var pointer int
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subject_progress (user_id, subject, resume_pointer, updated_at)
			 VALUES (?, ?, 1, ?)
			 ON CONFLICT (user_id, subject) DO NOTHING`,
			userID, subject, now,
		); err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT resume_pointer FROM subject_progress WHERE user_id = ? AND subject = ?`,
			userID, subject,
		).Scan(&pointer); err != nil {
			return fmt.Errorf("read pointer: %w", err)
		}
		if pointer >= to {
			return nil
		}

		var covered int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM attempts
			 WHERE user_id = ? AND subject = ? AND question_id >= ? AND question_id < ?`,
			userID, subject, pointer, to,
		).Scan(&covered); err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		if covered != to-pointer {
			return nil
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE subject_progress SET resume_pointer = ?, updated_at = ?
			 WHERE user_id = ? AND subject = ? AND resume_pointer = ?`,
			to, now, userID, subject, pointer,
		)
		if err != nil {
			return fmt.Errorf("advance pointer: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			pointer = to
			return nil
		}
		// moved by someone else in the meantime
		return tx.QueryRowContext(ctx,
			`SELECT resume_pointer FROM subject_progress WHERE user_id = ? AND subject = ?`,
			userID, subject,
		).Scan(&pointer)
	})
	if err != nil {
		return 0, err
	}
	return pointer, nil
}

// ── Review ──────────────────────────────────────────────

// AnnotateReview sets the review reason and notes on an attempt and marks it
// reviewed. The answer fields are never touched.
func (s *Store) AnnotateReview(ctx context.Context, userID int64, subject models.Subject, questionID int, reason, notes string) error {
	if reason != "" && !models.ValidReviewReason(reason) {
		return ErrInvalidReason
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET review_reason = ?, review_notes = ?, reviewed = ?
		 WHERE user_id = ? AND subject = ? AND question_id = ?`,
		nullString(reason), nullString(notes), true, userID, subject, questionID,
	)
	if err != nil {
		return fmt.Errorf("annotate attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("annotate attempt: %w", err)
	}
	if n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

const questionCols = `q.subject, q.id, q.prompt, q.choice_a, q.choice_b, q.choice_c, q.choice_d,
		        q.correct_answer, q.explanation, q.standard, q.difficulty, q.passage_id`

// ListAttempts pages through the user's review list. With status "new" it
// lists questions the user has not attempted; otherwise attempted questions
// with their attempt, newest first.
func (s *Store) ListAttempts(ctx context.Context, userID int64, f models.ReviewFilter) (*models.ReviewListResponse, error) {
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.Page < 1 {
		f.Page = 1
	}

	var where []string
	args := []interface{}{userID}
	if f.Subject != nil {
		where = append(where, "q.subject = ?")
		args = append(args, *f.Subject)
	}
	if f.Standard != nil {
		where = append(where, "q.standard = ?")
		args = append(args, *f.Standard)
	}

	newOnly := f.Status == models.ReviewStatusNew
	if newOnly {
		where = append(where, "a.question_id IS NULL")
	} else {
		where = append(where, "a.question_id IS NOT NULL")
		if f.Result != nil {
			where = append(where, "a.correct = ?")
			args = append(args, *f.Result == models.ReviewResultCorrect)
		}
		if f.DateFrom != nil {
			where = append(where, "a.answered_at >= ?")
			args = append(args, f.DateFrom.UTC())
		}
		if f.DateTo != nil {
			where = append(where, "a.answered_at < ?")
			args = append(args, f.DateTo.UTC())
		}
	}

	from := `FROM questions q
		 LEFT JOIN attempts a
		   ON a.user_id = ? AND a.subject = q.subject AND a.question_id = q.id
		 WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+from, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count review items: %w", err)
	}

	order := " ORDER BY a.answered_at DESC, q.subject, q.id"
	if newOnly {
		order = " ORDER BY q.subject, q.id"
	}
	query := `SELECT ` + questionCols + `,
		        a.question_id, a.selected_choice, a.correct, a.answered_at, a.time_spent_seconds,
		        a.review_reason, a.review_notes, a.reviewed ` + from + order + ` LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	resp := &models.ReviewListResponse{Items: []models.ReviewItem{}, Total: total, Page: f.Page, PageSize: f.PageSize}
	for rows.Next() {
		var (
			q          models.Question
			difficulty sql.NullString
			passageID  sql.NullInt64
			attemptQID sql.NullInt64
			selected   sql.NullString
			correct    sql.NullBool
			answeredAt sql.NullTime
			timeSpent  sql.NullInt64
			reason     sql.NullString
			notes      sql.NullString
			reviewed   sql.NullBool
		)
		if err := rows.Scan(&q.Subject, &q.ID, &q.Prompt, &q.Choices.A, &q.Choices.B, &q.Choices.C, &q.Choices.D,
			&q.CorrectAnswer, &q.Explanation, &q.Standard, &difficulty, &passageID,
			&attemptQID, &selected, &correct, &answeredAt, &timeSpent, &reason, &notes, &reviewed); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		q.Difficulty = models.Difficulty(difficulty.String)
		if passageID.Valid {
			pid := int(passageID.Int64)
			q.PassageID = &pid
		}

		item := models.ReviewItem{Subject: q.Subject, Question: &q}
		if attemptQID.Valid {
			item.Attempt = &models.AttemptRecord{
				QuestionID:       int(attemptQID.Int64),
				Selected:         selected.String,
				Correct:          correct.Bool,
				AnsweredAt:       answeredAt.Time,
				TimeSpentSeconds: int(timeSpent.Int64),
				Review:           reviewNote(reason, notes, reviewed.Bool),
			}
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, rows.Err()
}

// ── Reports ─────────────────────────────────────────────

// AttemptsSince returns the user's attempts in every subject answered at or
// after since, oldest first.
func (s *Store) AttemptsSince(ctx context.Context, userID int64, since time.Time) ([]models.SubjectAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, question_id, selected_choice, correct, answered_at, time_spent_seconds,
		        review_reason, review_notes, reviewed
		 FROM attempts WHERE user_id = ? AND answered_at >= ?
		 ORDER BY answered_at`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("attempts since: %w", err)
	}
	defer rows.Close()

	var out []models.SubjectAttempt
	for rows.Next() {
		var subject models.Subject
		var rec models.AttemptRecord
		var reason, notes sql.NullString
		var reviewed bool
		if err := rows.Scan(&subject, &rec.QuestionID, &rec.Selected, &rec.Correct, &rec.AnsweredAt,
			&rec.TimeSpentSeconds, &reason, &notes, &reviewed); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.Review = reviewNote(reason, notes, reviewed)
		out = append(out, models.SubjectAttempt{Subject: subject, AttemptRecord: rec})
	}
	return out, rows.Err()
}

func scanAttempt(rows *sql.Rows) (*models.AttemptRecord, error) {
	var rec models.AttemptRecord
	var reason, notes sql.NullString
	var reviewed bool
	if err := rows.Scan(&rec.QuestionID, &rec.Selected, &rec.Correct, &rec.AnsweredAt,
		&rec.TimeSpentSeconds, &reason, &notes, &reviewed); err != nil {
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	rec.Review = reviewNote(reason, notes, reviewed)
	return &rec, nil
}

func reviewNote(reason, notes sql.NullString, reviewed bool) *models.ReviewNote {
	if !reviewed && !reason.Valid && !notes.Valid {
		return nil
	}
	return &models.ReviewNote{Reason: reason.String, Notes: notes.String, Reviewed: reviewed}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
