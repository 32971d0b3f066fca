package auth

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
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Store reads and writes user rows.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

const userCols = `id, email, name, password, act_test_date, questions_per_day, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, password, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING `+userCols,
		email, name, passwordHash, now, now,
	)
	u, err := scanUser(row)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email))
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
}

// ListUsers returns every user, ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdatePlan stores the user's test date (YYYY-MM-DD) and optional daily
// question target.
func (s *Store) UpdatePlan(ctx context.Context, id int64, testDate string, questionsPerDay *int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET act_test_date = ?, questions_per_day = ?, updated_at = ? WHERE id = ?`,
		nullIfEmpty(testDate), questionsPerDay, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var testDate sql.NullString
	var perDay sql.NullInt64
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Password, &testDate, &perDay, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if testDate.Valid {
		u.ACTTestDate = &testDate.String
	}
	if perDay.Valid {
		n := int(perDay.Int64)
		u.QuestionsPerDay = &n
	}
	return &u, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
