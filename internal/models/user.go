package models

import (
	"strings"
	"time"
)

type User struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Password        string    `json:"-"`
	ACTTestDate     *string   `json:"act_test_date,omitempty"`
	QuestionsPerDay *int      `json:"questions_per_day,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FirstName returns the first word of the user's name.
func (u User) FirstName() string {
	parts := strings.Fields(u.Name)
	if len(parts) == 0 {
		return "there"
	}
	return parts[0]
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
