package notify

import (
	"context"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/act-prep/backend/internal/dashboard"
	"github.com/act-prep/backend/internal/models"
)

type UserLister interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

type AttemptSource interface {
	AttemptsSince(ctx context.Context, userID int64, since time.Time) ([]models.SubjectAttempt, error)
}

// Reminder emails users who are behind on today's questions.
type Reminder struct {
	users    UserLister
	attempts AttemptSource
	mailer   Mailer
	baseURL  string
}

func NewReminder(users UserLister, attempts AttemptSource, mailer Mailer, baseURL string) *Reminder {
	return &Reminder{users: users, attempts: attempts, mailer: mailer, baseURL: baseURL}
}

// RunStats counts what one reminder pass did.
type RunStats struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// Run checks every user against their daily target for the UTC day of now.
// A failed send is logged and counted; only a failure to list users aborts.
func (r *Reminder) Run(ctx context.Context, now time.Time) (RunStats, error) {
	var stats RunStats

	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return stats, fmt.Errorf("list users: %w", err)
	}

	t := now.UTC()
	today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	for i := range users {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		u := &users[i]
		stats.Checked++

		attempts, err := r.attempts.AttemptsSince(ctx, u.ID, today)
		if err != nil {
			log.Printf("[notify] WARN: attempts for user %d: %v", u.ID, err)
			stats.Failed++
			continue
		}

		target := dashboard.DailyTarget(u, now)
		done := len(attempts)
		if done >= target {
			continue
		}

		subject, text, body := reminderEmail(u.FirstName(), done, target, r.baseURL)
		if err := r.mailer.Send(ctx, u.Email, subject, text, body); err != nil {
			log.Printf("[notify] WARN: reminder to user %d failed: %v", u.ID, err)
			stats.Failed++
			continue
		}
		stats.Sent++
	}

	log.Printf("[notify] reminder run: checked=%d sent=%d failed=%d", stats.Checked, stats.Sent, stats.Failed)
	return stats, nil
}

func reminderEmail(name string, done, target int, baseURL string) (subject, text, htmlBody string) {
	left := target - done
	subject = fmt.Sprintf("%d ACT questions left today", left)
	link := baseURL + "/dashboard"

	text = fmt.Sprintf(`Hi %s,

You've answered %d of your %d practice questions today. %d more keeps your plan on track.

Practice now: %s
`, name, done, target, left, link)

	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hi %s,</p>
	<p>You've answered <strong>%d</strong> of your <strong>%d</strong> practice questions today.
	%d more keeps your plan on track.</p>
	<p><a href="%s">Practice now</a></p>
</body>
</html>
`, html.EscapeString(name), done, target, left, html.EscapeString(link))
	return subject, text, htmlBody
}
