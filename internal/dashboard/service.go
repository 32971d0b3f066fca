package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/act-prep/backend/internal/models"
)

const (
	// TotalQuestions is the practice volume a full study plan spreads over the days left.
	TotalQuestions     = 600
	AvgSecondsPerQ     = 45
	MinQuestionsPerDay = 5
	MaxQuestionsPerDay = 40
	DefaultPlanDays    = 30

	dateLayout = "2006-01-02"
)

var ErrInvalidPlan = errors.New("invalid study plan")

// UserStore is the slice of the auth store the dashboard reads and writes.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpdatePlan(ctx context.Context, id int64, testDate string, questionsPerDay *int) error
}

// AttemptSource lists a user's attempts across every subject.
type AttemptSource interface {
	AttemptsSince(ctx context.Context, userID int64, since time.Time) ([]models.SubjectAttempt, error)
}

type Service struct {
	users    UserStore
	attempts AttemptSource
	now      func() time.Time
}

func NewService(users UserStore, attempts AttemptSource) *Service {
	return &Service{users: users, attempts: attempts, now: time.Now}
}

// ── Calendar helpers ────────────────────────────────────

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns midnight UTC of the Sunday on or before t.
func StartOfWeek(t time.Time) time.Time {
	d := startOfDay(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func dayName(t time.Time) string {
	return fmt.Sprintf("%s %d/%d", t.Weekday().String()[:3], int(t.Month()), t.Day())
}

func percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// ── Weekly summary ──────────────────────────────────────

// WeeklySummary buckets attempts into the current Sunday-to-Saturday week.
// Attempts before the week or after today are ignored, except that the
// answered-today count only looks at the calendar day of now.
func WeeklySummary(attempts []models.SubjectAttempt, now time.Time) models.WeeklySummary {
	today := startOfDay(now)
	week := StartOfWeek(now)

	days := make([]models.DayCounts, 7)
	for i := range days {
		d := week.AddDate(0, 0, i)
		days[i] = models.DayCounts{
			Name:     dayName(d),
			Date:     d.Format(dateLayout),
			Subjects: make(map[models.Subject]int, len(models.Subjects)),
		}
		for _, s := range models.Subjects {
			days[i].Subjects[s] = 0
		}
	}

	answered := make(map[models.Subject]int)
	correct := make(map[models.Subject]int)
	var summary models.WeeklySummary
	totalCorrect := 0

	for _, a := range attempts {
		day := startOfDay(a.AnsweredAt)
		if day.Equal(today) {
			summary.AnsweredToday++
		}
		if day.Before(week) || day.After(today) {
			continue
		}
		idx := int(day.Sub(week).Hours() / 24)
		days[idx].Subjects[a.Subject]++

		answered[a.Subject]++
		summary.TotalQuestions++
		if a.Correct {
			correct[a.Subject]++
			totalCorrect++
		}
		summary.TotalTime += a.TimeSpentSeconds
	}

	for _, s := range models.Subjects {
		summary.Accuracy = append(summary.Accuracy, models.SubjectAccuracy{
			Subject:  s,
			Answered: answered[s],
			Correct:  correct[s],
			Accuracy: percent(correct[s], answered[s]),
		})
	}
	summary.Days = days
	summary.TotalAccuracy = percent(totalCorrect, summary.TotalQuestions)
	return summary
}

// ── Study plan ──────────────────────────────────────────

// DefaultTestDate is DefaultPlanDays after now.
func DefaultTestDate(now time.Time) string {
	return startOfDay(now).AddDate(0, 0, DefaultPlanDays).Format(dateLayout)
}

// DailyPlan spreads TotalQuestions over the days left until testDate
// (YYYY-MM-DD). An empty testDate means DefaultTestDate.
func DailyPlan(testDate string, now time.Time) (models.StudyPlan, error) {
	if testDate == "" {
		testDate = DefaultTestDate(now)
	}
	end, err := time.Parse(dateLayout, testDate)
	if err != nil {
		return models.StudyPlan{}, fmt.Errorf("%w: test date %q: %v", ErrInvalidPlan, testDate, err)
	}

	daysLeft := int(math.Ceil(end.Sub(startOfDay(now)).Hours() / 24))
	if daysLeft < 1 {
		daysLeft = 1
	}

	perDay := (TotalQuestions + daysLeft - 1) / daysLeft
	perDay = max(MinQuestionsPerDay, min(MaxQuestionsPerDay, perDay))

	return models.StudyPlan{
		TestDate:        testDate,
		DaysLeft:        daysLeft,
		QuestionsPerDay: perDay,
		MinutesPerDay:   minutesFor(perDay),
	}, nil
}

func minutesFor(questions int) int {
	return (questions*AvgSecondsPerQ + 59) / 60
}

// planFor applies the user's stored settings on top of the computed plan.
func planFor(u *models.User, now time.Time) (models.StudyPlan, error) {
	testDate := ""
	if u.ACTTestDate != nil {
		testDate = *u.ACTTestDate
	}
	plan, err := DailyPlan(testDate, now)
	if err != nil {
		return plan, err
	}
	if u.QuestionsPerDay != nil && *u.QuestionsPerDay > 0 {
		plan.QuestionsPerDay = *u.QuestionsPerDay
		plan.MinutesPerDay = minutesFor(plan.QuestionsPerDay)
	}
	return plan, nil
}

// ── Service operations ──────────────────────────────────

// Get builds the dashboard for userID. A user with no stored plan gets the
// default one saved on first view.
func (s *Service) Get(ctx context.Context, userID int64) (*models.DashboardResponse, error) {
	now := s.now()

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	plan, err := planFor(u, now)
	if err != nil {
		// a stored date that no longer parses falls back to the default
		log.Printf("[dashboard] WARN: user %d: %v", userID, err)
		u.ACTTestDate = nil
		if plan, err = planFor(u, now); err != nil {
			return nil, err
		}
	}

	if u.ACTTestDate == nil || u.QuestionsPerDay == nil {
		perDay := plan.QuestionsPerDay
		if err := s.users.UpdatePlan(ctx, userID, plan.TestDate, &perDay); err != nil {
			log.Printf("[dashboard] WARN: failed to save default plan for user %d: %v", userID, err)
		}
	}

	attempts, err := s.attempts.AttemptsSince(ctx, userID, StartOfWeek(now))
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	return &models.DashboardResponse{
		Name: u.FirstName(),
		Week: WeeklySummary(attempts, now),
		Plan: plan,
	}, nil
}

// UpdatePlan validates and stores a new test date and optional daily target,
// returning the resulting plan.
func (s *Service) UpdatePlan(ctx context.Context, userID int64, req models.PlanRequest) (*models.StudyPlan, error) {
	if req.QuestionsPerDay != nil && (*req.QuestionsPerDay < 1 || *req.QuestionsPerDay > 200) {
		return nil, fmt.Errorf("%w: questions_per_day must be between 1 and 200", ErrInvalidPlan)
	}
	if req.TestDate == "" {
		return nil, fmt.Errorf("%w: test_date is required", ErrInvalidPlan)
	}

	u := &models.User{ACTTestDate: &req.TestDate, QuestionsPerDay: req.QuestionsPerDay}
	plan, err := planFor(u, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdatePlan(ctx, userID, req.TestDate, req.QuestionsPerDay); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	return &plan, nil
}

// DailyTarget returns the number of questions u should answer per day.
func DailyTarget(u *models.User, now time.Time) int {
	plan, err := planFor(u, now)
	if err != nil {
		return MinQuestionsPerDay
	}
	return plan.QuestionsPerDay
}
