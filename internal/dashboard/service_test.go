package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/act-prep/backend/internal/auth"
	"github.com/act-prep/backend/internal/database/dbtest"
	"github.com/act-prep/backend/internal/models"
	"github.com/act-prep/backend/internal/progress"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday; the week starts on Sunday 2024-03-10.
var wednesday = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)

func subjectAttempt(s models.Subject, id int, correct bool, at time.Time, secs int) models.SubjectAttempt {
	return models.SubjectAttempt{Subject: s, AttemptRecord: models.AttemptRecord{
		QuestionID: id, Selected: "A", Correct: correct, AnsweredAt: at, TimeSpentSeconds: secs,
	}}
}

func TestStartOfWeek(t *testing.T) {
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), StartOfWeek(wednesday))
	sunday := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), StartOfWeek(sunday))
}

func TestWeeklySummary(t *testing.T) {
	attempts := []models.SubjectAttempt{
		subjectAttempt(models.SubjectMath, 1, true, time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), 100),
		subjectAttempt(models.SubjectMath, 2, true, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), 30),
		subjectAttempt(models.SubjectReading, 1, false, time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC), 40),
		subjectAttempt(models.SubjectMath, 3, true, time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC), 20),
	}

	s := WeeklySummary(attempts, wednesday)

	require.Len(t, s.Days, 7)
	assert.Equal(t, "Sun 3/10", s.Days[0].Name)
	assert.Equal(t, "2024-03-16", s.Days[6].Date)
	assert.Equal(t, 1, s.Days[0].Subjects[models.SubjectMath])
	assert.Equal(t, 1, s.Days[3].Subjects[models.SubjectMath])
	assert.Equal(t, 1, s.Days[3].Subjects[models.SubjectReading])
	assert.Equal(t, 0, s.Days[3].Subjects[models.SubjectScience])

	assert.Equal(t, 3, s.TotalQuestions)
	assert.Equal(t, 67, s.TotalAccuracy)
	assert.Equal(t, 90, s.TotalTime)
	assert.Equal(t, 2, s.AnsweredToday)

	require.Len(t, s.Accuracy, len(models.Subjects))
	for _, a := range s.Accuracy {
		switch a.Subject {
		case models.SubjectMath:
			assert.Equal(t, 100, a.Accuracy)
			assert.Equal(t, 2, a.Answered)
		case models.SubjectReading:
			assert.Equal(t, 0, a.Accuracy)
			assert.Equal(t, 1, a.Answered)
		default:
			assert.Equal(t, 0, a.Answered)
			assert.Equal(t, 0, a.Accuracy)
		}
	}
}

func TestWeeklySummaryEmpty(t *testing.T) {
	s := WeeklySummary(nil, wednesday)
	assert.Len(t, s.Days, 7)
	assert.Zero(t, s.TotalAccuracy)
	assert.Zero(t, s.AnsweredToday)
}

func TestDailyPlan(t *testing.T) {
	tests := []struct {
		name     string
		testDate string
		want     models.StudyPlan
	}{
		{"thirty days", "2024-04-12", models.StudyPlan{TestDate: "2024-04-12", DaysLeft: 30, QuestionsPerDay: 20, MinutesPerDay: 15}},
		{"tomorrow caps at max", "2024-03-14", models.StudyPlan{TestDate: "2024-03-14", DaysLeft: 1, QuestionsPerDay: 40, MinutesPerDay: 30}},
		{"past date counts as one day", "2024-01-01", models.StudyPlan{TestDate: "2024-01-01", DaysLeft: 1, QuestionsPerDay: 40, MinutesPerDay: 30}},
		{"far away floors at min", "2025-03-13", models.StudyPlan{TestDate: "2025-03-13", DaysLeft: 365, QuestionsPerDay: 5, MinutesPerDay: 4}},
		{"default", "", models.StudyPlan{TestDate: "2024-04-12", DaysLeft: 30, QuestionsPerDay: 20, MinutesPerDay: 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DailyPlan(tt.testDate, wednesday)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DailyPlan("next spring", wednesday)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestDailyTargetHonoursOverride(t *testing.T) {
	n := 12
	assert.Equal(t, 12, DailyTarget(&models.User{QuestionsPerDay: &n}, wednesday))
	assert.Equal(t, 20, DailyTarget(&models.User{}, wednesday))
}

func newTestService(t *testing.T) (*Service, *auth.Store, *progress.Store, int64) {
	t.Helper()
	db := dbtest.Open(t)
	userID := dbtest.CreateUser(t, db, "dash@example.com")
	users := auth.NewStore(db)
	attempts := progress.NewStore(db)
	svc := NewService(users, attempts)
	svc.now = func() time.Time { return wednesday }
	return svc, users, attempts, userID
}

func TestGetSavesDefaultPlan(t *testing.T) {
	ctx := context.Background()
	svc, users, attempts, userID := newTestService(t)

	_, err := attempts.RecordAttempt(ctx, userID, models.SubjectMath, models.AttemptRecord{
		QuestionID: 4, Selected: "B", Correct: true, AnsweredAt: wednesday.Add(-time.Hour), TimeSpentSeconds: 50,
	})
	require.NoError(t, err)

	resp, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Test", resp.Name)
	assert.Equal(t, 1, resp.Week.AnsweredToday)
	assert.Equal(t, 50, resp.Week.TotalTime)
	assert.Equal(t, "2024-04-12", resp.Plan.TestDate)

	u, err := users.GetUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, u.ACTTestDate)
	require.NotNil(t, u.QuestionsPerDay)
	assert.Equal(t, "2024-04-12", *u.ACTTestDate)
	assert.Equal(t, 20, *u.QuestionsPerDay)
}

func TestHandlerPlanFlow(t *testing.T) {
	svc, _, _, userID := newTestService(t)

	r := mux.NewRouter()
	NewHandler(svc).RegisterRoutes(r)

	do := func(method, path, body string, uid int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		if uid != 0 {
			req = req.WithContext(context.WithValue(req.Context(), "user_id", uid))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do("GET", "/dashboard", "", 0).Code)

	rec := do("PUT", "/dashboard/plan", `{"test_date":"2024-03-23","questions_per_day":25}`, userID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var plan models.StudyPlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plan))
	assert.Equal(t, 10, plan.DaysLeft)
	assert.Equal(t, 25, plan.QuestionsPerDay)
	assert.Equal(t, 19, plan.MinutesPerDay)

	rec = do("GET", "/dashboard", "", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash models.DashboardResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dash))
	assert.Equal(t, "2024-03-23", dash.Plan.TestDate)
	assert.Equal(t, 25, dash.Plan.QuestionsPerDay)

	assert.Equal(t, http.StatusBadRequest, do("PUT", "/dashboard/plan", `{"test_date":"soon"}`, userID).Code)
	assert.Equal(t, http.StatusBadRequest, do("PUT", "/dashboard/plan", `{"test_date":"2024-05-01","questions_per_day":0}`, userID).Code)
	assert.Equal(t, http.StatusBadRequest, do("PUT", "/dashboard/plan", `{}`, userID).Code)
	assert.Equal(t, http.StatusBadRequest, do("PUT", "/dashboard/plan", `not json`, userID).Code)
}
