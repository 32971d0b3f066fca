package models

// ── Dashboard Types ───────────────────────────────────────

type DayCounts struct {
	Name     string          `json:"name"`
	Date     string          `json:"date"`
	Subjects map[Subject]int `json:"subjects"`
}

type SubjectAccuracy struct {
	Subject  Subject `json:"subject"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Accuracy int     `json:"accuracy"`
}

type WeeklySummary struct {
	Days           []DayCounts       `json:"days"`
	Accuracy       []SubjectAccuracy `json:"accuracy"`
	TotalAccuracy  int               `json:"total_accuracy"`
	TotalQuestions int               `json:"total_questions"`
	TotalTime      int               `json:"total_time_seconds"`
	AnsweredToday  int               `json:"answered_today"`
}

type StudyPlan struct {
	TestDate        string `json:"test_date"`
	DaysLeft        int    `json:"days_left"`
	QuestionsPerDay int    `json:"questions_per_day"`
	MinutesPerDay   int    `json:"minutes_per_day"`
}

type DashboardResponse struct {
	Name string        `json:"name"`
	Week WeeklySummary `json:"week"`
	Plan StudyPlan     `json:"plan"`
}

type PlanRequest struct {
	TestDate        string `json:"test_date"`
	QuestionsPerDay *int   `json:"questions_per_day,omitempty"`
}
