package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/act-prep/backend/internal/llm"
	"github.com/act-prep/backend/internal/models"
	"github.com/gorilla/mux"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeQualityScore(t *testing.T) {
	perfect := StructuralScore{PromptLengthOK: true, AllChoicesInRange: true, ExplanationPresent: true, CorrectAnswerDistribOK: true}
	halfOK := StructuralScore{PromptLengthOK: true, AllChoicesInRange: true}

	tests := []struct {
		name       string
		vr         *VerificationResult
		structural StructuralScore
		want       float64
		class      string
	}{
		{"verified high", &VerificationResult{Matches: true, Confidence: "high"}, perfect, 1.0, QualityPassed},
		{"verified medium", &VerificationResult{Matches: true, Confidence: "medium"}, perfect, 0.82, QualityPassed},
		{"verified low", &VerificationResult{Matches: true, Confidence: "low"}, perfect, 0.64, QualityFlagged},
		{"unverified", nil, perfect, 0.64, QualityFlagged},
		{"unverified weak structure", nil, halfOK, 0.44, QualityReject},
		{"mismatch", &VerificationResult{Matches: false, Confidence: "high"}, perfect, 0, QualityReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeQualityScore(tt.vr, tt.structural)
			if !almostEqual(got, tt.want) {
				t.Errorf("score = %f, want %f", got, tt.want)
			}
			if c := ClassifyQuality(got); c != tt.class {
				t.Errorf("class = %q, want %q", c, tt.class)
			}
		})
	}
}

func TestComputeStructuralScore(t *testing.T) {
	q := validQuestion(0, "algebra")
	s := ComputeStructuralScore(q)
	if !s.PromptLengthOK || !s.AllChoicesInRange || !s.ExplanationPresent {
		t.Errorf("valid question scored %+v", s)
	}

	q.Choices.C = ""
	q.Explanation = "short"
	s = ComputeStructuralScore(q)
	if s.AllChoicesInRange || s.ExplanationPresent {
		t.Errorf("broken question scored %+v", s)
	}
}

func TestAnswerDistribution(t *testing.T) {
	qs := make([]models.NewQuestion, 6)
	for i := range qs {
		qs[i] = validQuestion(i, "algebra")
	}
	if !answerDistributionOK(qs) {
		t.Error("rotating keys should be fine")
	}
	for i := range qs {
		qs[i].CorrectAnswer = "C"
	}
	if answerDistributionOK(qs) {
		t.Error("all-C keys should fail")
	}
	if !answerDistributionOK(qs[:3]) {
		t.Error("small sets are not checked")
	}
}

func TestGenerateWithoutVerification(t *testing.T) {
	mock := llm.NewMock(llm.MockResponse{Content: "```json\n" + mathJSON(t, 10) + "\n```"})
	g := NewGenerator(mock, nil, 1)

	result, err := g.Generate(context.Background(), models.SubjectMath)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Questions) != 10 || result.Rejected != 0 {
		t.Fatalf("kept %d rejected %d", len(result.Questions), result.Rejected)
	}
	if result.Questions[0].Quality != QualityFlagged {
		t.Errorf("unverified quality = %q, want flagged", result.Questions[0].Quality)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if !strings.HasPrefix(calls[0].Messages[0].Content, "Subject: math\n") {
		t.Errorf("user prompt = %q", calls[0].Messages[0].Content)
	}
	if !strings.Contains(calls[0].Messages[0].Content, "exactly 10 BaseQuestion") {
		t.Errorf("prompt does not ask for 10 questions")
	}

	set := result.QuestionSet()
	if len(set.Questions) != 10 || set.Passage != nil {
		t.Errorf("upload set = %+v", set)
	}
}

func TestGenerateDropsMismatchedAnswers(t *testing.T) {
	gen := llm.NewMock(llm.MockResponse{Content: mathJSON(t, 2)})
	// question 1 key is A, question 2 key is B
	verify := llm.NewMock(
		llm.MockResponse{Content: `{"selected_answer":"a","confidence":"high","reasoning":"r"}`},
		llm.MockResponse{Content: `{"selected_answer":"D","confidence":"high","reasoning":"r"}`},
	)
	g := NewGenerator(gen, NewVerifier(verify), 1)

	result, err := g.Generate(context.Background(), models.SubjectMath)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Questions) != 1 || result.Rejected != 1 {
		t.Fatalf("kept %d rejected %d, want 1/1", len(result.Questions), result.Rejected)
	}
	kept := result.Questions[0]
	if kept.Quality != QualityPassed || kept.Verification == nil || !kept.Verification.Matches {
		t.Errorf("kept question = %+v", kept)
	}
	if got := verify.Calls()[0].System; got != verificationSystemPrompt {
		t.Errorf("verification system prompt = %q", got)
	}
	if strings.Contains(verify.Calls()[0].Messages[0].Content, "Subtract 5") {
		t.Errorf("verification prompt leaks the explanation")
	}
}

func TestVerifierFailureKeepsQuestion(t *testing.T) {
	gen := llm.NewMock(llm.MockResponse{Content: mathJSON(t, 1)})
	verify := llm.NewMock(llm.MockResponse{Content: "not json"})
	g := NewGenerator(gen, NewVerifier(verify), 1)

	result, err := g.Generate(context.Background(), models.SubjectMath)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Questions) != 1 || result.Questions[0].Quality != QualityFlagged {
		t.Fatalf("result = %+v", result)
	}
	if result.Questions[0].Verification.Confidence != "low" {
		t.Errorf("confidence = %q, want low", result.Questions[0].Verification.Confidence)
	}
}

func TestGenerateErrors(t *testing.T) {
	g := NewGenerator(llm.NewMock(llm.MockResponse{Content: "[]"}), nil, 1)
	_, err := g.Generate(context.Background(), models.SubjectMath)
	if !errors.Is(err, ErrInvalidBatch) {
		t.Errorf("err = %v, want ErrInvalidBatch", err)
	}

	_, err = g.Generate(context.Background(), models.SubjectMath)
	var unavailable *llm.ErrProviderUnavailable
	if !errors.As(err, &unavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}

	if _, err := g.Generate(context.Background(), "latin"); err == nil {
		t.Error("expected error for unknown subject")
	}
}

func TestMockReplyParsesForEverySubject(t *testing.T) {
	for _, subject := range models.Subjects {
		t.Run(string(subject), func(t *testing.T) {
			reply := MockReply(llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: BuildUserPrompt(subject)}}})
			set, err := ParseResponse(subject, reply)
			if err != nil {
				t.Fatalf("mock reply does not parse: %v", err)
			}
			if len(set.Questions) != QuestionCount[subject] {
				t.Errorf("got %d questions, want %d", len(set.Questions), QuestionCount[subject])
			}
		})
	}
	if got := MockReply(llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}}}); !strings.HasPrefix(got, "[Mock]") {
		t.Errorf("non-generation reply = %q", got)
	}
}

func TestGenerateManyAndHandler(t *testing.T) {
	mock := llm.NewMock()
	mock.Reply = MockReply
	g := NewGenerator(mock, nil, 2)

	results, errs := g.GenerateMany(context.Background(), []models.Subject{models.SubjectMath, models.SubjectEnglish})
	if len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	if len(results) != 2 || results[models.SubjectEnglish].Passage == nil {
		t.Fatalf("results = %+v", results)
	}
	if n := len(results[models.SubjectEnglish].Questions); n != 15 {
		t.Errorf("english questions = %d, want 15", n)
	}

	r := mux.NewRouter()
	NewHandler(g).RegisterAdminRoutes(r)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("POST", "/generate", bytes.NewBufferString(body)))
		return rec
	}

	rec := post(`{"subject":"science"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results map[models.Subject]*Result `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if got := len(resp.Results[models.SubjectScience].Questions); got != 7 {
		t.Errorf("science questions = %d, want 7", got)
	}

	if rec := post(`{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing subject status = %d", rec.Code)
	}
	if rec := post(`{"subjects":["math","latin"]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid subject status = %d", rec.Code)
	}
}
