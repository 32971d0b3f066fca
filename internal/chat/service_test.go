package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/act-prep/backend/internal/llm"
	"github.com/act-prep/backend/internal/models"
	"github.com/act-prep/backend/internal/questions"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuestions map[int]*models.Question

func (s stubQuestions) GetQuestion(_ context.Context, _ models.Subject, id int) (*models.Question, error) {
	if q, ok := s[id]; ok {
		return q, nil
	}
	return nil, questions.ErrQuestionNotFound
}

var sampleQuestion = &models.Question{
	ID:            7,
	Subject:       models.SubjectMath,
	Prompt:        "What is 3x if x = 2?",
	Choices:       models.Choices{A: "5", B: "6", C: "8", D: "9"},
	CorrectAnswer: "B",
}

func TestReplyDropsSeedMessage(t *testing.T) {
	mock := llm.NewMock(llm.MockResponse{Content: "Multiply 3 by 2."})
	svc := NewService(mock, stubQuestions{})

	got, err := svc.Reply(context.Background(), []models.ChatMessage{
		{Role: "system", Content: "seed"},
		{Role: "user", Content: "How do I start?"},
		{Role: "assistant", Content: "Substitute."},
		{Role: "user", Content: "Then what?"},
	}, "be brief")
	require.NoError(t, err)
	assert.Equal(t, "Multiply 3 by 2.", got)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "be brief", calls[0].System)
	require.Len(t, calls[0].Messages, 3)
	assert.Equal(t, llm.RoleUser, calls[0].Messages[0].Role)
	assert.Equal(t, llm.RoleAssistant, calls[0].Messages[1].Role)
	assert.Equal(t, "Then what?", calls[0].Messages[2].Content)
}

func TestReplyRejectsEmptyConversation(t *testing.T) {
	mock := llm.NewMock()
	svc := NewService(mock, stubQuestions{})
	ctx := context.Background()

	_, err := svc.Reply(ctx, nil, "x")
	assert.ErrorIs(t, err, ErrEmptyConversation)
	_, err = svc.Reply(ctx, []models.ChatMessage{{Role: "system", Content: "seed"}}, "x")
	assert.ErrorIs(t, err, ErrEmptyConversation)
	_, err = svc.Reply(ctx, []models.ChatMessage{{Role: "system"}, {Role: "user", Content: "  "}}, "x")
	assert.ErrorIs(t, err, ErrEmptyConversation)
	_, err = svc.Reply(ctx, []models.ChatMessage{{Role: "system"}, {Role: "user", Content: "hi"}}, "")
	assert.ErrorIs(t, err, ErrNoInstruction)
	assert.Empty(t, mock.Calls())
}

func TestInstruction(t *testing.T) {
	assert.Equal(t,
		"You are a helpful ACT practice assistant. This is the specific question the user is on: What is 3x if x = 2?. "+
			"The available choices are: A: 5, B: 6, C: 8, D: 9. The correct answer is: B. "+
			"Try to keep your responses simple and concise.",
		Instruction(sampleQuestion))
}

func TestChatHandlers(t *testing.T) {
	mock := llm.NewMock(
		llm.MockResponse{Content: "Plug in x."},
		llm.MockResponse{Content: "It is 6."},
		llm.MockResponse{Err: &llm.ErrRateLimit{}},
	)
	r := mux.NewRouter()
	NewHandler(NewService(mock, stubQuestions{7: sampleQuestion})).RegisterRoutes(r)

	do := func(path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(body)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("POST", path, &buf))
		return rec
	}

	rec := do("/chat", models.ChatRequest{
		Messages:    []models.ChatMessage{{Role: "system", Content: "seed"}, {Role: "user", Content: "help"}},
		Instruction: "be brief",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Plug in x.", resp.Content)

	rec = do("/chat/question/math/7", models.QuestionChatRequest{Messages: []models.ChatMessage{{Role: "user", Content: "answer?"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, mock.Calls()[1].System, "The correct answer is: B.")

	rec = do("/chat/question/math/8", models.QuestionChatRequest{Messages: []models.ChatMessage{{Role: "user", Content: "answer?"}}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do("/chat", models.ChatRequest{Instruction: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do("/chat", models.ChatRequest{
		Messages:    []models.ChatMessage{{Role: "system"}, {Role: "user", Content: "again"}},
		Instruction: "x",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do("/chat", models.ChatRequest{
		Messages:    []models.ChatMessage{{Role: "system"}, {Role: "user", Content: "again"}},
		Instruction: "x",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "empty mock queue is a provider failure")
}
