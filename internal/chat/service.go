// Package chat answers free-form questions about a practice question.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/act-prep/backend/internal/llm"
	"github.com/act-prep/backend/internal/models"
)

var (
	ErrEmptyConversation = errors.New("conversation has no user message")
	ErrNoInstruction     = errors.New("instruction is required")
)

const maxReplyTokens = 1024

// QuestionSource loads the question a conversation is about.
type QuestionSource interface {
	GetQuestion(ctx context.Context, subject models.Subject, id int) (*models.Question, error)
}

type Service struct {
	provider  llm.Provider
	questions QuestionSource
}

func NewService(provider llm.Provider, questions QuestionSource) *Service {
	return &Service{provider: provider, questions: questions}
}

// Reply sends the conversation with instruction as the system prompt. The
// first message of history is the client-side seed and is not sent.
func (s *Service) Reply(ctx context.Context, history []models.ChatMessage, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", ErrNoInstruction
	}
	if len(history) == 0 {
		return "", ErrEmptyConversation
	}
	return s.complete(ctx, instruction, history[1:])
}

// ReplyAboutQuestion answers within a conversation about one stored question.
func (s *Service) ReplyAboutQuestion(ctx context.Context, subject models.Subject, id int, history []models.ChatMessage) (string, error) {
	q, err := s.questions.GetQuestion(ctx, subject, id)
	if err != nil {
		return "", err
	}
	return s.complete(ctx, Instruction(q), history)
}

func (s *Service) complete(ctx context.Context, instruction string, history []models.ChatMessage) (string, error) {
	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "assistant":
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		case "user":
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: m.Content})
		}
	}
	if len(messages) == 0 {
		return "", ErrEmptyConversation
	}
	last := messages[len(messages)-1]
	if last.Role != llm.RoleUser || strings.TrimSpace(last.Content) == "" {
		return "", ErrEmptyConversation
	}

	resp, err := s.provider.Complete(ctx, llm.Request{
		System:    instruction,
		Messages:  messages,
		MaxTokens: maxReplyTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return resp.Content, nil
}

// Instruction is the system prompt for a conversation about q.
func Instruction(q *models.Question) string {
	choices := make([]string, 0, len(models.ChoiceLabels))
	for _, label := range models.ChoiceLabels {
		choices = append(choices, label+": "+q.Choices.Text(label))
	}
	return fmt.Sprintf(
		"You are a helpful ACT practice assistant. This is the specific question the user is on: %s. "+
			"The available choices are: %s. The correct answer is: %s. "+
			"Try to keep your responses simple and concise.",
		q.Prompt, strings.Join(choices, ", "), q.CorrectAnswer,
	)
}
