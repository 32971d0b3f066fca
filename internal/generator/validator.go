package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/act-prep/backend/internal/llm"
	"github.com/act-prep/backend/internal/models"
)

// Verifier has a model answer each generated question without seeing the key.
type Verifier struct {
	llm llm.Provider
}

func NewVerifier(provider llm.Provider) *Verifier {
	return &Verifier{llm: provider}
}

type VerificationResult struct {
	QuestionIndex   int    `json:"question_index"`
	SelectedAnswer  string `json:"selected_answer"`
	GeneratedAnswer string `json:"generated_answer"`
	Matches         bool   `json:"matches"`
	Confidence      string `json:"confidence"`
	Reasoning       string `json:"reasoning"`
	PromptTokens    int    `json:"-"`
	OutputTokens    int    `json:"-"`
}

type verificationResponse struct {
	SelectedAnswer string `json:"selected_answer"`
	Confidence     string `json:"confidence"`
	Reasoning      string `json:"reasoning"`
}

// VerifySet checks every question of set. A failed call does not reject the
// question; it is recorded as a low-confidence match.
func (v *Verifier) VerifySet(ctx context.Context, set *models.QuestionSet) []VerificationResult {
	results := make([]VerificationResult, 0, len(set.Questions))

	for i, q := range set.Questions {
		vr, err := v.VerifyQuestion(ctx, q, set.Passage)
		if err != nil {
			log.Printf("[generator] WARN: verification failed for question %d: %v, passing as unverified", i+1, err)
			vr = &VerificationResult{
				SelectedAnswer: q.CorrectAnswer,
				Confidence:     "low",
				Reasoning:      fmt.Sprintf("verification error: %v", err),
			}
		}
		vr.QuestionIndex = i
		vr.GeneratedAnswer = q.CorrectAnswer
		vr.Matches = vr.SelectedAnswer == q.CorrectAnswer
		results = append(results, *vr)
	}
	return results
}

func (v *Verifier) VerifyQuestion(ctx context.Context, q models.NewQuestion, passage *models.NewPassage) (*VerificationResult, error) {
	resp, err := v.llm.Complete(ctx, llm.Request{
		System:    verificationSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: buildVerificationPrompt(q, passage)}},
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("verification call failed: %w", err)
	}

	var vResp verificationResponse
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Content)), &vResp); err != nil {
		return nil, &llm.ErrInvalidResponse{Content: resp.Content, Err: fmt.Errorf("parse verification response: %w", err)}
	}

	return &VerificationResult{
		SelectedAnswer: strings.ToUpper(strings.TrimSpace(vResp.SelectedAnswer)),
		Confidence:     vResp.Confidence,
		Reasoning:      vResp.Reasoning,
		PromptTokens:   resp.PromptTokens,
		OutputTokens:   resp.OutputTokens,
	}, nil
}
