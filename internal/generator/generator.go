package generator

import (
	"context"
	"fmt"
	"log"

	"github.com/act-prep/backend/internal/llm"
	"github.com/act-prep/backend/internal/models"
	"github.com/act-prep/backend/internal/worker"
)

// GeneratedQuestion is a parsed question with its quality verdict.
type GeneratedQuestion struct {
	models.NewQuestion
	Quality      string              `json:"quality"`
	QualityScore float64             `json:"quality_score"`
	Verification *VerificationResult `json:"verification,omitempty"`
}

// Result is one generation batch after rejects were dropped. It is not stored.
type Result struct {
	Subject      models.Subject      `json:"subject"`
	Model        string              `json:"model"`
	Passage      *models.NewPassage  `json:"passage,omitempty"`
	Questions    []GeneratedQuestion `json:"questions"`
	Rejected     int                 `json:"rejected"`
	PromptTokens int                 `json:"prompt_tokens"`
	OutputTokens int                 `json:"output_tokens"`
}

// QuestionSet returns the kept questions in upload shape.
func (r *Result) QuestionSet() models.QuestionSet {
	set := models.QuestionSet{Passage: r.Passage, Questions: make([]models.NewQuestion, 0, len(r.Questions))}
	for _, q := range r.Questions {
		set.Questions = append(set.Questions, q.NewQuestion)
	}
	return set
}

// Generator produces ACT question sets with an LLM.
type Generator struct {
	llm      llm.Provider
	verifier *Verifier
	workers  int
}

// NewGenerator builds a generator. A nil verifier skips the verification stage.
func NewGenerator(provider llm.Provider, verifier *Verifier, workers int) *Generator {
	if workers < 1 {
		workers = 1
	}
	return &Generator{llm: provider, verifier: verifier, workers: workers}
}

func (g *Generator) ModelName() string {
	return g.llm.Model()
}

// Generate runs one batch for subject: generate, parse, verify, classify.
func (g *Generator) Generate(ctx context.Context, subject models.Subject) (*Result, error) {
	if !subject.Valid() {
		return nil, fmt.Errorf("generate: unknown subject %q", subject)
	}

	resp, err := g.llm.Complete(ctx, llm.Request{
		System:      SystemPrompt(),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: BuildUserPrompt(subject)}},
		MaxTokens:   8192,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s batch: %w", subject, err)
	}

	set, err := ParseResponse(subject, resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", subject, err)
	}

	result := &Result{
		Subject:      subject,
		Model:        g.llm.Model(),
		Passage:      set.Passage,
		PromptTokens: resp.PromptTokens,
		OutputTokens: resp.OutputTokens,
	}

	var verifications []VerificationResult
	if g.verifier != nil {
		verifications = g.verifier.VerifySet(ctx, set)
	}
	distribOK := answerDistributionOK(set.Questions)

	for i, q := range set.Questions {
		structural := ComputeStructuralScore(q)
		structural.CorrectAnswerDistribOK = distribOK

		var vr *VerificationResult
		if verifications != nil {
			vr = &verifications[i]
			result.PromptTokens += vr.PromptTokens
			result.OutputTokens += vr.OutputTokens
		}

		score := ComputeQualityScore(vr, structural)
		quality := ClassifyQuality(score)
		if quality == QualityReject {
			result.Rejected++
			continue
		}
		result.Questions = append(result.Questions, GeneratedQuestion{
			NewQuestion:  q,
			Quality:      quality,
			QualityScore: score,
			Verification: vr,
		})
	}

	log.Printf("[generator] %s: kept %d, rejected %d (%d/%d tokens)",
		subject, len(result.Questions), result.Rejected, result.PromptTokens, result.OutputTokens)
	return result, nil
}

// GenerateMany runs one batch per subject on the worker pool. Failed
// subjects are reported in the error map and absent from the results.
func (g *Generator) GenerateMany(ctx context.Context, subjects []models.Subject) (map[models.Subject]*Result, map[models.Subject]error) {
	type outcome struct {
		result *Result
		err    error
	}

	pool := worker.NewPool[outcome](g.workers, len(subjects))
	for _, subject := range subjects {
		s := subject
		pool.Submit(string(s), func() outcome {
			r, err := g.Generate(ctx, s)
			return outcome{result: r, err: err}
		})
	}
	pool.Close()

	results := make(map[models.Subject]*Result)
	errs := make(map[models.Subject]error)
	for r := range pool.Results() {
		subject := models.Subject(r.JobID)
		if r.Output.err != nil {
			log.Printf("[generator] %s failed: %v", subject, r.Output.err)
			errs[subject] = r.Output.err
			continue
		}
		results[subject] = r.Output.result
	}
	return results, errs
}
