package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/act-prep/backend/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidBatch is matched by every ValidationError.
var ErrInvalidBatch = errors.New("invalid generated batch")

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidBatch }

// ParseResponse decodes a model response into a question set for subject.
// Both a bare question array and a {passage, questions} object are accepted.
func ParseResponse(subject models.Subject, responseBody string) (*models.QuestionSet, error) {
	cleaned := extractJSON(responseBody)

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &ValidationError{Errors: []string{fmt.Sprintf("response is not JSON: %v", err)}}
	}
	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var set models.QuestionSet
	if err := json.Unmarshal([]byte(cleaned), &set); err != nil {
		return nil, fmt.Errorf("decode question set: %w", err)
	}
	if err := validateSet(subject, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// extractJSON strips markdown fences, or pulls the first ```json block out of
// surrounding prose.
func extractJSON(s string) string {
	s = stripCodeFences(s)
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		return s
	}
	start := strings.Index(s, "```json")
	if start < 0 {
		return s
	}
	rest := s[start+len("```json"):]
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// ── Schema ──────────────────────────────────────────────

var questionSchema = map[string]any{
	"type":     "object",
	"required": []any{"question", "choices", "correct_answer", "explanation", "standard", "difficulty"},
	"properties": map[string]any{
		"question": map[string]any{"type": "string", "minLength": 1},
		"choices": map[string]any{
			"type":     "object",
			"required": []any{"A", "B", "C", "D"},
			"properties": map[string]any{
				"A": map[string]any{"type": "string"},
				"B": map[string]any{"type": "string"},
				"C": map[string]any{"type": "string"},
				"D": map[string]any{"type": "string"},
			},
		},
		"correct_answer": map[string]any{"enum": []any{"A", "B", "C", "D"}},
		"explanation":    map[string]any{"type": "string"},
		"standard":       map[string]any{"type": "string"},
		"difficulty":     map[string]any{"enum": []any{"easy", "medium", "hard"}},
	},
}

var setSchema = map[string]any{
	"$defs": map[string]any{
		"question":  questionSchema,
		"questions": map[string]any{"type": "array", "minItems": 1, "items": map[string]any{"$ref": "#/$defs/question"}},
	},
	"oneOf": []any{
		map[string]any{"$ref": "#/$defs/questions"},
		map[string]any{
			"type":     "object",
			"required": []any{"questions"},
			"properties": map[string]any{
				"passage": map[string]any{
					"type":     "object",
					"required": []any{"type", "passage"},
					"properties": map[string]any{
						"type":    map[string]any{"type": "string"},
						"passage": map[string]any{"type": "string", "minLength": 1},
					},
				},
				"questions": map[string]any{"$ref": "#/$defs/questions"},
			},
		},
	},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// round-trip so the compiler sees plain decoded JSON values
		raw, err := json.Marshal(setSchema)
		if err != nil {
			compileErr = err
			return
		}
		var def any
		if err := json.Unmarshal(raw, &def); err != nil {
			compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://question-set.json"
		if err := c.AddResource(url, def); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(url)
	})
	return compiledSchema, compileErr
}

func validateSchema(doc any) error {
	sch, err := schema()
	if err != nil {
		return fmt.Errorf("compile question set schema: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	return nil
}

// ── Semantic checks ─────────────────────────────────────

func validateSet(subject models.Subject, set *models.QuestionSet) error {
	var errs []string

	switch {
	case subject.HasPassages() && set.Passage == nil:
		errs = append(errs, fmt.Sprintf("%s set has no passage", subject))
	case !subject.HasPassages() && set.Passage != nil:
		errs = append(errs, "math set must not have a passage")
	}

	if set.Passage != nil {
		words := len(strings.Fields(set.Passage.Body))
		if r, ok := PassageWords[subject]; ok && (words < r[0] || words > r[1]) {
			log.Printf("[generator] WARNING: %s passage has %d words, outside [%d, %d]", subject, words, r[0], r[1])
		}
	}

	if want := QuestionCount[subject]; len(set.Questions) != want {
		log.Printf("[generator] WARNING: asked for %d %s questions, got %d", want, subject, len(set.Questions))
	}

	correctCounts := make(map[string]int)
	for i, q := range set.Questions {
		n := i + 1
		if !models.ValidStandard(subject, q.Standard) {
			errs = append(errs, fmt.Sprintf("question %d: unknown %s standard %q", n, subject, q.Standard))
		}
		seen := make(map[string]string, 4)
		for _, label := range models.ChoiceLabels {
			text := strings.TrimSpace(q.Choices.Text(label))
			if text == "" {
				errs = append(errs, fmt.Sprintf("question %d: choice %s is empty", n, label))
				continue
			}
			if prev, dup := seen[strings.ToLower(text)]; dup {
				errs = append(errs, fmt.Sprintf("question %d: choices %s and %s are identical", n, prev, label))
			}
			seen[strings.ToLower(text)] = label
		}
		if strings.TrimSpace(q.Explanation) == "" {
			errs = append(errs, fmt.Sprintf("question %d: empty explanation", n))
		}
		correctCounts[q.CorrectAnswer]++
	}

	// clustering is a warning only
	for label, count := range correctCounts {
		if len(set.Questions) >= 6 && count > len(set.Questions)/2 {
			log.Printf("[generator] WARNING: correct answer %q appears %d times in %d questions", label, count, len(set.Questions))
		}
	}
	checkTopicDiversity(set.Questions)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// checkTopicDiversity warns when two question prompts share >60% of their keywords.
func checkTopicDiversity(questions []models.NewQuestion) {
	if len(questions) < 2 {
		return
	}
	tokenSets := make([]map[string]bool, len(questions))
	for i, q := range questions {
		tokenSets[i] = tokenize(q.Prompt)
	}
	for i := 0; i < len(questions); i++ {
		for j := i + 1; j < len(questions); j++ {
			if overlap := jaccardSimilarity(tokenSets[i], tokenSets[j]); overlap > 0.60 {
				log.Printf("[generator] WARNING: questions %d and %d have %.0f%% keyword overlap", i+1, j+1, overlap*100)
			}
		}
	}
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if len(word) > 3 {
			tokens[word] = true
		}
	}
	return tokens
}

func jaccardSimilarity(a, b map[string]bool) float64 {
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
