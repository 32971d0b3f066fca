package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/act-prep/backend/internal/llm"
	"github.com/act-prep/backend/internal/models"
)

// MockReply answers generation prompts with a well-formed placeholder set so
// the admin flow works without an API key. Other prompts get a short text.
func MockReply(req llm.Request) string {
	if len(req.Messages) == 0 {
		return "[Mock] no prompt"
	}
	subject, ok := promptSubject(req.Messages[len(req.Messages)-1].Content)
	if !ok {
		return "[Mock] This is a placeholder answer."
	}
	set := mockSet(subject)
	var data []byte
	if subject.HasPassages() {
		data, _ = json.Marshal(set)
	} else {
		// math comes back as a bare array, the way the prompt asks
		data, _ = json.Marshal(set.Questions)
	}
	return string(data)
}

func promptSubject(prompt string) (models.Subject, bool) {
	first, _, _ := strings.Cut(prompt, "\n")
	name, found := strings.CutPrefix(first, "Subject: ")
	if !found {
		return "", false
	}
	s := models.Subject(strings.TrimSpace(name))
	return s, s.Valid()
}

func mockSet(subject models.Subject) models.QuestionSet {
	standards := models.Standards[subject]
	n := QuestionCount[subject]

	set := models.QuestionSet{Questions: make([]models.NewQuestion, 0, n)}
	if subject.HasPassages() {
		words := PassageWords[subject][0]
		set.Passage = &models.NewPassage{
			Type: "Mock",
			Body: strings.TrimSpace(strings.Repeat("[Mock] placeholder passage text ", words/4+1)),
		}
	}

	for i := 0; i < n; i++ {
		correct := models.ChoiceLabels[i%len(models.ChoiceLabels)]
		set.Questions = append(set.Questions, models.NewQuestion{
			Prompt: fmt.Sprintf("[Mock] %s question %d about %s?", subject, i+1, standards[i%len(standards)]),
			Choices: models.Choices{
				A: fmt.Sprintf("[Mock] option A for question %d", i+1),
				B: fmt.Sprintf("[Mock] option B for question %d", i+1),
				C: fmt.Sprintf("[Mock] option C for question %d", i+1),
				D: fmt.Sprintf("[Mock] option D for question %d", i+1),
			},
			CorrectAnswer: correct,
			Explanation:   fmt.Sprintf("[Mock] %s is correct because it is the placeholder key.", correct),
			Standard:      standards[i%len(standards)],
			Difficulty:    models.DifficultyLevels[i%len(models.DifficultyLevels)],
		})
	}
	return set
}
