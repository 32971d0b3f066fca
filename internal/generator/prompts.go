package generator

import (
	"fmt"
	"strings"

	"github.com/act-prep/backend/internal/models"
)

// QuestionCount is how many questions one generation call asks for.
var QuestionCount = map[models.Subject]int{
	models.SubjectMath:    10,
	models.SubjectReading: 10,
	models.SubjectEnglish: 15,
	models.SubjectScience: 7,
}

// PassageWords is the requested passage length range in words.
var PassageWords = map[models.Subject][2]int{
	models.SubjectReading: {700, 900},
	models.SubjectEnglish: {300, 400},
	models.SubjectScience: {150, 300},
}

// SystemPrompt returns the system prompt shared by every subject.
func SystemPrompt() string {
	return `You are generating ACT-style practice questions in JSON format for a high-quality educational app.

GUIDELINES:
- Math: individual questions using the BaseQuestion structure.
- Reading, English, Science: one PassageQuestion with a passage and its questions.
- Each question must be unique, high quality, and clearly aligned to the ACT exam.
- Questions should be realistic, engaging, and test relevant cognitive skills, not trivial recall.
- Distribute difficulty levels (easy, medium, hard) across the set.
- Each question must carry a standard from the provided list for its subject, spelled exactly.
- Exactly four choices labeled A through D, exactly one of them correct.
- Vary the position of the correct answer across A-D.

STRUCTURES:

BaseQuestion:
{
  "question": "...",
  "choices": {"A": "...", "B": "...", "C": "...", "D": "..."},
  "correct_answer": "A" | "B" | "C" | "D",
  "explanation": "...",
  "standard": "...",
  "difficulty": "easy" | "medium" | "hard"
}

PassageQuestion:
{
  "passage": {"type": "...", "passage": "..."},
  "questions": [BaseQuestion, ...]
}

Do not explain anything. Respond with valid JSON only.`
}

// BuildUserPrompt asks for one generation batch for subject.
func BuildUserPrompt(subject models.Subject) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Subject: %s\n\n", subject)
	sb.WriteString("Standards for this subject:\n")
	for _, std := range models.Standards[subject] {
		fmt.Fprintf(&sb, "- %s\n", std)
	}
	sb.WriteString("\n")

	n := QuestionCount[subject]
	if subject.HasPassages() {
		words := PassageWords[subject]
		fmt.Fprintf(&sb, "Output one PassageQuestion object with a %d-%d word passage and exactly %d questions about it.\n",
			words[0], words[1], n)
		fmt.Fprintf(&sb, "Set passage.type to the kind of %s passage (for example %s).\n", subject, passageTypeHint(subject))
	} else {
		fmt.Fprintf(&sb, "Output a JSON array of exactly %d BaseQuestion objects.\n", n)
	}
	sb.WriteString("Use varied standards and difficulties. Output clean, valid JSON only, with no extra fluff or explanation.")
	return sb.String()
}

func passageTypeHint(subject models.Subject) string {
	switch subject {
	case models.SubjectReading:
		return `"Literary Narrative", "Social Science", "Humanities" or "Natural Science"`
	case models.SubjectEnglish:
		return `"Essay" or "Informational"`
	case models.SubjectScience:
		return `"Data Representation", "Research Summaries" or "Conflicting Viewpoints"`
	}
	return `"General"`
}

// ── Verification ────────────────────────────────────────

const verificationSystemPrompt = `You are an expert ACT tutor who scores a 36 on every section. You are reviewing a practice question to determine which answer is correct. Think through each choice before answering. Respond with JSON only.`

func buildVerificationPrompt(q models.NewQuestion, passage *models.NewPassage) string {
	var sb strings.Builder

	if passage != nil {
		sb.WriteString("PASSAGE:\n")
		sb.WriteString(passage.Body)
		sb.WriteString("\n\n")
	}

	sb.WriteString("QUESTION:\n")
	sb.WriteString(q.Prompt)
	sb.WriteString("\n\nCHOICES:\n")
	for _, label := range models.ChoiceLabels {
		fmt.Fprintf(&sb, "(%s) %s\n", label, q.Choices.Text(label))
	}

	sb.WriteString(`
Select the BEST answer. Respond with JSON only:
{
  "selected_answer": "B",
  "confidence": "high",
  "reasoning": "Why this answer is right and each other choice is wrong..."
}

confidence must be one of: "high", "medium", "low"`)

	return sb.String()
}
