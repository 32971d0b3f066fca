package generator

import "github.com/act-prep/backend/internal/models"

const (
	QualityPassed  = "passed"
	QualityFlagged = "flagged"
	QualityReject  = "reject"
)

// StructuralScore holds the individual structural compliance checks.
type StructuralScore struct {
	PromptLengthOK         bool
	AllChoicesInRange      bool
	ExplanationPresent     bool
	CorrectAnswerDistribOK bool
}

// ComputeStructuralScore evaluates one question. CorrectAnswerDistribOK is a
// set-level check; see answerDistributionOK.
func ComputeStructuralScore(q models.NewQuestion) StructuralScore {
	promptLen := len(q.Prompt)

	choicesOK := true
	for _, label := range models.ChoiceLabels {
		n := len(q.Choices.Text(label))
		if n < 1 || n > 300 {
			choicesOK = false
		}
	}

	return StructuralScore{
		PromptLengthOK:         promptLen >= 10 && promptLen <= 1500,
		AllChoicesInRange:      choicesOK,
		ExplanationPresent:     len(q.Explanation) >= 20,
		CorrectAnswerDistribOK: true,
	}
}

// answerDistributionOK reports whether no label is the key for more than
// half of a set of six or more questions.
func answerDistributionOK(questions []models.NewQuestion) bool {
	if len(questions) < 6 {
		return true
	}
	counts := make(map[string]int)
	for _, q := range questions {
		counts[q.CorrectAnswer]++
	}
	for _, c := range counts {
		if c > len(questions)/2 {
			return false
		}
	}
	return true
}

// ComputeQualityScore calculates a composite quality score (0.0-1.0).
//
// Formula: verification_confidence * 0.60 + structural * 0.40
func ComputeQualityScore(vr *VerificationResult, structural StructuralScore) float64 {
	verificationScore := 0.4 // unverified
	if vr != nil {
		if !vr.Matches {
			return 0
		}
		switch vr.Confidence {
		case "high":
			verificationScore = 1.0
		case "medium":
			verificationScore = 0.7
		}
	}

	structuralScore := 0.0
	if structural.PromptLengthOK {
		structuralScore += 0.25
	}
	if structural.AllChoicesInRange {
		structuralScore += 0.25
	}
	if structural.ExplanationPresent {
		structuralScore += 0.25
	}
	if structural.CorrectAnswerDistribOK {
		structuralScore += 0.25
	}

	return verificationScore*0.60 + structuralScore*0.40
}

// ClassifyQuality returns "reject" (< 0.50), "flagged" (0.50-0.70) or "passed" (> 0.70).
func ClassifyQuality(score float64) string {
	if score < 0.50 {
		return QualityReject
	}
	if score <= 0.70 {
		return QualityFlagged
	}
	return QualityPassed
}
