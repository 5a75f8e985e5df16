package services

import (
	"strings"

	"aim-edu-backend/internal/models"
)

// GradeAnswer applies a question's correctness rule to a stored answer.
// It is the single grading function used both when an answer is saved and
// when an attempt is finally scored, so the two can never disagree.
//
// Option questions are correct iff the selected option carries the correct
// flag. Fill-in-the-blank questions compare the trimmed, lower-cased
// submission against each trimmed, lower-cased variant of the question's
// pipe-separated answer list; empty submissions and empty variant lists
// grade as incorrect.
func GradeAnswer(question *models.ExamQuestion, selected *models.QuestionOption, textAnswer string) bool {
	if question.QuestionType == models.QuestionTypeFillBlanks {
		submitted := strings.ToLower(strings.TrimSpace(textAnswer))
		if submitted == "" || question.CorrectAnswers == "" {
			return false
		}
		for _, variant := range strings.Split(question.CorrectAnswers, "|") {
			if strings.ToLower(strings.TrimSpace(variant)) == submitted {
				return true
			}
		}
		return false
	}
	return selected != nil && selected.IsCorrect
}
