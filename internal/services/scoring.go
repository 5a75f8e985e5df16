package services

import (
	"math"
	"strconv"
)

type ScoringService struct{}

func NewScoringService() *ScoringService {
	return &ScoringService{}
}

// SplitSpec describes one subject's question range for scoring.
type SplitSpec struct {
	SplitID           uint
	SubjectID         uint
	StartQuestion     int
	EndQuestion       int
	PointsPerQuestion float64
}

// QuestionOutcome records a single question's grading inside a split.
type QuestionOutcome struct {
	Answer    string `json:"answer"`
	Correct   string `json:"correct"`
	IsCorrect bool   `json:"is_correct"`
}

type SubjectScore struct {
	SplitID         uint
	SubjectID       uint
	EarnedPoints    float64
	MaxPoints       float64
	Percentage      float64
	CorrectCount    int
	TotalCount      int
	QuestionResults map[string]QuestionOutcome
}

// CalculateSubjectScores grades a student's answers against an answer key,
// split by subject ranges. Answers and the key are both keyed by the 1-based
// question number as a string. A question counts correct only when the key
// has a non-empty entry and the student's token equals it exactly.
func (s *ScoringService) CalculateSubjectScores(answers, answerKey map[string]string, splits []SplitSpec) []SubjectScore {
	scores := make([]SubjectScore, 0, len(splits))

	for _, split := range splits {
		correct := 0
		total := 0
		outcomes := make(map[string]QuestionOutcome)

		for q := split.StartQuestion; q <= split.EndQuestion; q++ {
			key := strconv.Itoa(q)
			studentAnswer := answers[key]
			correctAnswer := answerKey[key]

			total++
			isCorrect := correctAnswer != "" && studentAnswer == correctAnswer
			outcomes[key] = QuestionOutcome{
				Answer:    studentAnswer,
				Correct:   correctAnswer,
				IsCorrect: isCorrect,
			}
			if isCorrect {
				correct++
			}
		}

		earned := float64(correct) * split.PointsPerQuestion
		maxPts := float64(total) * split.PointsPerQuestion
		pct := 0.0
		if maxPts > 0 {
			pct = earned / maxPts * 100
		}

		scores = append(scores, SubjectScore{
			SplitID:         split.SplitID,
			SubjectID:       split.SubjectID,
			EarnedPoints:    earned,
			MaxPoints:       maxPts,
			Percentage:      round2(pct),
			CorrectCount:    correct,
			TotalCount:      total,
			QuestionResults: outcomes,
		})
	}

	return scores
}

// ProratedSubjectScores spreads a student's overall percentage uniformly over
// each split's range. Used when no answer key exists, which is the common
// case: the import stores raw answer tokens but no key, so true per-question
// subject correctness cannot be computed. The approximation is deliberate.
func (s *ScoringService) ProratedSubjectScores(overallPercentage float64, splits []SplitSpec) []SubjectScore {
	scores := make([]SubjectScore, 0, len(splits))

	for _, split := range splits {
		maxPts := split.PointsPerQuestion * float64(split.EndQuestion-split.StartQuestion+1)
		earned := overallPercentage / 100 * maxPts
		pct := overallPercentage
		if maxPts <= 0 {
			earned = 0
			pct = 0
		}

		scores = append(scores, SubjectScore{
			SplitID:      split.SplitID,
			SubjectID:    split.SubjectID,
			EarnedPoints: round2(earned),
			MaxPoints:    maxPts,
			Percentage:   round2(pct),
			TotalCount:   split.EndQuestion - split.StartQuestion + 1,
		})
	}

	return scores
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
