package services

import "testing"

func TestCalculateSubjectScores(t *testing.T) {
	s := NewScoringService()
	answers := map[string]string{"1": "A", "2": "B", "3": "C", "4": "D"}
	key := map[string]string{"1": "A", "2": "X", "3": "C", "4": ""}
	splits := []SplitSpec{
		{SplitID: 1, SubjectID: 10, StartQuestion: 1, EndQuestion: 2, PointsPerQuestion: 2},
		{SplitID: 2, SubjectID: 20, StartQuestion: 3, EndQuestion: 4, PointsPerQuestion: 1},
	}

	scores := s.CalculateSubjectScores(answers, key, splits)
	if len(scores) != 2 {
		t.Fatalf("got %d scores", len(scores))
	}

	// Split 1: Q1 correct, Q2 wrong.
	if scores[0].EarnedPoints != 2 || scores[0].MaxPoints != 4 || scores[0].Percentage != 50 {
		t.Errorf("split 1 = %+v", scores[0])
	}
	// Split 2: Q3 correct, Q4 has an empty key entry and never counts.
	if scores[1].EarnedPoints != 1 || scores[1].CorrectCount != 1 {
		t.Errorf("split 2 = %+v", scores[1])
	}
	if scores[1].QuestionResults["4"].IsCorrect {
		t.Error("question with empty key entry graded correct")
	}
}

func TestCalculateSubjectScoresZeroMax(t *testing.T) {
	s := NewScoringService()
	splits := []SplitSpec{
		{SplitID: 1, SubjectID: 10, StartQuestion: 1, EndQuestion: 2, PointsPerQuestion: 0},
	}
	scores := s.CalculateSubjectScores(map[string]string{}, map[string]string{}, splits)
	if scores[0].Percentage != 0 {
		t.Errorf("Percentage = %v, want 0 for zero max points", scores[0].Percentage)
	}
}

func TestProratedSubjectScores(t *testing.T) {
	s := NewScoringService()
	splits := []SplitSpec{
		{SplitID: 1, SubjectID: 10, StartQuestion: 1, EndQuestion: 10, PointsPerQuestion: 1},
		{SplitID: 2, SubjectID: 20, StartQuestion: 11, EndQuestion: 15, PointsPerQuestion: 2},
	}

	scores := s.ProratedSubjectScores(80, splits)
	if scores[0].EarnedPoints != 8 || scores[0].MaxPoints != 10 || scores[0].Percentage != 80 {
		t.Errorf("split 1 = %+v", scores[0])
	}
	if scores[1].EarnedPoints != 8 || scores[1].MaxPoints != 10 || scores[1].Percentage != 80 {
		t.Errorf("split 2 = %+v", scores[1])
	}
}

func TestProratedZeroLengthRange(t *testing.T) {
	s := NewScoringService()
	splits := []SplitSpec{
		{SplitID: 1, SubjectID: 10, StartQuestion: 5, EndQuestion: 4, PointsPerQuestion: 1},
	}
	scores := s.ProratedSubjectScores(90, splits)
	if scores[0].EarnedPoints != 0 || scores[0].Percentage != 0 {
		t.Errorf("zero-length range = %+v", scores[0])
	}
}

func TestValidateSplits(t *testing.T) {
	tests := []struct {
		name    string
		splits  []SplitDefinition
		total   int
		wantErr bool
	}{
		{
			"non overlapping ok",
			[]SplitDefinition{
				{SubjectID: 1, StartQuestion: 1, EndQuestion: 10},
				{SubjectID: 2, StartQuestion: 11, EndQuestion: 20},
			},
			20, false,
		},
		{
			"overlap rejected",
			[]SplitDefinition{
				{SubjectID: 1, StartQuestion: 8, EndQuestion: 15},
				{SubjectID: 2, StartQuestion: 1, EndQuestion: 10},
			},
			20, true,
		},
		{
			"identical range different subject rejected",
			[]SplitDefinition{
				{SubjectID: 1, StartQuestion: 1, EndQuestion: 10},
				{SubjectID: 2, StartQuestion: 1, EndQuestion: 10},
			},
			20, true,
		},
		{
			"duplicate subject rejected",
			[]SplitDefinition{
				{SubjectID: 1, StartQuestion: 1, EndQuestion: 5},
				{SubjectID: 1, StartQuestion: 6, EndQuestion: 10},
			},
			20, true,
		},
		{
			"out of bounds rejected",
			[]SplitDefinition{
				{SubjectID: 1, StartQuestion: 15, EndQuestion: 25},
			},
			20, true,
		},
		{
			"inverted range rejected",
			[]SplitDefinition{
				{SubjectID: 1, StartQuestion: 10, EndQuestion: 5},
			},
			20, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSplits(tt.splits, tt.total)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSplits() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
