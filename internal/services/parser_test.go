package services

import (
	"strings"
	"testing"
)

func parseCSV(t *testing.T, csv string) *ParseResult {
	t.Helper()
	p := NewZipGradeParser([]byte(csv), "results.csv")
	result, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return result
}

func TestParseBasicCSV(t *testing.T) {
	result := parseCSV(t,
		"ExternalId,FirstName,LastName,EarnedPts,PossiblePts,Percent,Q1,Q2,Q3\n"+
			"01251001,Aidana,Bekova,2,3,66.7,a,B,C\n"+
			"1251002,Daniyar,Akhmetov,3,3,100,A,B,C\n")

	if result.TotalStudents != 2 {
		t.Fatalf("TotalStudents = %d, want 2", result.TotalStudents)
	}
	if result.TotalQuestions != 3 {
		t.Fatalf("TotalQuestions = %d, want 3", result.TotalQuestions)
	}

	first := result.Results[0]
	if first.StudentID != "01251001" {
		t.Errorf("StudentID = %q", first.StudentID)
	}
	if first.StudentIDNormalized != "1251001" {
		t.Errorf("StudentIDNormalized = %q", first.StudentIDNormalized)
	}
	if first.Earned != 2 || first.MaxPoints != 3 {
		t.Errorf("earned/max = %v/%v", first.Earned, first.MaxPoints)
	}
	// Answer tokens are upper-cased.
	if first.Answers["1"] != "A" {
		t.Errorf("answer 1 = %q, want A", first.Answers["1"])
	}
}

func TestAnswerColumnOrdering(t *testing.T) {
	result := parseCSV(t,
		"ExternalId,Q2,Q10,Q1\n"+
			"1,B,J,A\n")

	want := []string{"Q1", "Q2", "Q10"}
	if len(result.AnswerColumns) != len(want) {
		t.Fatalf("AnswerColumns = %v", result.AnswerColumns)
	}
	for i, col := range want {
		if result.AnswerColumns[i] != col {
			t.Errorf("AnswerColumns[%d] = %q, want %q (numeric, not lexicographic)",
				i, result.AnswerColumns[i], col)
		}
	}
	// The mapping follows the sorted order: position 1 is Q1's value.
	if result.Results[0].Answers["1"] != "A" || result.Results[0].Answers["3"] != "J" {
		t.Errorf("answers = %v", result.Results[0].Answers)
	}
}

func TestBOMStripped(t *testing.T) {
	result := parseCSV(t, "\uFEFFExternalId,EarnedPts\n42,5\n")
	if result.Results[0].StudentID != "42" {
		t.Errorf("StudentID = %q; BOM not stripped from first header", result.Results[0].StudentID)
	}
}

func TestCommaDecimalSeparator(t *testing.T) {
	result := parseCSV(t,
		"ExternalId,EarnedPts,PossiblePts\n"+
			"1,\"7,5\",10\n")
	if result.Results[0].Earned != 7.5 {
		t.Errorf("Earned = %v, want 7.5", result.Results[0].Earned)
	}
	if result.Results[0].Percentage != 75 {
		t.Errorf("Percentage = %v, want 75 (computed from earned/max)", result.Results[0].Percentage)
	}
}

func TestMissingIDPlaceholder(t *testing.T) {
	result := parseCSV(t,
		"ExternalId,EarnedPts,Q1\n"+
			",3,A\n"+
			",,\n")

	if result.TotalStudents != 1 {
		t.Fatalf("TotalStudents = %d, want 1 (all-empty row skipped)", result.TotalStudents)
	}
	if result.Results[0].StudentID != MissingIDPlaceholder {
		t.Errorf("StudentID = %q, want %q", result.Results[0].StudentID, MissingIDPlaceholder)
	}
}

func TestModalMaxPointsTruncation(t *testing.T) {
	// Trailing-digit rule would pick up "Room101" as a false positive; the
	// modal max-points value of 2 truncates the detected columns back to 2.
	result := parseCSV(t,
		"ExternalId,PossiblePts,Q1,Q2,Room101\n"+
			"1,2,A,B,7\n"+
			"2,2,C,D,7\n")

	if result.TotalQuestions != 2 {
		t.Fatalf("TotalQuestions = %d, want 2", result.TotalQuestions)
	}
	if _, ok := result.Results[0].Answers["3"]; ok {
		t.Error("truncated answer key 3 still present")
	}
}

func TestDenylistedHeadersNotAnswers(t *testing.T) {
	result := parseCSV(t,
		"ExternalId,Date,Teacher,Q1\n"+
			"1,2024-01-01,Ms Lee,A\n")
	if len(result.AnswerColumns) != 1 || result.AnswerColumns[0] != "Q1" {
		t.Errorf("AnswerColumns = %v, want [Q1]", result.AnswerColumns)
	}
}

func TestFirstHeaderWins(t *testing.T) {
	result := parseCSV(t,
		"ExternalId,Student ID,EarnedPts\n"+
			"111,222,5\n")
	if result.Results[0].StudentID != "111" {
		t.Errorf("StudentID = %q, want value of first matching header", result.Results[0].StudentID)
	}
}

func TestRowErrorsCollectedNotFatal(t *testing.T) {
	result := parseCSV(t,
		"ExternalId,EarnedPts\n"+
			"1,notanumber\n"+
			"2,4\n")

	if result.TotalStudents != 2 {
		t.Fatalf("TotalStudents = %d, want 2 (bad numeric is a warning, not a drop)", result.TotalStudents)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "row 2") {
		t.Errorf("Errors = %v", result.Errors)
	}
	if result.Results[0].Earned != 0 {
		t.Errorf("Earned = %v, want 0 fallback", result.Results[0].Earned)
	}
}

func TestEmptyFileIsFatal(t *testing.T) {
	p := NewZipGradeParser([]byte(""), "empty.csv")
	if _, err := p.Parse(); err == nil {
		t.Fatal("Parse() on empty file succeeded, want error")
	}
}

func TestRussianQuestionHeaders(t *testing.T) {
	result := parseCSV(t,
		"ExternalId,ВОПРОС 1,ВОПРОС 2\n"+
			"1,А,Б\n")
	if len(result.AnswerColumns) != 2 {
		t.Fatalf("AnswerColumns = %v", result.AnswerColumns)
	}
}

func TestCP1251Fallback(t *testing.T) {
	// "Иванов" in Windows-1251; invalid as UTF-8, so the decoder must fall
	// back before giving up.
	content := append([]byte("ExternalId,FirstName\n1,"),
		0xC8, 0xE2, 0xE0, 0xED, 0xEE, 0xE2, '\n')
	p := NewZipGradeParser(content, "results.csv")
	result, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if result.TotalStudents != 1 {
		t.Fatalf("TotalStudents = %d", result.TotalStudents)
	}
	if result.Results[0].FirstName == "" {
		t.Error("FirstName empty after encoding fallback")
	}
}
