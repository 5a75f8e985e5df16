package services

import (
	"testing"
	"time"

	"aim-edu-backend/internal/models"

	"gorm.io/gorm"
)

func newImportFixture(t *testing.T) (*gorm.DB, *ImportService, *PreviewStore) {
	t.Helper()
	db := newTestDB(t)
	previews := NewPreviewStore(time.Minute)
	imports := NewImportService(db, NewRosterService(db), NewScoringService(), previews)
	return db, imports, previews
}

func seedSchoolWithRoster(t *testing.T, db *gorm.DB) models.School {
	t.Helper()
	school := models.School{Name: "Lyceum 1", IsActive: true}
	if err := db.Create(&school).Error; err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Math", "Physics"} {
		if err := db.Create(&models.Subject{Name: name, IsActive: true}).Error; err != nil {
			t.Fatal(err)
		}
	}
	students := []models.MasterStudent{
		{SchoolID: school.ID, StudentID: "1251001", Name: "Aidana", Surname: "Bekova", Grade: "9"},
		{SchoolID: school.ID, StudentID: "1251002", Name: "Daniyar", Surname: "Akhmetov", Grade: "9"},
	}
	for i := range students {
		if err := db.Create(&students[i]).Error; err != nil {
			t.Fatal(err)
		}
	}
	return school
}

const sampleExport = "ExternalId,FirstName,LastName,EarnedPts,PossiblePts,Q1,Q2,Q3,Q4\n" +
	"01251001,Aidana,Bekova,3,4,A,B,C,D\n" +
	"9999999,Ghost,Student,2,4,A,A,A,A\n"

func uploadSample(t *testing.T, imports *ImportService, schoolID uint) *ImportPreview {
	t.Helper()
	preview, err := imports.Upload(1, schoolID, []byte(sampleExport), "export.csv", "")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	return preview
}

func TestUploadMatchesRoster(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)

	preview := uploadSample(t, imports, school.ID)
	if len(preview.Matches) != 2 {
		t.Fatalf("got %d matches", len(preview.Matches))
	}

	// Leading-zero ID resolves through normalization.
	if preview.Matches[0].StudentID == nil {
		t.Error("row with leading-zero ID did not match roster")
	}
	if preview.Matches[1].StudentID != nil {
		t.Error("unmatched row got a student")
	}
}

func TestConfirmPersistsAtomically(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)
	preview := uploadSample(t, imports, school.ID)

	splits := []SplitDefinition{
		{SubjectID: 1, StartQuestion: 1, EndQuestion: 2, PointsPerQuestion: 1},
		{SubjectID: 2, StartQuestion: 3, EndQuestion: 4, PointsPerQuestion: 1},
	}
	exam, err := imports.Confirm(preview.Token, 1, "Term Exam", date(2026, 3, 10), splits)
	if err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}

	if exam.TotalQuestions != 4 || exam.TotalStudents != 2 {
		t.Errorf("exam counts = %d questions, %d students", exam.TotalQuestions, exam.TotalStudents)
	}
	if exam.UnknownStudents != 1 {
		t.Errorf("UnknownStudents = %d, want 1", exam.UnknownStudents)
	}

	var results int64
	db.Model(&models.ExamResult{}).Where("exam_id = ?", exam.ID).Count(&results)
	if results != 2 {
		t.Errorf("results = %d, want 2", results)
	}

	var subjectResults int64
	db.Model(&models.SubjectResult{}).Count(&subjectResults)
	if subjectResults != 4 {
		t.Errorf("subject results = %d, want 2 students x 2 splits", subjectResults)
	}

	// Preview is consumed on confirm.
	if _, err := imports.previews.Get(preview.Token, 1); err == nil {
		t.Error("preview still retrievable after confirm")
	}
}

func TestConfirmIsIdempotent(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)
	examDate := date(2026, 3, 10)

	first := uploadSample(t, imports, school.ID)
	exam1, err := imports.Confirm(first.Token, 1, "Term Exam", examDate, nil)
	if err != nil {
		t.Fatalf("first Confirm() error: %v", err)
	}

	second := uploadSample(t, imports, school.ID)
	exam2, err := imports.Confirm(second.Token, 1, "Term Exam", examDate, nil)
	if err != nil {
		t.Fatalf("second Confirm() error: %v", err)
	}

	if exam1.ID != exam2.ID {
		t.Errorf("re-confirm created a new exam: %d vs %d", exam1.ID, exam2.ID)
	}

	var results int64
	db.Model(&models.ExamResult{}).Where("exam_id = ?", exam1.ID).Count(&results)
	if results != 2 {
		t.Errorf("results = %d after re-confirm, want 2 (update in place)", results)
	}
}

func TestConfirmRejectsBadSplitsBeforePersisting(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)
	preview := uploadSample(t, imports, school.ID)

	splits := []SplitDefinition{
		{SubjectID: 1, StartQuestion: 1, EndQuestion: 3, PointsPerQuestion: 1},
		{SubjectID: 2, StartQuestion: 2, EndQuestion: 4, PointsPerQuestion: 1},
	}
	if _, err := imports.Confirm(preview.Token, 1, "Term Exam", date(2026, 3, 10), splits); err == nil {
		t.Fatal("Confirm() with overlapping splits succeeded")
	}

	var exams int64
	db.Model(&models.ZipGradeExam{}).Count(&exams)
	if exams != 0 {
		t.Errorf("exam persisted despite validation failure")
	}

	// Preview survives a failed confirm for correction and retry.
	if _, err := imports.previews.Get(preview.Token, 1); err != nil {
		t.Errorf("preview gone after failed confirm: %v", err)
	}
}

func TestResolveUnknownRecountsTally(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)
	preview := uploadSample(t, imports, school.ID)
	exam, err := imports.Confirm(preview.Token, 1, "Term Exam", date(2026, 3, 10), nil)
	if err != nil {
		t.Fatal(err)
	}

	var unknownResult models.ExamResult
	if err := db.Where("exam_id = ? AND is_unknown = ?", exam.ID, true).First(&unknownResult).Error; err != nil {
		t.Fatalf("no unknown result: %v", err)
	}

	resolved, err := imports.ResolveUnknown(unknownResult.ID, nil, "Ghost", "Resolved", "9B")
	if err != nil {
		t.Fatalf("ResolveUnknown() error: %v", err)
	}
	if resolved.IsUnknown {
		t.Error("result still flagged unknown")
	}

	var reloaded models.ZipGradeExam
	db.First(&reloaded, exam.ID)
	if reloaded.UnknownStudents != 0 {
		t.Errorf("UnknownStudents = %d after resolution, want 0", reloaded.UnknownStudents)
	}
}

func TestResolveUnknownLinkClearsManualNames(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)
	preview := uploadSample(t, imports, school.ID)
	exam, err := imports.Confirm(preview.Token, 1, "Term Exam", date(2026, 3, 10), nil)
	if err != nil {
		t.Fatal(err)
	}

	var result models.ExamResult
	if err := db.Where("exam_id = ? AND is_unknown = ?", exam.ID, true).First(&result).Error; err != nil {
		t.Fatalf("no unknown result: %v", err)
	}
	if _, err := imports.ResolveUnknown(result.ID, nil, "Ghost", "Manual", "9B"); err != nil {
		t.Fatal(err)
	}

	// Linking a roster student afterwards supersedes the manual identity.
	var student models.MasterStudent
	if err := db.Where("student_id = ?", "1251002").First(&student).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := imports.ResolveUnknown(result.ID, &student.ID, "", "", ""); err != nil {
		t.Fatalf("ResolveUnknown() link error: %v", err)
	}

	var reloaded models.ExamResult
	if err := db.First(&reloaded, result.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.StudentID == nil || *reloaded.StudentID != student.ID {
		t.Error("result not linked to the roster student")
	}
	if reloaded.ManualFirstName != "" || reloaded.ManualLastName != "" || reloaded.ManualClassName != "" {
		t.Errorf("manual name fields survived the link: %q %q %q",
			reloaded.ManualFirstName, reloaded.ManualLastName, reloaded.ManualClassName)
	}
}

func TestRecalculateReplacesSubjectResults(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)
	preview := uploadSample(t, imports, school.ID)
	exam, err := imports.Confirm(preview.Token, 1, "Term Exam", date(2026, 3, 10), []SplitDefinition{
		{SubjectID: 1, StartQuestion: 1, EndQuestion: 4, PointsPerQuestion: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := imports.Recalculate(exam.ID); err != nil {
			t.Fatalf("Recalculate() error: %v", err)
		}
	}

	var count int64
	db.Model(&models.SubjectResult{}).Count(&count)
	if count != 2 {
		t.Errorf("subject results = %d after repeated recalculation, want 2", count)
	}
}

func TestAddSplitValidatesAgainstExisting(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)
	preview := uploadSample(t, imports, school.ID)
	exam, err := imports.Confirm(preview.Token, 1, "Term Exam", date(2026, 3, 10), []SplitDefinition{
		{SubjectID: 1, StartQuestion: 1, EndQuestion: 2, PointsPerQuestion: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := imports.AddSplit(exam.ID, SplitDefinition{
		SubjectID: 2, StartQuestion: 2, EndQuestion: 4, PointsPerQuestion: 1,
	}); err == nil {
		t.Error("overlapping AddSplit succeeded")
	}

	if _, err := imports.AddSplit(exam.ID, SplitDefinition{
		SubjectID: 2, StartQuestion: 3, EndQuestion: 4, PointsPerQuestion: 1,
	}); err != nil {
		t.Errorf("valid AddSplit failed: %v", err)
	}

	var subjectResults int64
	db.Model(&models.SubjectResult{}).Count(&subjectResults)
	if subjectResults != 4 {
		t.Errorf("subject results = %d after AddSplit rescore, want 4", subjectResults)
	}
}

func TestAddSplitRollsBackWhenRescoreFails(t *testing.T) {
	db, imports, _ := newImportFixture(t)
	school := seedSchoolWithRoster(t, db)
	preview := uploadSample(t, imports, school.ID)
	exam, err := imports.Confirm(preview.Token, 1, "Term Exam", date(2026, 3, 10), []SplitDefinition{
		{SubjectID: 1, StartQuestion: 1, EndQuestion: 2, PointsPerQuestion: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Make the rescore step fail so the split write must roll back with it.
	if err := db.Exec(`CREATE TRIGGER reject_subject_results BEFORE INSERT ON subject_results
		BEGIN SELECT RAISE(ABORT, 'rescore rejected'); END`).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := imports.AddSplit(exam.ID, SplitDefinition{
		SubjectID: 2, StartQuestion: 3, EndQuestion: 4, PointsPerQuestion: 1,
	}); err == nil {
		t.Fatal("AddSplit succeeded with rescoring failing")
	}

	var splits int64
	db.Model(&models.SubjectSplit{}).Where("exam_id = ?", exam.ID).Count(&splits)
	if splits != 1 {
		t.Errorf("splits = %d after failed AddSplit, want 1 (rolled back)", splits)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
