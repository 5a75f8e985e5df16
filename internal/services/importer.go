package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aim-edu-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SplitDefinition is the caller-supplied shape of one subject question range.
type SplitDefinition struct {
	SubjectID         uint    `json:"subject_id" binding:"required"`
	StartQuestion     int     `json:"start_question" binding:"required"`
	EndQuestion       int     `json:"end_question" binding:"required"`
	PointsPerQuestion float64 `json:"points_per_question"`
}

// ImportService runs the answer-sheet pipeline: upload and parse, preview
// roster matches without persisting, then confirm inside one transaction.
type ImportService struct {
	db       *gorm.DB
	roster   *RosterService
	scoring  *ScoringService
	previews *PreviewStore
}

func NewImportService(db *gorm.DB, roster *RosterService, scoring *ScoringService, previews *PreviewStore) *ImportService {
	return &ImportService{db: db, roster: roster, scoring: scoring, previews: previews}
}

// Upload parses a file and stashes the result as a preview for the uploading
// user. Nothing is written to the database; the returned preview carries the
// token the confirm call must present.
func (s *ImportService) Upload(ownerID, schoolID uint, content []byte, filename, encodingHint string) (*ImportPreview, error) {
	parser := NewZipGradeParser(content, filename)
	if encodingHint != "" {
		parser.Encoding = encodingHint
	}
	parse, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	matches, err := s.PreviewMatch(schoolID, parse)
	if err != nil {
		return nil, err
	}

	preview := &ImportPreview{
		OwnerID:  ownerID,
		SchoolID: schoolID,
		Filename: filename,
		Parse:    parse,
		Matches:  matches,
	}
	s.previews.Put(preview)
	return preview, nil
}

// DiscardPreview drops a pending preview without persisting anything.
func (s *ImportService) DiscardPreview(token string, ownerID uint) {
	s.previews.Discard(token, ownerID)
}

// PreviewMatch resolves every parsed row against the school's roster. A row
// with no match gets a nil StudentID; it is shown to the user as unknown, not
// dropped.
func (s *ImportService) PreviewMatch(schoolID uint, parse *ParseResult) ([]StudentMatch, error) {
	matches := make([]StudentMatch, 0, len(parse.Results))
	for _, row := range parse.Results {
		match := StudentMatch{Row: row}
		student, err := s.roster.FindByNormalizedID(schoolID, row.StudentID)
		if err != nil {
			return nil, err
		}
		if student != nil {
			id := student.ID
			match.StudentID = &id
			match.FullName = student.FullName()
			match.Grade = student.Grade
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Confirm persists a previewed upload as one atomic import. The batch is
// found or created by (school, title, exam date), so re-confirming the same
// upload updates results in place instead of duplicating them. The preview is
// discarded only after the transaction commits.
func (s *ImportService) Confirm(token string, ownerID uint, title string, examDate time.Time, splits []SplitDefinition) (*models.ZipGradeExam, error) {
	preview, err := s.previews.Get(token, ownerID)
	if err != nil {
		return nil, err
	}

	if err := validateSplits(splits, preview.Parse.TotalQuestions); err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	exam, err := s.confirmTx(tx, preview, ownerID, title, examDate, splits)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	s.previews.Discard(token, ownerID)
	return exam, nil
}

func (s *ImportService) confirmTx(tx *gorm.DB, preview *ImportPreview, ownerID uint, title string, examDate time.Time, splits []SplitDefinition) (*models.ZipGradeExam, error) {
	var exam models.ZipGradeExam
	err := tx.Where("school_id = ? AND title = ? AND exam_date = ?",
		preview.SchoolID, title, examDate).First(&exam).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		exam = models.ZipGradeExam{
			SchoolID:         preview.SchoolID,
			UploadedByID:     &ownerID,
			Title:            title,
			OriginalFilename: preview.Filename,
			ExamDate:         examDate,
		}
		if err := tx.Create(&exam).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	exam.OriginalFilename = preview.Filename
	exam.TotalQuestions = preview.Parse.TotalQuestions
	exam.TotalStudents = preview.Parse.TotalStudents

	// Replace the split set wholesale; per-split edits go through
	// AddSplit/UpdateSplit afterwards. Subject results of prior splits go
	// with them so nothing references a deleted split.
	var oldResultIDs []uint
	if err := tx.Model(&models.ExamResult{}).Where("exam_id = ?", exam.ID).
		Pluck("id", &oldResultIDs).Error; err != nil {
		return nil, err
	}
	if len(oldResultIDs) > 0 {
		if err := tx.Where("result_id IN ?", oldResultIDs).Delete(&models.SubjectResult{}).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Where("exam_id = ?", exam.ID).Delete(&models.SubjectSplit{}).Error; err != nil {
		return nil, err
	}
	splitModels := make([]models.SubjectSplit, 0, len(splits))
	for _, def := range splits {
		split := models.SubjectSplit{
			ExamID:            exam.ID,
			SubjectID:         def.SubjectID,
			StartQuestion:     def.StartQuestion,
			EndQuestion:       def.EndQuestion,
			PointsPerQuestion: def.PointsPerQuestion,
		}
		if split.PointsPerQuestion == 0 {
			split.PointsPerQuestion = 1
		}
		if err := tx.Create(&split).Error; err != nil {
			return nil, err
		}
		splitModels = append(splitModels, split)
	}

	unknown := 0
	for _, match := range preview.Matches {
		result, err := upsertResult(tx, exam.ID, match)
		if err != nil {
			return nil, err
		}
		if result.IsUnknown {
			unknown++
		}
		if err := s.regenerateSubjectResults(tx, result, splitModels); err != nil {
			return nil, err
		}
	}

	exam.UnknownStudents = unknown
	if err := tx.Save(&exam).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func upsertResult(tx *gorm.DB, examID uint, match StudentMatch) (*models.ExamResult, error) {
	answersJSON, err := json.Marshal(match.Row.Answers)
	if err != nil {
		return nil, err
	}

	var result models.ExamResult
	err = tx.Where("exam_id = ? AND zip_grade_student_id = ?", examID, match.Row.StudentID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		result = models.ExamResult{
			ExamID:            examID,
			ZipGradeStudentID: match.Row.StudentID,
		}
	} else if err != nil {
		return nil, err
	}

	result.StudentID = match.StudentID
	result.ZipGradeFirstName = match.Row.FirstName
	result.ZipGradeLastName = match.Row.LastName
	result.EarnedPoints = match.Row.Earned
	result.MaxPoints = match.Row.MaxPoints
	result.Percentage = match.Row.Percentage
	result.Answers = datatypes.JSON(answersJSON)
	result.IsUnknown = match.StudentID == nil

	if err := tx.Save(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// regenerateSubjectResults deletes and recreates the per-subject rows of one
// result. No answer key exists for imported sheets, so scores are prorated
// from the overall percentage.
func (s *ImportService) regenerateSubjectResults(tx *gorm.DB, result *models.ExamResult, splits []models.SubjectSplit) error {
	if err := tx.Where("result_id = ?", result.ID).Delete(&models.SubjectResult{}).Error; err != nil {
		return err
	}
	if len(splits) == 0 {
		return nil
	}

	specs := make([]SplitSpec, 0, len(splits))
	for _, split := range splits {
		specs = append(specs, SplitSpec{
			SplitID:           split.ID,
			SubjectID:         split.SubjectID,
			StartQuestion:     split.StartQuestion,
			EndQuestion:       split.EndQuestion,
			PointsPerQuestion: split.PointsPerQuestion,
		})
	}

	for _, score := range s.scoring.ProratedSubjectScores(result.Percentage, specs) {
		row := models.SubjectResult{
			ResultID:       result.ID,
			SubjectSplitID: score.SplitID,
			EarnedPoints:   score.EarnedPoints,
			MaxPoints:      score.MaxPoints,
			Percentage:     score.Percentage,
		}
		if len(score.QuestionResults) > 0 {
			detail, err := json.Marshal(score.QuestionResults)
			if err != nil {
				return err
			}
			row.QuestionResults = datatypes.JSON(detail)
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// validateSplits rejects a split set before anything is persisted: every
// range must lie within [1, totalQuestions], ranges must not overlap, and a
// subject may appear at most once.
func validateSplits(splits []SplitDefinition, totalQuestions int) error {
	seenSubjects := make(map[uint]bool)
	for i, def := range splits {
		if def.StartQuestion < 1 || def.EndQuestion < def.StartQuestion {
			return fmt.Errorf("invalid question range Q%d-Q%d", def.StartQuestion, def.EndQuestion)
		}
		if totalQuestions > 0 && def.EndQuestion > totalQuestions {
			return fmt.Errorf("range Q%d-Q%d exceeds the exam's %d questions",
				def.StartQuestion, def.EndQuestion, totalQuestions)
		}
		if seenSubjects[def.SubjectID] {
			return fmt.Errorf("subject %d appears in more than one split", def.SubjectID)
		}
		seenSubjects[def.SubjectID] = true

		for _, other := range splits[:i] {
			if rangesOverlap(def.StartQuestion, def.EndQuestion, other.StartQuestion, other.EndQuestion) {
				return fmt.Errorf("range Q%d-Q%d overlaps existing split Q%d-Q%d",
					def.StartQuestion, def.EndQuestion, other.StartQuestion, other.EndQuestion)
			}
		}
	}
	return nil
}

func rangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart <= bEnd && bStart <= aEnd
}

// AddSplit appends one split to an existing import, validating it against the
// splits already present, then rescores the whole import.
func (s *ImportService) AddSplit(examID uint, def SplitDefinition) (*models.SubjectSplit, error) {
	exam, err := s.GetExam(examID)
	if err != nil {
		return nil, err
	}

	defs := make([]SplitDefinition, 0, len(exam.SubjectSplits)+1)
	for _, existing := range exam.SubjectSplits {
		defs = append(defs, SplitDefinition{
			SubjectID:         existing.SubjectID,
			StartQuestion:     existing.StartQuestion,
			EndQuestion:       existing.EndQuestion,
			PointsPerQuestion: existing.PointsPerQuestion,
		})
	}
	defs = append(defs, def)
	if err := validateSplits(defs, exam.TotalQuestions); err != nil {
		return nil, err
	}

	split := models.SubjectSplit{
		ExamID:            examID,
		SubjectID:         def.SubjectID,
		StartQuestion:     def.StartQuestion,
		EndQuestion:       def.EndQuestion,
		PointsPerQuestion: def.PointsPerQuestion,
	}
	if split.PointsPerQuestion == 0 {
		split.PointsPerQuestion = 1
	}
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := tx.Create(&split).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.recalculateTx(tx, examID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &split, nil
}

// UpdateSplit changes one split's range or point value, revalidating against
// its siblings, then rescores the import.
func (s *ImportService) UpdateSplit(splitID uint, def SplitDefinition) (*models.SubjectSplit, error) {
	var split models.SubjectSplit
	if err := s.db.First(&split, splitID).Error; err != nil {
		return nil, errors.New("split not found")
	}
	exam, err := s.GetExam(split.ExamID)
	if err != nil {
		return nil, err
	}

	var defs []SplitDefinition
	for _, existing := range exam.SubjectSplits {
		if existing.ID == splitID {
			continue
		}
		defs = append(defs, SplitDefinition{
			SubjectID:         existing.SubjectID,
			StartQuestion:     existing.StartQuestion,
			EndQuestion:       existing.EndQuestion,
			PointsPerQuestion: existing.PointsPerQuestion,
		})
	}
	defs = append(defs, def)
	if err := validateSplits(defs, exam.TotalQuestions); err != nil {
		return nil, err
	}

	split.SubjectID = def.SubjectID
	split.StartQuestion = def.StartQuestion
	split.EndQuestion = def.EndQuestion
	split.PointsPerQuestion = def.PointsPerQuestion
	if split.PointsPerQuestion == 0 {
		split.PointsPerQuestion = 1
	}
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := tx.Save(&split).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.recalculateTx(tx, split.ExamID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &split, nil
}

func (s *ImportService) DeleteSplit(splitID uint) error {
	var split models.SubjectSplit
	if err := s.db.First(&split, splitID).Error; err != nil {
		return errors.New("split not found")
	}
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Where("subject_split_id = ?", splitID).Delete(&models.SubjectResult{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&split).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := s.recalculateTx(tx, split.ExamID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// Recalculate regenerates every SubjectResult of an import from its current
// splits, inside one transaction. Existing rows are always removed first so
// repeated recalculation never accumulates duplicates.
func (s *ImportService) Recalculate(examID uint) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := s.recalculateTx(tx, examID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (s *ImportService) recalculateTx(tx *gorm.DB, examID uint) error {
	var exam models.ZipGradeExam
	if err := tx.Preload("SubjectSplits").Preload("Results").First(&exam, examID).Error; err != nil {
		return errors.New("import not found")
	}
	for i := range exam.Results {
		if err := s.regenerateSubjectResults(tx, &exam.Results[i], exam.SubjectSplits); err != nil {
			return err
		}
	}
	return nil
}

// ResolveUnknown links an unmatched result to a roster student, or records
// manual identity fields when no roster entry exists. Either form clears the
// unknown flag; the batch's unknown tally is recounted afterwards.
func (s *ImportService) ResolveUnknown(resultID uint, studentID *uint, firstName, lastName, className string) (*models.ExamResult, error) {
	var result models.ExamResult
	if err := s.db.First(&result, resultID).Error; err != nil {
		return nil, errors.New("result not found")
	}

	if studentID != nil {
		var student models.MasterStudent
		if err := s.db.First(&student, *studentID).Error; err != nil {
			return nil, errors.New("student not found")
		}
		result.StudentID = studentID
		result.ManualFirstName = ""
		result.ManualLastName = ""
		result.ManualClassName = ""
		result.IsUnknown = false
	} else if firstName != "" || lastName != "" {
		result.ManualFirstName = firstName
		result.ManualLastName = lastName
		result.ManualClassName = className
		result.IsUnknown = false
	} else {
		return nil, errors.New("provide a student to link or manual name fields")
	}

	if err := s.db.Save(&result).Error; err != nil {
		return nil, err
	}

	var unknown int64
	if err := s.db.Model(&models.ExamResult{}).
		Where("exam_id = ? AND is_unknown = ?", result.ExamID, true).
		Count(&unknown).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.ZipGradeExam{}).
		Where("id = ?", result.ExamID).
		Update("unknown_students", unknown).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *ImportService) ListExams(schoolID uint) ([]models.ZipGradeExam, error) {
	var exams []models.ZipGradeExam
	q := s.db.Order("exam_date DESC, id DESC")
	if schoolID != 0 {
		q = q.Where("school_id = ?", schoolID)
	}
	if err := q.Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

func (s *ImportService) GetExam(examID uint) (*models.ZipGradeExam, error) {
	var exam models.ZipGradeExam
	if err := s.db.
		Preload("SubjectSplits").
		Preload("SubjectSplits.Subject").
		Preload("Results").
		Preload("Results.Student").
		Preload("Results.SubjectResults").
		First(&exam, examID).Error; err != nil {
		return nil, errors.New("import not found")
	}
	return &exam, nil
}

// DeleteExam removes an import and everything hanging off it.
func (s *ImportService) DeleteExam(examID uint) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	var resultIDs []uint
	if err := tx.Model(&models.ExamResult{}).Where("exam_id = ?", examID).
		Pluck("id", &resultIDs).Error; err != nil {
		tx.Rollback()
		return err
	}
	if len(resultIDs) > 0 {
		if err := tx.Where("result_id IN ?", resultIDs).Delete(&models.SubjectResult{}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Where("exam_id = ?", examID).Delete(&models.ExamResult{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("exam_id = ?", examID).Delete(&models.SubjectSplit{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&models.ZipGradeExam{}, examID).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
