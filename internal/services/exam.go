package services

import (
	"errors"

	"aim-edu-backend/internal/models"

	"gorm.io/gorm"
)

type ExamService struct {
	db *gorm.DB
}

func NewExamService(db *gorm.DB) *ExamService {
	return &ExamService{db: db}
}

func (s *ExamService) ListBySchool(schoolID uint) ([]models.OnlineExam, error) {
	var exams []models.OnlineExam
	q := s.db.Preload("Subject").Order("created_at DESC")
	if schoolID != 0 {
		q = q.Where("school_id = ?", schoolID)
	}
	if err := q.Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

// ListAvailable returns the exams a student can currently take or has taken:
// active exams of their school within the availability window.
func (s *ExamService) ListAvailable(schoolID uint) ([]models.OnlineExam, error) {
	var exams []models.OnlineExam
	if err := s.db.Preload("Subject").
		Where("school_id = ? AND is_active = ?", schoolID, true).
		Order("start_time").
		Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

func (s *ExamService) Get(examID uint) (*models.OnlineExam, error) {
	var exam models.OnlineExam
	if err := s.db.Preload("Subject").
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("order_num") }).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB { return db.Order("order_num") }).
		First(&exam, examID).Error; err != nil {
		return nil, errors.New("exam not found")
	}
	return &exam, nil
}

func (s *ExamService) Create(exam *models.OnlineExam) error {
	if exam.DurationMinutes <= 0 {
		exam.DurationMinutes = 60
	}
	if exam.MaxTabSwitches <= 0 {
		exam.MaxTabSwitches = 3
	}
	if !exam.EndTime.After(exam.StartTime) {
		return errors.New("end time must be after start time")
	}
	return s.db.Create(exam).Error
}

func (s *ExamService) Update(exam *models.OnlineExam) error {
	if !exam.EndTime.After(exam.StartTime) {
		return errors.New("end time must be after start time")
	}
	return s.db.Save(exam).Error
}

// Delete removes an exam together with its questions, options, attempts and
// their answers and events.
func (s *ExamService) Delete(examID uint) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	var attemptIDs []uint
	if err := tx.Model(&models.ExamAttempt{}).Where("exam_id = ?", examID).
		Pluck("id", &attemptIDs).Error; err != nil {
		tx.Rollback()
		return err
	}
	if len(attemptIDs) > 0 {
		if err := tx.Where("attempt_id IN ?", attemptIDs).Delete(&models.ProctorEvent{}).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Where("attempt_id IN ?", attemptIDs).Delete(&models.AttemptAnswer{}).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Where("exam_id = ?", examID).Delete(&models.ExamAttempt{}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	var questionIDs []uint
	if err := tx.Model(&models.ExamQuestion{}).Where("exam_id = ?", examID).
		Pluck("id", &questionIDs).Error; err != nil {
		tx.Rollback()
		return err
	}
	if len(questionIDs) > 0 {
		if err := tx.Where("question_id IN ?", questionIDs).Delete(&models.QuestionOption{}).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Where("exam_id = ?", examID).Delete(&models.ExamQuestion{}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Delete(&models.OnlineExam{}, examID).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// AddQuestion appends a question with its options. Multiple-choice questions
// need at least one option flagged correct; fill-in-the-blank questions need
// a non-empty variant list.
func (s *ExamService) AddQuestion(examID uint, question *models.ExamQuestion, options []models.QuestionOption) error {
	if question.QuestionType == "" {
		question.QuestionType = models.QuestionTypeMultipleChoice
	}
	if question.Points <= 0 {
		question.Points = 1
	}

	switch question.QuestionType {
	case models.QuestionTypeFillBlanks:
		if question.CorrectAnswers == "" {
			return errors.New("fill-in-the-blank question needs accepted answers")
		}
	case models.QuestionTypeMultipleChoice:
		hasCorrect := false
		for _, o := range options {
			if o.IsCorrect {
				hasCorrect = true
				break
			}
		}
		if !hasCorrect {
			return errors.New("at least one option must be marked correct")
		}
	default:
		return errors.New("unknown question type")
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	question.ExamID = examID
	if question.OrderNum == 0 {
		var maxOrder int
		tx.Model(&models.ExamQuestion{}).Where("exam_id = ?", examID).
			Select("COALESCE(MAX(order_num), 0)").Scan(&maxOrder)
		question.OrderNum = maxOrder + 1
	}
	if err := tx.Create(question).Error; err != nil {
		tx.Rollback()
		return err
	}
	for i := range options {
		options[i].QuestionID = question.ID
		if options[i].OrderNum == 0 {
			options[i].OrderNum = i + 1
		}
		if err := tx.Create(&options[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

func (s *ExamService) DeleteQuestion(questionID uint) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Where("question_id = ?", questionID).Delete(&models.QuestionOption{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("question_id = ?", questionID).Delete(&models.AttemptAnswer{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&models.ExamQuestion{}, questionID).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
