package services

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"aim-edu-backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrExamNotAvailable  = errors.New("exam is not available right now")
	ErrAttemptLocked     = errors.New("attempt is locked; ask a teacher to unlock it")
	ErrAttemptCompleted  = errors.New("attempt is already completed")
	ErrAttemptNotActive  = errors.New("attempt is not in progress")
	ErrAttemptNotLocked  = errors.New("attempt is not locked")
	ErrQuestionNotInExam = errors.New("question does not belong to this exam")
)

// ProctorNotifier pushes proctoring activity to live observers. Implemented
// by the websocket hub; a nil notifier disables pushes.
type ProctorNotifier interface {
	BroadcastProctorEvent(examID uint, payload interface{})
}

// AttemptService drives the attempt state machine. Every mutation of one
// attempt runs under that attempt's mutex, so two near-simultaneous
// tab-switch events cannot both observe the pre-lock counter value and race
// past the lock threshold.
type AttemptService struct {
	db       *gorm.DB
	notifier ProctorNotifier

	mu    sync.Mutex
	locks map[uint]*attemptLock
}

type attemptLock struct {
	sync.Mutex
	refs int
}

func NewAttemptService(db *gorm.DB, notifier ProctorNotifier) *AttemptService {
	return &AttemptService{
		db:       db,
		notifier: notifier,
		locks:    make(map[uint]*attemptLock),
	}
}

// lockAttempt serializes mutations per attempt within this process. The
// deployment is single-instance, so an in-process mutex is the row lock.
// Entries are reference counted and dropped once the last holder releases,
// keeping the map bounded by in-flight calls rather than attempt history.
func (s *AttemptService) lockAttempt(attemptID uint) func() {
	s.mu.Lock()
	l, ok := s.locks[attemptID]
	if !ok {
		l = &attemptLock{}
		s.locks[attemptID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, attemptID)
		}
		s.mu.Unlock()
	}
}

// Start creates the single permitted attempt for (exam, student). An existing
// in-progress attempt is resumed as-is; a completed or locked one is reported
// through the matching sentinel error with the attempt attached, so callers
// can redirect to the result or explain the lock.
func (s *AttemptService) Start(examID, studentID uint) (*models.ExamAttempt, error) {
	var exam models.OnlineExam
	if err := s.db.First(&exam, examID).Error; err != nil {
		return nil, errors.New("exam not found")
	}

	var existing models.ExamAttempt
	err := s.db.Where("exam_id = ? AND student_id = ?", examID, studentID).First(&existing).Error
	if err == nil {
		switch existing.Status {
		case models.AttemptStatusInProgress:
			return s.Get(existing.ID)
		case models.AttemptStatusLocked:
			return &existing, ErrAttemptLocked
		default:
			return &existing, ErrAttemptCompleted
		}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if !exam.IsAvailable(time.Now()) {
		return nil, ErrExamNotAvailable
	}

	attempt := models.ExamAttempt{
		ExamID:    examID,
		StudentID: studentID,
		StartedAt: time.Now(),
		Status:    models.AttemptStatusInProgress,
	}
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := tx.Create(&attempt).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := appendEvent(tx, attempt.ID, models.EventExamStarted, nil); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// Get reads an attempt and applies the lazy timeout check: an in-progress
// attempt whose time has run out is finalized as timed_out before the read
// returns. There is no background sweep.
func (s *AttemptService) Get(attemptID uint) (*models.ExamAttempt, error) {
	unlock := s.lockAttempt(attemptID)
	defer unlock()
	return s.getLocked(attemptID)
}

func (s *AttemptService) getLocked(attemptID uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := s.db.Preload("Exam").First(&attempt, attemptID).Error; err != nil {
		return nil, errors.New("attempt not found")
	}

	if attempt.Status == models.AttemptStatusInProgress &&
		attempt.TimeRemaining(attempt.Exam.DurationMinutes, time.Now()) == 0 {
		tx := s.db.Begin()
		if tx.Error != nil {
			return nil, tx.Error
		}
		if err := s.finalizeTx(tx, &attempt, models.AttemptStatusTimedOut); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
	}
	return &attempt, nil
}

// TakeQuestion is one question materialized for display. Shuffling is
// presentation order only; grading keys by the stable IDs.
type TakeQuestion struct {
	ID           uint                    `json:"id"`
	QuestionText string                  `json:"question_text"`
	QuestionType string                  `json:"question_type"`
	Points       int                     `json:"points"`
	Options      []models.QuestionOption `json:"options,omitempty"`
}

type TakePayload struct {
	Attempt       *models.ExamAttempt    `json:"attempt"`
	Questions     []TakeQuestion         `json:"questions"`
	Answers       []models.AttemptAnswer `json:"answers"`
	TimeRemaining int                    `json:"time_remaining"`
}

// Take materializes the question set for the exam-taking page, applying the
// exam's shuffle settings. The order is derived from the attempt ID, so a
// page reload shows the same order.
func (s *AttemptService) Take(attemptID uint) (*TakePayload, error) {
	attempt, err := s.Get(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptStatusInProgress {
		return nil, ErrAttemptNotActive
	}

	var questions []models.ExamQuestion
	if err := s.db.Where("exam_id = ?", attempt.ExamID).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("order_num") }).
		Order("order_num").Find(&questions).Error; err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(int64(attempt.ID)))
	if attempt.Exam.ShuffleQuestions {
		rng.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	out := make([]TakeQuestion, 0, len(questions))
	for _, q := range questions {
		options := make([]models.QuestionOption, len(q.Options))
		copy(options, q.Options)
		if attempt.Exam.ShuffleOptions {
			rng.Shuffle(len(options), func(i, j int) {
				options[i], options[j] = options[j], options[i]
			})
		}
		// Correctness flags stay server-side.
		for i := range options {
			options[i].IsCorrect = false
		}
		out = append(out, TakeQuestion{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Points:       q.Points,
			Options:      options,
		})
	}

	var answers []models.AttemptAnswer
	if err := s.db.Where("attempt_id = ?", attempt.ID).Find(&answers).Error; err != nil {
		return nil, err
	}

	return &TakePayload{
		Attempt:       attempt,
		Questions:     out,
		Answers:       answers,
		TimeRemaining: attempt.TimeRemaining(attempt.Exam.DurationMinutes, time.Now()),
	}, nil
}

// SaveAnswer upserts the single answer row for (attempt, question) and grades
// it immediately. Rejected outright on any non-active attempt.
func (s *AttemptService) SaveAnswer(attemptID, questionID uint, selectedOptionID *uint, textAnswer string) (*models.AttemptAnswer, error) {
	unlock := s.lockAttempt(attemptID)
	defer unlock()

	attempt, err := s.getLocked(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptStatusInProgress || attempt.IsLocked {
		return nil, ErrAttemptNotActive
	}

	var question models.ExamQuestion
	if err := s.db.First(&question, questionID).Error; err != nil {
		return nil, errors.New("question not found")
	}
	if question.ExamID != attempt.ExamID {
		return nil, ErrQuestionNotInExam
	}

	var selected *models.QuestionOption
	if selectedOptionID != nil {
		var option models.QuestionOption
		if err := s.db.First(&option, *selectedOptionID).Error; err != nil {
			return nil, errors.New("option not found")
		}
		if option.QuestionID != question.ID {
			return nil, errors.New("option does not belong to this question")
		}
		selected = &option
	}

	var answer models.AttemptAnswer
	err = s.db.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).First(&answer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		answer = models.AttemptAnswer{AttemptID: attemptID, QuestionID: questionID}
	} else if err != nil {
		return nil, err
	}

	answer.SelectedOptionID = selectedOptionID
	answer.TextAnswer = textAnswer
	answer.IsCorrect = GradeAnswer(&question, selected, textAnswer)
	answer.AnsweredAt = time.Now()

	if err := s.db.Save(&answer).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

// LogEvent appends a proctoring event unconditionally; the audit trail
// records activity even on finished attempts. Counter and lock side effects
// apply only while the attempt is in progress. When the tab-switch counter
// reaches the exam's limit, the lock, the finish timestamp, the final score
// and the exam_locked event are written in one transaction.
func (s *AttemptService) LogEvent(attemptID uint, eventType string, details map[string]interface{}) (*models.ExamAttempt, error) {
	unlock := s.lockAttempt(attemptID)
	defer unlock()

	attempt, err := s.getLocked(attemptID)
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if err := appendEvent(tx, attempt.ID, eventType, details); err != nil {
		tx.Rollback()
		return nil, err
	}

	locked := false
	if attempt.Status == models.AttemptStatusInProgress && models.CountedEvent(eventType) {
		attempt.TabSwitchCount++
		if attempt.TabSwitchCount >= attempt.Exam.MaxTabSwitches {
			attempt.IsLocked = true
			attempt.LockReason = "tab switch limit exceeded"
			if err := s.finalizeTx(tx, attempt, models.AttemptStatusLocked); err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := appendEvent(tx, attempt.ID, models.EventExamLocked, map[string]interface{}{
				"tab_switch_count": attempt.TabSwitchCount,
			}); err != nil {
				tx.Rollback()
				return nil, err
			}
			locked = true
		} else if err := tx.Save(attempt).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.BroadcastProctorEvent(attempt.ExamID, map[string]interface{}{
			"attempt_id":       attempt.ID,
			"student_id":       attempt.StudentID,
			"event_type":       eventType,
			"tab_switch_count": attempt.TabSwitchCount,
			"locked":           locked,
		})
	}
	return attempt, nil
}

// Submit finishes an in-progress attempt normally.
func (s *AttemptService) Submit(attemptID uint) (*models.ExamAttempt, error) {
	unlock := s.lockAttempt(attemptID)
	defer unlock()

	attempt, err := s.getLocked(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.IsLocked {
		return nil, ErrAttemptLocked
	}
	if attempt.Status != models.AttemptStatusInProgress {
		return nil, ErrAttemptCompleted
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := s.finalizeTx(tx, attempt, models.AttemptStatusCompleted); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := appendEvent(tx, attempt.ID, models.EventExamSubmitted, nil); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

// Unlock is the administrative escape hatch for locked attempts: a full
// retake. All stored answers are purged, counters and timestamps reset, and
// an admin_unlock event appended. Prior events are never deleted.
func (s *AttemptService) Unlock(attemptID, adminID uint) (*models.ExamAttempt, error) {
	unlock := s.lockAttempt(attemptID)
	defer unlock()

	var attempt models.ExamAttempt
	if err := s.db.First(&attempt, attemptID).Error; err != nil {
		return nil, errors.New("attempt not found")
	}
	if attempt.Status != models.AttemptStatusLocked {
		return nil, ErrAttemptNotLocked
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := tx.Where("attempt_id = ?", attempt.ID).Delete(&models.AttemptAnswer{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	attempt.Status = models.AttemptStatusInProgress
	attempt.IsLocked = false
	attempt.LockReason = ""
	attempt.TabSwitchCount = 0
	attempt.StartedAt = time.Now()
	attempt.FinishedAt = nil
	attempt.Score = 0
	attempt.Percentage = 0
	if err := tx.Save(&attempt).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := appendEvent(tx, attempt.ID, models.EventAdminUnlock, map[string]interface{}{
		"admin_id": adminID,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// finalizeTx moves an attempt to a terminal state and computes its final
// score inside the caller's transaction.
func (s *AttemptService) finalizeTx(tx *gorm.DB, attempt *models.ExamAttempt, status string) error {
	score, percentage, err := s.calculateScore(tx, attempt)
	if err != nil {
		return err
	}
	now := time.Now()
	attempt.Status = status
	attempt.FinishedAt = &now
	attempt.Score = score
	attempt.Percentage = percentage
	return tx.Save(attempt).Error
}

// calculateScore sums the points of correctly answered questions, regrading
// each stored answer so the final score can never disagree with the saved
// correctness flags' rule.
func (s *AttemptService) calculateScore(tx *gorm.DB, attempt *models.ExamAttempt) (int, float64, error) {
	var questions []models.ExamQuestion
	if err := tx.Where("exam_id = ?", attempt.ExamID).Find(&questions).Error; err != nil {
		return 0, 0, err
	}

	var answers []models.AttemptAnswer
	if err := tx.Where("attempt_id = ?", attempt.ID).
		Preload("SelectedOption").Find(&answers).Error; err != nil {
		return 0, 0, err
	}
	byQuestion := make(map[uint]*models.AttemptAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	score := 0
	totalPoints := 0
	for i := range questions {
		q := &questions[i]
		totalPoints += q.Points
		answer, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		correct := GradeAnswer(q, answer.SelectedOption, answer.TextAnswer)
		if correct != answer.IsCorrect {
			answer.IsCorrect = correct
			if err := tx.Save(answer).Error; err != nil {
				return 0, 0, err
			}
		}
		if correct {
			score += q.Points
		}
	}

	percentage := 0.0
	if totalPoints > 0 {
		percentage = round2(float64(score) / float64(totalPoints) * 100)
	}
	return score, percentage, nil
}

func appendEvent(tx *gorm.DB, attemptID uint, eventType string, details map[string]interface{}) error {
	event := models.ProctorEvent{
		AttemptID: attemptID,
		EventType: eventType,
		Timestamp: time.Now(),
		Details:   details,
	}
	return tx.Create(&event).Error
}

// ListByExam returns all attempts for one exam, newest first, for the
// teacher's monitoring view.
func (s *AttemptService) ListByExam(examID uint) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	if err := s.db.Where("exam_id = ?", examID).
		Preload("Student").
		Order("started_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// Events returns an attempt's full proctoring history in order.
func (s *AttemptService) Events(attemptID uint) ([]models.ProctorEvent, error) {
	var events []models.ProctorEvent
	if err := s.db.Where("attempt_id = ?", attemptID).
		Order("timestamp, id").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
