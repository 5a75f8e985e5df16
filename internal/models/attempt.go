package models

import "time"

const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusCompleted  = "completed"
	AttemptStatusLocked     = "locked"
	AttemptStatusTimedOut   = "timed_out"
)

// ExamAttempt is a student's single permitted session against one online
// exam. Exactly one row may ever exist per (exam, student); an admin unlock
// resets the row for a full retake instead of creating a new one.
type ExamAttempt struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ExamID    uint       `gorm:"not null;uniqueIndex:idx_attempt_exam_student" json:"exam_id"`
	Exam      OnlineExam `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"exam,omitempty"`
	StudentID uint       `gorm:"not null;uniqueIndex:idx_attempt_exam_student" json:"student_id"`
	Student   User       `gorm:"foreignKey:StudentID" json:"-"`

	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `gorm:"size:20;not null;default:'in_progress'" json:"status"`

	TabSwitchCount int    `gorm:"not null;default:0" json:"tab_switch_count"`
	IsLocked       bool   `gorm:"not null;default:false" json:"is_locked"`
	LockReason     string `gorm:"size:200" json:"lock_reason,omitempty"`

	Score      int     `gorm:"not null;default:0" json:"score"`
	Percentage float64 `gorm:"not null;default:0" json:"percentage"`

	Answers []AttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

// TimeRemaining returns the seconds left before the attempt expires.
// Terminal attempts always report zero.
func (a *ExamAttempt) TimeRemaining(durationMinutes int, now time.Time) int {
	if a.Status != AttemptStatusInProgress {
		return 0
	}
	elapsed := int(now.Sub(a.StartedAt).Seconds())
	remaining := durationMinutes*60 - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsPassed derives pass/fail from the exam's configured passing percentage;
// it is never stored independently.
func (a *ExamAttempt) IsPassed(passingScore int) bool {
	return a.Percentage >= float64(passingScore)
}

// AttemptAnswer holds one answer per (attempt, question): either a selected
// option or free text. IsCorrect is recomputed on every write from the
// question's grading rule.
type AttemptAnswer struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	AttemptID        uint            `gorm:"not null;uniqueIndex:idx_answer_attempt_question" json:"attempt_id"`
	QuestionID       uint            `gorm:"not null;uniqueIndex:idx_answer_attempt_question" json:"question_id"`
	Question         ExamQuestion    `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	SelectedOptionID *uint           `json:"selected_option_id,omitempty"`
	SelectedOption   *QuestionOption `gorm:"foreignKey:SelectedOptionID" json:"selected_option,omitempty"`
	TextAnswer       string          `gorm:"type:text" json:"text_answer,omitempty"`
	IsCorrect        bool            `gorm:"not null;default:false" json:"is_correct"`
	AnsweredAt       time.Time       `json:"answered_at"`
}
