package models

import "time"

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeFillBlanks     = "fill_blanks"
)

type OnlineExam struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Title       string  `gorm:"size:200;not null" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	SubjectID   uint    `gorm:"not null;index" json:"subject_id"`
	Subject     Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	SchoolID    uint    `gorm:"not null;index" json:"school_id"`
	CreatedByID uint    `gorm:"not null" json:"created_by_id"`

	DurationMinutes int `gorm:"not null;default:60" json:"duration_minutes"`
	PassingScore    int `gorm:"not null;default:60" json:"passing_score"`

	StartTime time.Time `gorm:"not null" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`

	ShuffleQuestions       bool `gorm:"not null;default:false" json:"shuffle_questions"`
	ShuffleOptions         bool `gorm:"not null;default:false" json:"shuffle_options"`
	ShowResultsImmediately bool `gorm:"not null;default:false" json:"show_results_immediately"`

	// Tab switches / window blurs tolerated before the attempt locks.
	MaxTabSwitches int `gorm:"not null;default:3" json:"max_tab_switches"`

	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	Questions []ExamQuestion `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsAvailable reports whether the exam can be taken at the given instant.
func (e *OnlineExam) IsAvailable(now time.Time) bool {
	return e.IsActive && !now.Before(e.StartTime) && !now.After(e.EndTime)
}

type ExamQuestion struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ExamID       uint   `gorm:"not null;index" json:"exam_id"`
	QuestionText string `gorm:"type:text;not null" json:"question_text"`
	QuestionType string `gorm:"size:20;not null;default:'multiple_choice'" json:"question_type"`
	Points       int    `gorm:"not null;default:1" json:"points"`
	OrderNum     int    `gorm:"not null;default:0" json:"order_num"`

	// Accepted fill-in-the-blank variants, pipe-separated:
	// "answer1|Answer2|ANSWER3". Compared case-insensitively after trimming.
	CorrectAnswers string `gorm:"type:text" json:"correct_answers,omitempty"`

	Options   []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type QuestionOption struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Text       string `gorm:"size:500;not null" json:"text"`
	IsCorrect  bool   `gorm:"not null;default:false" json:"is_correct"`
	OrderNum   int    `gorm:"not null;default:0" json:"order_num"`
}
