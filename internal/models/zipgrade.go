package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ZipGradeExam is one answer-sheet upload. Metadata is fixed at import time;
// only UnknownStudents changes afterwards, when unmatched rows get resolved.
type ZipGradeExam struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SchoolID         uint           `gorm:"not null;index" json:"school_id"`
	School           School         `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
	UploadedByID     *uint          `gorm:"index" json:"uploaded_by_id,omitempty"`
	Title            string         `gorm:"size:200;not null" json:"title"`
	OriginalFilename string         `gorm:"size:255" json:"original_filename"`
	ExamDate         time.Time      `gorm:"not null" json:"exam_date"`
	TotalQuestions   int            `gorm:"not null;default:0" json:"total_questions"`
	TotalStudents    int            `gorm:"not null;default:0" json:"total_students"`
	UnknownStudents  int            `gorm:"not null;default:0" json:"unknown_students"`
	SubjectSplits    []SubjectSplit `gorm:"foreignKey:ExamID" json:"subject_splits,omitempty"`
	Results          []ExamResult   `gorm:"foreignKey:ExamID" json:"results,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SubjectSplit assigns a contiguous 1-indexed question range of an exam to a
// subject. Ranges within one exam must not overlap; one split per subject.
type SubjectSplit struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	ExamID            uint    `gorm:"not null;uniqueIndex:idx_split_exam_subject" json:"exam_id"`
	SubjectID         uint    `gorm:"not null;uniqueIndex:idx_split_exam_subject" json:"subject_id"`
	Subject           Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	StartQuestion     int     `gorm:"not null" json:"start_question"`
	EndQuestion       int     `gorm:"not null" json:"end_question"`
	PointsPerQuestion float64 `gorm:"not null;default:1" json:"points_per_question"`
}

func (s *SubjectSplit) QuestionCount() int {
	return s.EndQuestion - s.StartQuestion + 1
}

func (s *SubjectSplit) MaxPoints() float64 {
	return float64(s.QuestionCount()) * s.PointsPerQuestion
}

func (s *SubjectSplit) RangeLabel() string {
	return fmt.Sprintf("Q%d-Q%d", s.StartQuestion, s.EndQuestion)
}

// ExamResult is one parsed answer-sheet row. Unique per
// (exam, zipgrade_student_id); Student stays nil for unknown students until
// an admin links one or fills the manual name fields.
type ExamResult struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	ExamID            uint           `gorm:"not null;uniqueIndex:idx_result_exam_zip_id" json:"exam_id"`
	StudentID         *uint          `gorm:"index" json:"student_id,omitempty"`
	Student           *MasterStudent `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	ZipGradeStudentID string         `gorm:"size:50;not null;uniqueIndex:idx_result_exam_zip_id" json:"zipgrade_student_id"`
	ZipGradeFirstName string         `gorm:"size:100" json:"zipgrade_first_name"`
	ZipGradeLastName  string         `gorm:"size:100" json:"zipgrade_last_name"`
	EarnedPoints      float64        `gorm:"not null;default:0" json:"earned_points"`
	MaxPoints         float64        `gorm:"not null;default:0" json:"max_points"`
	Percentage        float64        `gorm:"not null;default:0" json:"percentage"`
	Answers           datatypes.JSON `json:"answers"`
	IsUnknown         bool           `gorm:"not null;default:false" json:"is_unknown"`
	ManualFirstName   string         `gorm:"size:100" json:"manual_first_name"`
	ManualLastName    string         `gorm:"size:100" json:"manual_last_name"`
	ManualClassName   string         `gorm:"size:50" json:"manual_class_name"`
	SubjectResults    []SubjectResult `gorm:"foreignKey:ResultID" json:"subject_results,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// DisplayName resolves in priority order: linked student, manual name,
// name from the uploaded file, then the raw identifier.
func (r *ExamResult) DisplayName() string {
	if r.Student != nil {
		return r.Student.FullName()
	}
	if r.ManualFirstName != "" || r.ManualLastName != "" {
		return strings.TrimSpace(r.ManualLastName + " " + r.ManualFirstName)
	}
	if r.ZipGradeFirstName != "" || r.ZipGradeLastName != "" {
		return strings.TrimSpace(r.ZipGradeLastName + " " + r.ZipGradeFirstName)
	}
	return fmt.Sprintf("Unknown (%s)", r.ZipGradeStudentID)
}

// SubjectResult is the per-subject score of one result row. Regenerated
// wholesale whenever splits change; never patched in place.
type SubjectResult struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ResultID        uint           `gorm:"not null;uniqueIndex:idx_subject_result_split" json:"result_id"`
	SubjectSplitID  uint           `gorm:"not null;uniqueIndex:idx_subject_result_split" json:"subject_split_id"`
	SubjectSplit    SubjectSplit   `gorm:"foreignKey:SubjectSplitID" json:"subject_split,omitempty"`
	EarnedPoints    float64        `gorm:"not null;default:0" json:"earned_points"`
	MaxPoints       float64        `gorm:"not null;default:0" json:"max_points"`
	Percentage      float64        `gorm:"not null;default:0" json:"percentage"`
	QuestionResults datatypes.JSON `json:"question_results,omitempty"`
}
