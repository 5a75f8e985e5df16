package models

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// MasterStudent is one roster entry within a school. StudentID keeps whatever
// formatting the school uses; StudentIDNormalized is the canonical matching
// key and is recomputed from the raw ID on every save, never set directly.
type MasterStudent struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	SchoolID            uint      `gorm:"not null;uniqueIndex:idx_school_student_id" json:"school_id"`
	School              School    `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"-"`
	StudentID           string    `gorm:"size:20;not null;uniqueIndex:idx_school_student_id" json:"student_id"`
	StudentIDNormalized string    `gorm:"size:20;index" json:"student_id_normalized"`
	Name                string    `gorm:"size:100" json:"name"`
	Surname             string    `gorm:"size:100" json:"surname"`
	Grade               string    `gorm:"size:20" json:"grade"`
	Section             string    `gorm:"size:20" json:"section"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NormalizeStudentID strips leading zeros from numeric identifiers so that
// IDs match across roster uploads and answer-sheet exports,
// e.g. "01251001" -> "1251001". Non-numeric identifiers are returned trimmed
// but otherwise unchanged.
func NormalizeStudentID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return trimmed
}

func (m *MasterStudent) BeforeSave(tx *gorm.DB) error {
	m.StudentIDNormalized = NormalizeStudentID(m.StudentID)
	return nil
}

func (m *MasterStudent) FullName() string {
	return strings.TrimSpace(m.Surname + " " + m.Name)
}
