package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventTabSwitch     = "tab_switch"
	EventWindowBlur    = "window_blur"
	EventCopyAttempt   = "copy_attempt"
	EventPasteAttempt  = "paste_attempt"
	EventRightClick    = "right_click"
	EventExamLocked    = "exam_locked"
	EventAdminUnlock   = "admin_unlock"
	EventExamStarted   = "exam_started"
	EventExamSubmitted = "exam_submitted"
)

// ProctorEvent is an append-only audit record. Events are never mutated or
// deleted; an unlock appends a new event instead of erasing history.
type ProctorEvent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	AttemptID uint              `gorm:"not null;index" json:"attempt_id"`
	Attempt   ExamAttempt       `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"-"`
	EventType string            `gorm:"size:30;not null" json:"event_type"`
	Timestamp time.Time         `gorm:"not null;index" json:"timestamp"`
	Details   datatypes.JSONMap `json:"details,omitempty"`
}

// CountedEvent reports whether the event type increments the tab-switch
// counter while an attempt is in progress.
func CountedEvent(eventType string) bool {
	return eventType == EventTabSwitch || eventType == EventWindowBlur
}
