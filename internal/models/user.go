package models

import "time"

const (
	RoleSuperAdmin = "super_admin"
	RoleTeacher    = "teacher"
	RoleStudent    = "student"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FirstName    string    `gorm:"size:100" json:"first_name"`
	LastName     string    `gorm:"size:100" json:"last_name"`
	Role         string    `gorm:"size:20;not null;default:'teacher'" json:"role"`
	SchoolID     *uint     `gorm:"index" json:"school_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsTeacherOrAdmin() bool {
	return u.Role == RoleTeacher || u.Role == RoleSuperAdmin
}
