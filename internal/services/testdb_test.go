package services

import (
	"testing"

	"aim-edu-backend/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.School{},
		&models.Subject{},
		&models.User{},
		&models.MasterStudent{},
		&models.ZipGradeExam{},
		&models.SubjectSplit{},
		&models.ExamResult{},
		&models.SubjectResult{},
		&models.OnlineExam{},
		&models.ExamQuestion{},
		&models.QuestionOption{},
		&models.ExamAttempt{},
		&models.AttemptAnswer{},
		&models.ProctorEvent{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
