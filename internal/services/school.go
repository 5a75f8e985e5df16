package services

import (
	"errors"

	"aim-edu-backend/internal/models"

	"gorm.io/gorm"
)

type SchoolService struct {
	db *gorm.DB
}

func NewSchoolService(db *gorm.DB) *SchoolService {
	return &SchoolService{db: db}
}

func (s *SchoolService) ListSchools() ([]models.School, error) {
	var schools []models.School
	if err := s.db.Order("name").Find(&schools).Error; err != nil {
		return nil, err
	}
	return schools, nil
}

func (s *SchoolService) GetSchool(id uint) (*models.School, error) {
	var school models.School
	if err := s.db.First(&school, id).Error; err != nil {
		return nil, errors.New("school not found")
	}
	return &school, nil
}

func (s *SchoolService) CreateSchool(school *models.School) error {
	return s.db.Create(school).Error
}

func (s *SchoolService) UpdateSchool(school *models.School) error {
	return s.db.Save(school).Error
}

func (s *SchoolService) ListSubjects() ([]models.Subject, error) {
	var subjects []models.Subject
	if err := s.db.Where("is_active = ?", true).Order("name").Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

func (s *SchoolService) CreateSubject(subject *models.Subject) error {
	return s.db.Create(subject).Error
}
