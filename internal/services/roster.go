package services

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"aim-edu-backend/internal/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Roster workbook column synonyms, matched case-insensitively. All five
// columns are required; an upload missing any of them is rejected whole.
var rosterColumns = []struct {
	field    string
	synonyms []string
}{
	{"student_id", []string{"id", "student_id", "studentid", "id студента", "ид", "student id"}},
	{"name", []string{"name", "first_name", "firstname", "имя", "first name"}},
	{"surname", []string{"surname", "last_name", "lastname", "фамилия", "last name"}},
	{"grade", []string{"class", "grade", "класс", "class/grade"}},
	{"section", []string{"section", "группа", "секция", "group"}},
}

type RosterImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

type RosterService struct {
	db *gorm.DB
}

func NewRosterService(db *gorm.DB) *RosterService {
	return &RosterService{db: db}
}

// FindByNormalizedID resolves a raw identifier from an answer sheet to a
// roster entry of the school, tolerating leading-zero differences. Returns
// nil without error when no entry matches.
func (s *RosterService) FindByNormalizedID(schoolID uint, rawID string) (*models.MasterStudent, error) {
	var student models.MasterStudent
	err := s.db.Where("school_id = ? AND student_id_normalized = ?",
		schoolID, models.NormalizeStudentID(rawID)).First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// ImportWorkbook bulk-loads a roster XLSX into a school. Rows are upserted
// by raw student ID; replaceExisting wipes the school's roster first. The
// whole import runs in one transaction so a mid-file failure changes nothing.
func (s *RosterService) ImportWorkbook(schoolID uint, content []byte, replaceExisting bool) (*RosterImportResult, error) {
	students, err := parseRosterWorkbook(content)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, errors.New("no valid student data found in the file")
	}

	result := &RosterImportResult{}
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if replaceExisting {
		if err := tx.Where("school_id = ?", schoolID).Delete(&models.MasterStudent{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	for _, data := range students {
		var existing models.MasterStudent
		err := tx.Where("school_id = ? AND student_id = ?", schoolID, data.StudentID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			data.SchoolID = schoolID
			if err := tx.Create(&data).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
			result.Created++
		case err != nil:
			tx.Rollback()
			return nil, err
		default:
			existing.Name = data.Name
			existing.Surname = data.Surname
			existing.Grade = data.Grade
			existing.Section = data.Section
			if err := tx.Save(&existing).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
			result.Updated++
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func parseRosterWorkbook(content []byte) ([]models.MasterStudent, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("error reading Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("error reading Excel file: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file: no header row found")
	}

	headers := rows[0]
	mapping := make(map[string]int)
	for _, col := range rosterColumns {
		for i, h := range headers {
			hLower := strings.ToLower(strings.TrimSpace(h))
			for _, syn := range col.synonyms {
				if hLower == syn {
					mapping[col.field] = i
					break
				}
			}
			if _, ok := mapping[col.field]; ok {
				break
			}
		}
	}

	var missing []string
	for _, col := range rosterColumns {
		if _, ok := mapping[col.field]; !ok {
			missing = append(missing, col.field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s (found headers: %s)",
			strings.Join(missing, ", "), strings.Join(headers, ", "))
	}

	cell := func(row []string, field string) string {
		i := mapping[field]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var students []models.MasterStudent
	for _, row := range rows[1:] {
		if rowCellsEmpty(row) {
			continue
		}
		studentID := cell(row, "student_id")
		if studentID == "" {
			continue
		}
		students = append(students, models.MasterStudent{
			StudentID: studentID,
			Name:      cell(row, "name"),
			Surname:   cell(row, "surname"),
			Grade:     cell(row, "grade"),
			Section:   cell(row, "section"),
		})
	}
	return students, nil
}

func rowCellsEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ListStudents returns a school's roster ordered for display, optionally
// filtered by grade and a name/ID search term.
func (s *RosterService) ListStudents(schoolID uint, grade, search string) ([]models.MasterStudent, error) {
	q := s.db.Where("school_id = ?", schoolID)
	if grade != "" {
		q = q.Where("grade = ?", grade)
	}
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("student_id LIKE ? OR name LIKE ? OR surname LIKE ?", like, like, like)
	}
	var students []models.MasterStudent
	if err := q.Order("grade, section, surname, name").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (s *RosterService) GetStudent(id uint) (*models.MasterStudent, error) {
	var student models.MasterStudent
	if err := s.db.First(&student, id).Error; err != nil {
		return nil, errors.New("student not found")
	}
	return &student, nil
}

func (s *RosterService) CreateStudent(student *models.MasterStudent) error {
	return s.db.Create(student).Error
}

func (s *RosterService) UpdateStudent(student *models.MasterStudent) error {
	return s.db.Save(student).Error
}

func (s *RosterService) DeleteStudent(id uint) error {
	return s.db.Delete(&models.MasterStudent{}, id).Error
}
