package services

import (
	"bytes"
	"testing"

	"aim-edu-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

func buildRosterXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, val := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				t.Fatal(err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImportWorkbookUpserts(t *testing.T) {
	db := newTestDB(t)
	roster := NewRosterService(db)
	school := models.School{Name: "Lyceum 1", IsActive: true}
	if err := db.Create(&school).Error; err != nil {
		t.Fatal(err)
	}

	content := buildRosterXLSX(t, [][]string{
		{"ID", "Name", "Surname", "Class", "Section"},
		{"01251001", "Aidana", "Bekova", "9", "A"},
		{"1251002", "Daniyar", "Akhmetov", "9", "B"},
	})

	result, err := roster.ImportWorkbook(school.ID, content, false)
	if err != nil {
		t.Fatalf("ImportWorkbook() error: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 {
		t.Errorf("created/updated = %d/%d, want 2/0", result.Created, result.Updated)
	}

	// Re-import with a changed name updates in place.
	content = buildRosterXLSX(t, [][]string{
		{"ID", "Name", "Surname", "Class", "Section"},
		{"01251001", "Aidana", "Bekova-Smith", "10", "A"},
	})
	result, err = roster.ImportWorkbook(school.ID, content, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("created/updated = %d/%d, want 0/1", result.Created, result.Updated)
	}

	var total int64
	db.Model(&models.MasterStudent{}).Count(&total)
	if total != 2 {
		t.Errorf("roster size = %d, want 2", total)
	}
}

func TestImportWorkbookReplaceExisting(t *testing.T) {
	db := newTestDB(t)
	roster := NewRosterService(db)
	school := models.School{Name: "Lyceum 1", IsActive: true}
	if err := db.Create(&school).Error; err != nil {
		t.Fatal(err)
	}
	if err := roster.CreateStudent(&models.MasterStudent{SchoolID: school.ID, StudentID: "999"}); err != nil {
		t.Fatal(err)
	}

	content := buildRosterXLSX(t, [][]string{
		{"student_id", "имя", "фамилия", "класс", "группа"},
		{"100", "Timur", "Ospanov", "11", "A"},
	})
	if _, err := roster.ImportWorkbook(school.ID, content, true); err != nil {
		t.Fatalf("ImportWorkbook() error: %v", err)
	}

	var total int64
	db.Model(&models.MasterStudent{}).Where("school_id = ?", school.ID).Count(&total)
	if total != 1 {
		t.Errorf("roster size = %d after replace, want 1", total)
	}
}

func TestImportWorkbookMissingColumns(t *testing.T) {
	db := newTestDB(t)
	roster := NewRosterService(db)

	content := buildRosterXLSX(t, [][]string{
		{"ID", "Name"},
		{"1", "Solo"},
	})
	if _, err := roster.ImportWorkbook(1, content, false); err == nil {
		t.Fatal("import with missing required columns succeeded")
	}
}

func TestFindByNormalizedID(t *testing.T) {
	db := newTestDB(t)
	roster := NewRosterService(db)
	school := models.School{Name: "Lyceum 1", IsActive: true}
	if err := db.Create(&school).Error; err != nil {
		t.Fatal(err)
	}
	if err := roster.CreateStudent(&models.MasterStudent{
		SchoolID: school.ID, StudentID: "1251001", Name: "Aidana", Surname: "Bekova",
	}); err != nil {
		t.Fatal(err)
	}

	// Leading zeros in the lookup still match.
	student, err := roster.FindByNormalizedID(school.ID, "01251001")
	if err != nil {
		t.Fatalf("FindByNormalizedID() error: %v", err)
	}
	if student == nil {
		t.Fatal("no match for leading-zero variant")
	}

	missing, err := roster.FindByNormalizedID(school.ID, "777")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("unexpected match")
	}
}
