package handlers

import (
	"io"
	"net/http"

	"aim-edu-backend/internal/models"
	"aim-edu-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RosterHandler struct {
	roster *services.RosterService
}

func NewRosterHandler(roster *services.RosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// ListStudents godoc
// @Summary      List a school's roster
// @Tags         roster
// @Produce      json
// @Security     BearerAuth
// @Param        school_id query int true "School ID"
// @Param        grade query string false "Filter by grade"
// @Param        search query string false "Search by ID or name"
// @Success      200 {array} MasterStudent
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/roster/students [get]
func (h *RosterHandler) ListStudents(c *gin.Context) {
	var query struct {
		SchoolID uint   `form:"school_id" binding:"required"`
		Grade    string `form:"grade"`
		Search   string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	students, err := h.roster.ListStudents(query.SchoolID, query.Grade, query.Search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, students)
}

type StudentRequest struct {
	SchoolID  uint   `json:"school_id" binding:"required"`
	StudentID string `json:"student_id" binding:"required,max=20"`
	Name      string `json:"name" binding:"max=100"`
	Surname   string `json:"surname" binding:"max=100"`
	Grade     string `json:"grade" binding:"max=20"`
	Section   string `json:"section" binding:"max=20"`
}

// CreateStudent godoc
// @Summary      Add one student to the roster
// @Tags         roster
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body StudentRequest true "Student data"
// @Success      201 {object} MasterStudent
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/roster/students [post]
func (h *RosterHandler) CreateStudent(c *gin.Context) {
	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	student := models.MasterStudent{
		SchoolID:  req.SchoolID,
		StudentID: req.StudentID,
		Name:      req.Name,
		Surname:   req.Surname,
		Grade:     req.Grade,
		Section:   req.Section,
	}
	if err := h.roster.CreateStudent(&student); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, student)
}

// UpdateStudent godoc
// @Summary      Update a roster entry
// @Tags         roster
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Student ID"
// @Param        request body StudentRequest true "Student data"
// @Success      200 {object} MasterStudent
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/roster/students/{id} [put]
func (h *RosterHandler) UpdateStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid student id"})
		return
	}
	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	student, err := h.roster.GetStudent(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	student.StudentID = req.StudentID
	student.Name = req.Name
	student.Surname = req.Surname
	student.Grade = req.Grade
	student.Section = req.Section
	if err := h.roster.UpdateStudent(student); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, student)
}

// DeleteStudent godoc
// @Summary      Delete a roster entry
// @Tags         roster
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Student ID"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/roster/students/{id} [delete]
func (h *RosterHandler) DeleteStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid student id"})
		return
	}
	if err := h.roster.DeleteStudent(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "student deleted"})
}

// ImportRoster godoc
// @Summary      Bulk-import a roster from XLSX
// @Description  Upserts students by raw ID; replace_existing wipes the school's roster first. Runs in one transaction.
// @Tags         roster
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "XLSX roster file"
// @Param        school_id formData int true "School ID"
// @Param        replace_existing formData bool false "Replace the whole roster"
// @Success      200 {object} services.RosterImportResult
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/roster/import [post]
func (h *RosterHandler) ImportRoster(c *gin.Context) {
	var form struct {
		SchoolID        uint `form:"school_id" binding:"required"`
		ReplaceExisting bool `form:"replace_existing"`
	}
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.roster.ImportWorkbook(form.SchoolID, content, form.ReplaceExisting)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
