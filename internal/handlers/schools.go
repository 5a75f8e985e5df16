package handlers

import (
	"net/http"

	"aim-edu-backend/internal/models"
	"aim-edu-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type SchoolHandler struct {
	schools *services.SchoolService
}

func NewSchoolHandler(schools *services.SchoolService) *SchoolHandler {
	return &SchoolHandler{schools: schools}
}

// ListSchools godoc
// @Summary      List schools
// @Tags         schools
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} School
// @Router       /api/v1/schools [get]
func (h *SchoolHandler) ListSchools(c *gin.Context) {
	schools, err := h.schools.ListSchools()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, schools)
}

type SchoolRequest struct {
	Name     string `json:"name" binding:"required,max=200"`
	IsActive *bool  `json:"is_active"`
}

// CreateSchool godoc
// @Summary      Create a school
// @Tags         schools
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SchoolRequest true "School data"
// @Success      201 {object} School
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/schools [post]
func (h *SchoolHandler) CreateSchool(c *gin.Context) {
	var req SchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	school := models.School{Name: req.Name, IsActive: true}
	if req.IsActive != nil {
		school.IsActive = *req.IsActive
	}
	if err := h.schools.CreateSchool(&school); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, school)
}

// UpdateSchool godoc
// @Summary      Update a school
// @Tags         schools
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "School ID"
// @Param        request body SchoolRequest true "School data"
// @Success      200 {object} School
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/schools/{id} [put]
func (h *SchoolHandler) UpdateSchool(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid school id"})
		return
	}
	var req SchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	school, err := h.schools.GetSchool(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	school.Name = req.Name
	if req.IsActive != nil {
		school.IsActive = *req.IsActive
	}
	if err := h.schools.UpdateSchool(school); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, school)
}

// ListSubjects godoc
// @Summary      List active subjects
// @Tags         schools
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} models.Subject
// @Router       /api/v1/subjects [get]
func (h *SchoolHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.schools.ListSubjects()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, subjects)
}

type SubjectRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreateSubject godoc
// @Summary      Create a subject
// @Tags         schools
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SubjectRequest true "Subject data"
// @Success      201 {object} models.Subject
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/subjects [post]
func (h *SchoolHandler) CreateSubject(c *gin.Context) {
	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	subject := models.Subject{Name: req.Name, IsActive: true}
	if err := h.schools.CreateSubject(&subject); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, subject)
}
