package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"aim-edu-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ZipGradeHandler struct {
	imports        *services.ImportService
	maxUploadBytes int64
}

func NewZipGradeHandler(imports *services.ImportService, maxUploadBytes int64) *ZipGradeHandler {
	return &ZipGradeHandler{imports: imports, maxUploadBytes: maxUploadBytes}
}

// Upload godoc
// @Summary      Upload a ZipGrade export for preview
// @Description  Parse a CSV/XLSX answer sheet export and return matched rows. Nothing is persisted until confirm.
// @Tags         zipgrade
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "CSV or XLSX export"
// @Param        school_id formData int true "School ID"
// @Param        encoding formData string false "Character encoding hint"
// @Success      200 {object} services.ImportPreview
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/zipgrade/upload [post]
func (h *ZipGradeHandler) Upload(c *gin.Context) {
	var form struct {
		SchoolID uint   `form:"school_id" binding:"required"`
		Encoding string `form:"encoding"`
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
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file too large"})
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

	preview, err := h.imports.Upload(currentUserID(c), form.SchoolID, content, fileHeader.Filename, form.Encoding)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, preview)
}

type ConfirmImportRequest struct {
	Token    string                     `json:"token" binding:"required"`
	Title    string                     `json:"title" binding:"required,max=200"`
	ExamDate time.Time                  `json:"exam_date" binding:"required"`
	Splits   []services.SplitDefinition `json:"splits"`
}

// Confirm godoc
// @Summary      Confirm a previewed import
// @Description  Persist the previewed upload atomically: exam, splits, and all student results commit together or not at all.
// @Tags         zipgrade
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ConfirmImportRequest true "Confirmation data"
// @Success      201 {object} ZipGradeExam
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/zipgrade/confirm [post]
func (h *ZipGradeHandler) Confirm(c *gin.Context) {
	var req ConfirmImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	exam, err := h.imports.Confirm(req.Token, currentUserID(c), req.Title, req.ExamDate, req.Splits)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrPreviewNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, exam)
}

// Discard godoc
// @Summary      Discard a pending import preview
// @Tags         zipgrade
// @Produce      json
// @Security     BearerAuth
// @Param        token path string true "Preview token"
// @Success      200 {object} MessageResponse
// @Router       /api/v1/zipgrade/preview/{token} [delete]
func (h *ZipGradeHandler) Discard(c *gin.Context) {
	h.imports.DiscardPreview(c.Param("token"), currentUserID(c))
	c.JSON(http.StatusOK, MessageResponse{Message: "preview discarded"})
}

// ListExams godoc
// @Summary      List imported exams
// @Tags         zipgrade
// @Produce      json
// @Security     BearerAuth
// @Param        school_id query int false "Filter by school"
// @Success      200 {array} ZipGradeExam
// @Router       /api/v1/zipgrade/exams [get]
func (h *ZipGradeHandler) ListExams(c *gin.Context) {
	var query struct {
		SchoolID uint `form:"school_id"`
	}
	_ = c.ShouldBindQuery(&query)

	exams, err := h.imports.ListExams(query.SchoolID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, exams)
}

// GetExam godoc
// @Summary      Get one imported exam with splits and results
// @Tags         zipgrade
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Success      200 {object} ZipGradeExam
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/zipgrade/exams/{id} [get]
func (h *ZipGradeHandler) GetExam(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	exam, err := h.imports.GetExam(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, exam)
}

// DeleteExam godoc
// @Summary      Delete an imported exam and all its results
// @Tags         zipgrade
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/zipgrade/exams/{id} [delete]
func (h *ZipGradeHandler) DeleteExam(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	if err := h.imports.DeleteExam(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "exam deleted"})
}

// AddSplit godoc
// @Summary      Add a subject split to an imported exam
// @Description  Validates range bounds and overlap against existing splits, then rescores the import.
// @Tags         zipgrade
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Param        request body services.SplitDefinition true "Split definition"
// @Success      201 {object} models.SubjectSplit
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/zipgrade/exams/{id}/splits [post]
func (h *ZipGradeHandler) AddSplit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	var def services.SplitDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	split, err := h.imports.AddSplit(id, def)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, split)
}

// UpdateSplit godoc
// @Summary      Update a subject split
// @Tags         zipgrade
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Split ID"
// @Param        request body services.SplitDefinition true "Split definition"
// @Success      200 {object} models.SubjectSplit
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/zipgrade/splits/{id} [put]
func (h *ZipGradeHandler) UpdateSplit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid split id"})
		return
	}
	var def services.SplitDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	split, err := h.imports.UpdateSplit(id, def)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, split)
}

// DeleteSplit godoc
// @Summary      Delete a subject split and its subject results
// @Tags         zipgrade
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Split ID"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/zipgrade/splits/{id} [delete]
func (h *ZipGradeHandler) DeleteSplit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid split id"})
		return
	}
	if err := h.imports.DeleteSplit(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "split deleted"})
}

// Recalculate godoc
// @Summary      Regenerate all subject results of an import
// @Tags         zipgrade
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/zipgrade/exams/{id}/recalculate [post]
func (h *ZipGradeHandler) Recalculate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	if err := h.imports.Recalculate(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "subject results recalculated"})
}

type ResolveUnknownRequest struct {
	StudentID *uint  `json:"student_id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ClassName string `json:"class_name"`
}

// ResolveUnknown godoc
// @Summary      Resolve an unknown student result
// @Description  Link the result to a roster student, or record manual name fields when no roster entry exists.
// @Tags         zipgrade
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Result ID"
// @Param        request body ResolveUnknownRequest true "Resolution"
// @Success      200 {object} models.ExamResult
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/zipgrade/results/{id}/resolve [post]
func (h *ZipGradeHandler) ResolveUnknown(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid result id"})
		return
	}
	var req ResolveUnknownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	result, err := h.imports.ResolveUnknown(id, req.StudentID, req.FirstName, req.LastName, req.ClassName)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
