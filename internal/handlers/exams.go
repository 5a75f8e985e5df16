package handlers

import (
	"net/http"
	"time"

	"aim-edu-backend/internal/models"
	"aim-edu-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ExamHandler struct {
	exams *services.ExamService
	auth  *services.AuthService
}

func NewExamHandler(exams *services.ExamService, auth *services.AuthService) *ExamHandler {
	return &ExamHandler{exams: exams, auth: auth}
}

// ListExams godoc
// @Summary      List online exams
// @Description  Staff sees all exams of a school; students see only active exams of their own school.
// @Tags         exams
// @Produce      json
// @Security     BearerAuth
// @Param        school_id query int false "Filter by school (staff only)"
// @Success      200 {array} OnlineExam
// @Router       /api/v1/exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	user, err := h.auth.GetUser(currentUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	if user.Role == models.RoleStudent {
		if user.SchoolID == nil {
			c.JSON(http.StatusOK, []models.OnlineExam{})
			return
		}
		exams, err := h.exams.ListAvailable(*user.SchoolID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, exams)
		return
	}

	var query struct {
		SchoolID uint `form:"school_id"`
	}
	_ = c.ShouldBindQuery(&query)
	exams, err := h.exams.ListBySchool(query.SchoolID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, exams)
}

// GetExam godoc
// @Summary      Get one exam with its questions
// @Tags         exams
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Success      200 {object} OnlineExam
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	exam, err := h.exams.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, exam)
}

type ExamRequest struct {
	Title                  string    `json:"title" binding:"required,max=200"`
	Description            string    `json:"description"`
	SubjectID              uint      `json:"subject_id" binding:"required"`
	SchoolID               uint      `json:"school_id" binding:"required"`
	DurationMinutes        int       `json:"duration_minutes"`
	PassingScore           int       `json:"passing_score"`
	StartTime              time.Time `json:"start_time" binding:"required"`
	EndTime                time.Time `json:"end_time" binding:"required"`
	ShuffleQuestions       bool      `json:"shuffle_questions"`
	ShuffleOptions         bool      `json:"shuffle_options"`
	ShowResultsImmediately bool      `json:"show_results_immediately"`
	MaxTabSwitches         int       `json:"max_tab_switches"`
	IsActive               *bool     `json:"is_active"`
}

// CreateExam godoc
// @Summary      Create an online exam
// @Tags         exams
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ExamRequest true "Exam data"
// @Success      201 {object} OnlineExam
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req ExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	exam := models.OnlineExam{
		Title:                  req.Title,
		Description:            req.Description,
		SubjectID:              req.SubjectID,
		SchoolID:               req.SchoolID,
		CreatedByID:            currentUserID(c),
		DurationMinutes:        req.DurationMinutes,
		PassingScore:           req.PassingScore,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		ShuffleQuestions:       req.ShuffleQuestions,
		ShuffleOptions:         req.ShuffleOptions,
		ShowResultsImmediately: req.ShowResultsImmediately,
		MaxTabSwitches:         req.MaxTabSwitches,
		IsActive:               true,
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}
	if err := h.exams.Create(&exam); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, exam)
}

// UpdateExam godoc
// @Summary      Update an online exam
// @Tags         exams
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Param        request body ExamRequest true "Exam data"
// @Success      200 {object} OnlineExam
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	var req ExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	exam, err := h.exams.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	exam.Title = req.Title
	exam.Description = req.Description
	exam.SubjectID = req.SubjectID
	exam.DurationMinutes = req.DurationMinutes
	exam.PassingScore = req.PassingScore
	exam.StartTime = req.StartTime
	exam.EndTime = req.EndTime
	exam.ShuffleQuestions = req.ShuffleQuestions
	exam.ShuffleOptions = req.ShuffleOptions
	exam.ShowResultsImmediately = req.ShowResultsImmediately
	if req.MaxTabSwitches > 0 {
		exam.MaxTabSwitches = req.MaxTabSwitches
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}
	if err := h.exams.Update(exam); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, exam)
}

// DeleteExam godoc
// @Summary      Delete an online exam and all its attempts
// @Tags         exams
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	if err := h.exams.Delete(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "exam deleted"})
}

type OptionRequest struct {
	Text      string `json:"text" binding:"required,max=500"`
	IsCorrect bool   `json:"is_correct"`
	OrderNum  int    `json:"order_num"`
}

type QuestionRequest struct {
	QuestionText   string          `json:"question_text" binding:"required"`
	QuestionType   string          `json:"question_type"`
	Points         int             `json:"points"`
	OrderNum       int             `json:"order_num"`
	CorrectAnswers string          `json:"correct_answers"`
	Options        []OptionRequest `json:"options"`
}

// AddQuestion godoc
// @Summary      Add a question to an exam
// @Tags         exams
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Param        request body QuestionRequest true "Question data"
// @Success      201 {object} models.ExamQuestion
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/exams/{id}/questions [post]
func (h *ExamHandler) AddQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	question := models.ExamQuestion{
		QuestionText:   req.QuestionText,
		QuestionType:   req.QuestionType,
		Points:         req.Points,
		OrderNum:       req.OrderNum,
		CorrectAnswers: req.CorrectAnswers,
	}
	options := make([]models.QuestionOption, 0, len(req.Options))
	for _, o := range req.Options {
		options = append(options, models.QuestionOption{
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
			OrderNum:  o.OrderNum,
		})
	}
	if err := h.exams.AddQuestion(id, &question, options); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	question.Options = options
	c.JSON(http.StatusCreated, question)
}

// DeleteQuestion godoc
// @Summary      Delete a question
// @Tags         exams
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Question ID"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/questions/{id} [delete]
func (h *ExamHandler) DeleteQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid question id"})
		return
	}
	if err := h.exams.DeleteQuestion(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "question deleted"})
}
