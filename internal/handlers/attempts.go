package handlers

import (
	"errors"
	"net/http"

	"aim-edu-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	attempts *services.AttemptService
}

func NewAttemptHandler(attempts *services.AttemptService) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

func attemptErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrExamNotAvailable),
		errors.Is(err, services.ErrAttemptNotActive),
		errors.Is(err, services.ErrAttemptNotLocked),
		errors.Is(err, services.ErrQuestionNotInExam):
		return http.StatusConflict
	case errors.Is(err, services.ErrAttemptLocked):
		return http.StatusLocked
	case errors.Is(err, services.ErrAttemptCompleted):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// Start godoc
// @Summary      Start (or resume) the single attempt for an exam
// @Description  One attempt per student per exam, ever. An in-progress attempt is resumed; a locked one returns 423.
// @Tags         attempts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Success      201 {object} ExamAttempt
// @Failure      409 {object} ErrorResponse
// @Failure      423 {object} ErrorResponse
// @Router       /api/v1/exams/{id}/attempts [post]
func (h *AttemptHandler) Start(c *gin.Context) {
	examID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}

	attempt, err := h.attempts.Start(examID, currentUserID(c))
	if err != nil {
		status := attemptErrorStatus(err)
		if attempt != nil {
			c.JSON(status, gin.H{"error": err.Error(), "attempt": attempt})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, attempt)
}

// Get godoc
// @Summary      Read an attempt's current state
// @Description  An in-progress attempt whose time has expired transitions to timed_out with its score computed before the response.
// @Tags         attempts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Attempt ID"
// @Success      200 {object} ExamAttempt
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/attempts/{id} [get]
func (h *AttemptHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id"})
		return
	}
	attempt, err := h.attempts.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// Take godoc
// @Summary      Materialize the exam-taking payload
// @Description  Returns questions in the attempt's presentation order (shuffled when configured) with saved answers and remaining seconds.
// @Tags         attempts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Attempt ID"
// @Success      200 {object} services.TakePayload
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/attempts/{id}/take [get]
func (h *AttemptHandler) Take(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id"})
		return
	}
	payload, err := h.attempts.Take(id)
	if err != nil {
		c.JSON(attemptErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, payload)
}

type SaveAnswerRequest struct {
	QuestionID       uint   `json:"question_id" binding:"required"`
	SelectedOptionID *uint  `json:"selected_option_id,omitempty"`
	TextAnswer       string `json:"text_answer"`
}

// SaveAnswer godoc
// @Summary      Save one answer
// @Description  Upserts the answer for (attempt, question) and grades it immediately.
// @Tags         attempts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Attempt ID"
// @Param        request body SaveAnswerRequest true "Answer"
// @Success      200 {object} models.AttemptAnswer
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/attempts/{id}/answers [post]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id"})
		return
	}
	var req SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	answer, err := h.attempts.SaveAnswer(id, req.QuestionID, req.SelectedOptionID, req.TextAnswer)
	if err != nil {
		c.JSON(attemptErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, answer)
}

type LogEventRequest struct {
	EventType string                 `json:"event_type" binding:"required"`
	Details   map[string]interface{} `json:"details"`
}

// LogEvent godoc
// @Summary      Log a proctoring event
// @Description  Always appended to the audit trail. Tab-switch and window-blur events count toward the lock threshold while the attempt is in progress.
// @Tags         attempts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Attempt ID"
// @Param        request body LogEventRequest true "Event"
// @Success      200 {object} ExamAttempt
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/attempts/{id}/events [post]
func (h *AttemptHandler) LogEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id"})
		return
	}
	var req LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	attempt, err := h.attempts.LogEvent(id, req.EventType, req.Details)
	if err != nil {
		c.JSON(attemptErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// Submit godoc
// @Summary      Submit an attempt
// @Tags         attempts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Attempt ID"
// @Success      200 {object} ExamAttempt
// @Failure      409 {object} ErrorResponse
// @Failure      423 {object} ErrorResponse
// @Router       /api/v1/attempts/{id}/submit [post]
func (h *AttemptHandler) Submit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id"})
		return
	}
	attempt, err := h.attempts.Submit(id)
	if err != nil {
		c.JSON(attemptErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// Unlock godoc
// @Summary      Unlock a locked attempt for a full retake
// @Description  Purges all stored answers, resets the tab-switch counter and start time, and appends an admin_unlock event. Prior events are preserved.
// @Tags         attempts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Attempt ID"
// @Success      200 {object} ExamAttempt
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/attempts/{id}/unlock [post]
func (h *AttemptHandler) Unlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id"})
		return
	}
	attempt, err := h.attempts.Unlock(id, currentUserID(c))
	if err != nil {
		c.JSON(attemptErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// ListByExam godoc
// @Summary      List all attempts of an exam
// @Tags         attempts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Exam ID"
// @Success      200 {array} ExamAttempt
// @Router       /api/v1/exams/{id}/attempts [get]
func (h *AttemptHandler) ListByExam(c *gin.Context) {
	examID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}
	attempts, err := h.attempts.ListByExam(examID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, attempts)
}

// Events godoc
// @Summary      Read an attempt's proctoring history
// @Tags         attempts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Attempt ID"
// @Success      200 {array} models.ProctorEvent
// @Router       /api/v1/attempts/{id}/events [get]
func (h *AttemptHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id"})
		return
	}
	events, err := h.attempts.Events(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}
