package handlers

import (
	"strconv"

	"aim-edu-backend/internal/models"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// Type aliases so swag can resolve models in annotations.
type School = models.School
type MasterStudent = models.MasterStudent
type ZipGradeExam = models.ZipGradeExam
type OnlineExam = models.OnlineExam
type ExamAttempt = models.ExamAttempt

func currentUserID(c *gin.Context) uint {
	return c.GetUint("user_id")
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
