package main

import (
	"log"

	"aim-edu-backend/internal/config"
	"aim-edu-backend/internal/database"
	"aim-edu-backend/internal/handlers"
	"aim-edu-backend/internal/middleware"
	"aim-edu-backend/internal/services"
	"aim-edu-backend/internal/ws"

	_ "aim-edu-backend/docs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           AIM-EDU API
// @version         1.0
// @description     School exam management: ZipGrade answer-sheet imports and proctored online exams
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	cfg := config.Load()

	db := database.Connect(cfg)
	database.AutoMigrate(db)

	hub := ws.NewHub()

	authService := services.NewAuthService(db, cfg.JWTSecret)
	schoolService := services.NewSchoolService(db)
	rosterService := services.NewRosterService(db)
	scoringService := services.NewScoringService()
	previewStore := services.NewPreviewStore(cfg.PreviewTTL)
	importService := services.NewImportService(db, rosterService, scoringService, previewStore)
	examService := services.NewExamService(db)
	attemptService := services.NewAttemptService(db, hub)

	authHandler := handlers.NewAuthHandler(authService)
	schoolHandler := handlers.NewSchoolHandler(schoolService)
	rosterHandler := handlers.NewRosterHandler(rosterService)
	zipgradeHandler := handlers.NewZipGradeHandler(importService, cfg.MaxUploadBytes)
	examHandler := handlers.NewExamHandler(examService, authService)
	attemptHandler := handlers.NewAttemptHandler(attemptService)
	wsHandler := handlers.NewWSHandler(hub)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws/exam/:id", wsHandler.HandleExamMonitor)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.JWTAuth(authService), authHandler.Me)
		}

		schools := api.Group("/schools")
		schools.Use(middleware.JWTAuth(authService), middleware.RequireStaff())
		{
			schools.GET("", schoolHandler.ListSchools)
			schools.POST("", schoolHandler.CreateSchool)
			schools.PUT("/:id", schoolHandler.UpdateSchool)
		}

		subjects := api.Group("/subjects")
		subjects.Use(middleware.JWTAuth(authService), middleware.RequireStaff())
		{
			subjects.GET("", schoolHandler.ListSubjects)
			subjects.POST("", schoolHandler.CreateSubject)
		}

		roster := api.Group("/roster")
		roster.Use(middleware.JWTAuth(authService), middleware.RequireStaff())
		{
			roster.GET("/students", rosterHandler.ListStudents)
			roster.POST("/students", rosterHandler.CreateStudent)
			roster.PUT("/students/:id", rosterHandler.UpdateStudent)
			roster.DELETE("/students/:id", rosterHandler.DeleteStudent)
			roster.POST("/import", rosterHandler.ImportRoster)
		}

		zipgrade := api.Group("/zipgrade")
		zipgrade.Use(middleware.JWTAuth(authService), middleware.RequireStaff())
		{
			zipgrade.POST("/upload", zipgradeHandler.Upload)
			zipgrade.POST("/confirm", zipgradeHandler.Confirm)
			zipgrade.DELETE("/preview/:token", zipgradeHandler.Discard)
			zipgrade.GET("/exams", zipgradeHandler.ListExams)
			zipgrade.GET("/exams/:id", zipgradeHandler.GetExam)
			zipgrade.DELETE("/exams/:id", zipgradeHandler.DeleteExam)
			zipgrade.POST("/exams/:id/splits", zipgradeHandler.AddSplit)
			zipgrade.POST("/exams/:id/recalculate", zipgradeHandler.Recalculate)
			zipgrade.PUT("/splits/:id", zipgradeHandler.UpdateSplit)
			zipgrade.DELETE("/splits/:id", zipgradeHandler.DeleteSplit)
			zipgrade.POST("/results/:id/resolve", zipgradeHandler.ResolveUnknown)
		}

		exams := api.Group("/exams")
		exams.Use(middleware.JWTAuth(authService))
		{
			exams.GET("", examHandler.ListExams)
			exams.GET("/:id", examHandler.GetExam)
			exams.POST("/:id/attempts", attemptHandler.Start)

			staff := exams.Group("")
			staff.Use(middleware.RequireStaff())
			{
				staff.POST("", examHandler.CreateExam)
				staff.PUT("/:id", examHandler.UpdateExam)
				staff.DELETE("/:id", examHandler.DeleteExam)
				staff.POST("/:id/questions", examHandler.AddQuestion)
				staff.GET("/:id/attempts", attemptHandler.ListByExam)
			}
		}

		questions := api.Group("/questions")
		questions.Use(middleware.JWTAuth(authService), middleware.RequireStaff())
		{
			questions.DELETE("/:id", examHandler.DeleteQuestion)
		}

		attempts := api.Group("/attempts")
		attempts.Use(middleware.JWTAuth(authService))
		{
			attempts.GET("/:id", attemptHandler.Get)
			attempts.GET("/:id/take", attemptHandler.Take)
			attempts.POST("/:id/answers", attemptHandler.SaveAnswer)
			attempts.POST("/:id/events", attemptHandler.LogEvent)
			attempts.POST("/:id/submit", attemptHandler.Submit)

			attempts.POST("/:id/unlock", middleware.RequireStaff(), attemptHandler.Unlock)
			attempts.GET("/:id/events", middleware.RequireStaff(), attemptHandler.Events)
		}
	}

	log.Printf("server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
