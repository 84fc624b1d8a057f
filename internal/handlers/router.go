package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/upwork-job-applier/internal/archive"
	"github.com/justsurfingit/upwork-job-applier/internal/logger"
	"github.com/justsurfingit/upwork-job-applier/internal/metrics"
	"github.com/justsurfingit/upwork-job-applier/internal/notify"
	"github.com/justsurfingit/upwork-job-applier/internal/runlock"
	"github.com/justsurfingit/upwork-job-applier/internal/services"
	"go.uber.org/zap"
)

type Deps struct {
	Users         *services.UserService
	Jobs          *services.JobService
	Prompts       *services.PromptService
	Pipeline      *services.Pipeline
	Archive       *archive.Writer
	Notifications *notify.Store
	Locker        runlock.Locker
	Metrics       *metrics.Metrics
	Log           *zap.Logger
	CORSOrigins   []string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(d.Log))

	corsCfg := cors.DefaultConfig()
	if len(d.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = d.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	authHandler := NewAuthHandler(d.Users)
	jobHandler := NewJobHandler(d.Jobs)
	pipelineHandler := NewPipelineHandler(d.Pipeline, d.Locker, d.Archive, d.Log)
	adminHandler := &AdminHandler{
		Users:         d.Users,
		Jobs:          d.Jobs,
		Prompts:       d.Prompts,
		Notifications: d.Notifications,
		Archive:       d.Archive,
	}

	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/health", HealthCheck)
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
	}

	user := api.Group("", AuthMiddleware(d.Users))
	{
		user.POST("/auth/logout", authHandler.Logout)
		user.GET("/me", authHandler.Me)

		// Job Routes
		user.POST("/jobs", jobHandler.CreateJob)
		user.GET("/jobs", jobHandler.ListJobs)
		user.POST("/jobs/delete", jobHandler.DeleteJobs)
		user.POST("/jobs/reset", jobHandler.ResetScores)
		user.GET("/jobs/:id", jobHandler.GetJob)
		user.PATCH("/jobs/:id", jobHandler.UpdateJob)
		user.DELETE("/jobs/:id", jobHandler.DeleteJob)
		user.POST("/jobs/:id/reset", jobHandler.ResetScore)
		user.GET("/stats", jobHandler.Stats)

		// Pipeline Routes
		user.POST("/process", pipelineHandler.Process)
		user.POST("/jobs/:id/regenerate", pipelineHandler.Regenerate)
		user.GET("/applications", pipelineHandler.Applications)
	}

	admin := user.Group("/admin", AdminMiddleware())
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.POST("/users/:id/promote", adminHandler.Promote)
		admin.POST("/users/:id/demote", adminHandler.Demote)
		admin.POST("/users/:id/toggle", adminHandler.ToggleStatus)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
		admin.GET("/jobs", adminHandler.ListJobs)
		admin.GET("/stats", adminHandler.SystemStats)
		admin.GET("/prompts", adminHandler.ListPrompts)
		admin.POST("/prompts/init", adminHandler.InitPrompts)
		admin.GET("/prompts/:type", adminHandler.GetPrompt)
		admin.PUT("/prompts/:type", adminHandler.UpsertPrompt)
		admin.DELETE("/prompts/:type", adminHandler.DeletePrompt)
		admin.GET("/notifications", adminHandler.ListNotifications)
		admin.DELETE("/notifications", adminHandler.ClearNotifications)
		admin.GET("/applications", adminHandler.Applications)
	}
	return r
}
