package main

import (
	"github.com/dialogeval/evaluator/internal/config"
	"github.com/dialogeval/evaluator/internal/handlers"
	"github.com/dialogeval/evaluator/internal/middleware"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	// Dialog ids may contain "/" once escaped.
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	db := svc.db
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	audit := middleware.ActivityLog(svc.activity)

	r.GET("/health", handlers.NewHealthHandler(db, svc.taskQueue).CheckHealth)

	dialogHandler := handlers.NewDialogHandler(db)
	r.GET("/dialogs", dialogHandler.List)
	r.GET("/dialogs/reviewed", dialogHandler.Reviewed)
	r.GET("/dialogs/:id", dialogHandler.GetByID)
	r.POST("/upload", limiter.Middleware(), audit, dialogHandler.Upload)

	evaluationHandler := handlers.NewEvaluationHandler(db)
	r.POST("/evaluate", audit, evaluationHandler.Upsert)
	r.GET("/evaluate/:id", evaluationHandler.GetByDialog)

	feedbackHandler := handlers.NewFeedbackHandler(db)
	r.POST("/feedback", audit, feedbackHandler.Upsert)
	r.GET("/feedback/:id", feedbackHandler.List)

	exportHandler := handlers.NewExportHandler(db, cfg.Export.Dir, svc.taskQueue)
	r.GET("/export/:id/json", exportHandler.JSON)
	r.GET("/export/:id/csv", exportHandler.CSV)
	r.POST("/export/bulk", limiter.Middleware(), audit, exportHandler.Bulk)

	r.GET("/activity", handlers.NewActivityHandler(db).List)
}
