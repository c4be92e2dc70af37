package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-results-api/api/swagger"
	"github.com/noah-isme/sma-results-api/internal/handler"
	"github.com/noah-isme/sma-results-api/internal/middleware"
	"github.com/noah-isme/sma-results-api/pkg/config"
	"github.com/noah-isme/sma-results-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-results-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-results-api/pkg/middleware/requestid"
)

type routes struct {
	auth        *handler.AuthHandler
	results     *handler.ResultHandler
	performance *handler.PerformanceHandler
	subjects    *handler.SubjectHandler
	roster      *handler.RosterHandler
	exports     *handler.ExportHandler
	metrics     *handler.MetricsHandler
	tokens      middleware.TokenValidator
	observer    middleware.RequestObserver
}

func newRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(h.observer))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	api.POST("/auth/login", h.auth.Login)
	// signed token is the credential
	api.GET("/exports/download/:token", h.exports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(h.tokens))
	staff := middleware.RequireStaff()
	admin := middleware.RequireAdmin()

	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/metrics/summary", admin, h.metrics.Snapshot)

	secured.GET("/classes", staff, h.roster.ListClasses)
	secured.GET("/classes/:id", staff, h.roster.GetClass)
	secured.GET("/classes/:id/performance", staff, h.performance.ClassPerformance)
	secured.GET("/classes/:id/broadsheet", staff, h.exports.Broadsheet)

	secured.GET("/students", staff, h.roster.ListStudents)
	secured.GET("/students/:id", staff, h.roster.GetStudent)
	secured.GET("/students/:id/summary", staff, h.performance.StudentSummary)

	secured.GET("/subjects", staff, h.subjects.List)
	secured.GET("/subjects/:id", staff, h.subjects.Get)
	secured.PUT("/subjects/:id/maxima", admin, h.subjects.UpdateMaxima)

	secured.GET("/results", staff, h.results.List)
	secured.POST("/results", staff, h.results.Submit)
	secured.POST("/results/bulk", staff, h.results.BulkSubmit)
	secured.POST("/results/approve", admin, h.results.Approve)
	secured.POST("/results/print", admin, h.results.Print)

	secured.POST("/exports/broadsheets", staff, h.exports.CreateJob)
	secured.GET("/exports/:id", staff, h.exports.JobStatus)

	return r
}
