package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-workflow/internal/middleware"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
	"github.com/noah-isme/sma-grade-workflow/pkg/config"
	"github.com/noah-isme/sma-grade-workflow/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-grade-workflow/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-grade-workflow/pkg/middleware/requestid"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Config      *config.Config
	Logger      *zap.Logger
	Tokens      middleware.TokenValidator
	Gradesheets *GradesheetHandler
	Classes     *ClassHandler
	Rosters     *RosterHandler
	Metrics     *MetricsHandler
	Observer    middleware.HTTPObserver
}

// NewRouter assembles the gin engine with the ambient middleware chain and the workflow routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log, middleware.UserLogFields))
	r.Use(corsmiddleware.New(deps.Config.CORS))
	r.Use(middleware.Metrics(deps.Observer))

	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", deps.Metrics.Ready)
	r.GET("/metrics", deps.Metrics.Prometheus)
	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	audit := log.Named("audit")
	api := r.Group(deps.Config.APIPrefix, middleware.JWT(deps.Tokens))

	sheets := api.Group("/gradesheets", middleware.RequireRoles(models.RoleTeacher, models.RoleHead, models.RoleAdmin))
	sheets.GET("", deps.Gradesheets.List)
	sheets.GET("/:sheetId", deps.Gradesheets.Get)
	sheets.PUT("/:sheetId/scores", middleware.Audit(audit, "gradesheet.set_score"), deps.Gradesheets.SetScore)
	sheets.POST("/:sheetId/columns", middleware.Audit(audit, "gradesheet.add_column"), deps.Gradesheets.AddColumn)
	sheets.PUT("/:sheetId/columns/:columnId", middleware.Audit(audit, "gradesheet.edit_column"), deps.Gradesheets.EditColumn)
	sheets.DELETE("/:sheetId/columns/:columnId", middleware.Audit(audit, "gradesheet.delete_column"), deps.Gradesheets.DeleteColumn)
	sheets.POST("/:sheetId/submit", middleware.Audit(audit, "gradesheet.submit"), deps.Gradesheets.Submit)
	sheets.POST("/:sheetId/reset", middleware.Audit(audit, "gradesheet.reset"), deps.Gradesheets.Reset)

	classes := api.Group("/classes/:classId")
	heads := classes.Group("", middleware.RequireRoles(models.RoleHead, models.RoleAdmin))
	heads.GET("/summary", deps.Classes.Summary)
	heads.GET("/rankings", deps.Classes.Rankings)
	heads.POST("/approve", middleware.Audit(audit, "class.approve"), deps.Classes.Approve)
	if deps.Config.Exports.Enabled {
		heads.GET("/rankings/export", deps.Classes.Export)
	}
	classes.GET("/students/:studentId/result",
		middleware.RequireRoles(models.RoleHead, models.RoleAdmin, models.RoleStudent),
		deps.Classes.StudentResult)

	api.GET("/me/result", middleware.RequireRoles(models.RoleStudent), deps.Classes.MyResult)

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.PUT("/rosters", middleware.Audit(audit, "roster.upsert"), deps.Rosters.Upsert)

	return r
}
