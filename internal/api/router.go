package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/adnreport/internal/api/handler"
	"github.com/timmy/adnreport/internal/api/middleware"
	"github.com/timmy/adnreport/internal/config"
	"github.com/timmy/adnreport/internal/logger"
)

// RouterDeps holds what the HTTP surface needs.
type RouterDeps struct {
	Tasks   handler.TaskReader
	Runner  handler.TaskExecutor
	DB      handler.Pinger // optional
	Metrics http.Handler   // optional, served at /metrics
	Logger  *logger.Logger
	Mode    string
	CORS    config.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps) *gin.Engine {
	switch deps.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler(deps.DB)
	taskHandler := handler.NewTaskHandler(deps.Tasks, deps.Runner)

	r.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/tasks/:id", taskHandler.GetTask)
		v1.POST("/tasks/:id/run", taskHandler.RunTask)
	}

	return r
}
