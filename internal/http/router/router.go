package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/http/handler"
	"visa-portal/internal/http/middleware"
)

type Handlers struct {
	Applications *handler.ApplicationHandler
	Admin        *handler.AdminHandler
	Meetings     *handler.MeetingHandler
	Health       *handler.HealthHandler
}

type RouterConfig struct {
	ServiceName   string
	Auth          middleware.ActorResolver
	LetterLimiter *rate.Limiter
	Logger        logger.Logger
}

// New builds the engine with the standard middleware chain: tracing first,
// then request ids, logging and panic recovery.
func New(h Handlers, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middleware.RequestID(), middleware.Logger(cfg.Logger), middleware.Recovery(cfg.Logger))
	SetupRoutes(r, h, cfg)
	return r
}

func SetupRoutes(r *gin.Engine, h Handlers, cfg RouterConfig) {
	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Authenticate(cfg.Auth))
	{
		MeetingRouter(v1.Group("/meetings"), h.Meetings)
		ApplicationRouter(v1.Group("/applications"), h.Applications, cfg.LetterLimiter)
		AdminRouter(v1.Group("/admin"), h.Admin)
	}
}

func MeetingRouter(rg *gin.RouterGroup, h *handler.MeetingHandler) {
	rg.GET("", h.List)
	rg.POST("", middleware.RequireAdmin(), h.Create)
}

func ApplicationRouter(rg *gin.RouterGroup, h *handler.ApplicationHandler, letterLimiter *rate.Limiter) {
	rg.POST("", h.Submit)
	rg.GET("/mine", h.ListMine)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Patch)
	rg.DELETE("/:id", middleware.RequireAdmin(), h.Delete)
	rg.PUT("/:id/status", middleware.RequireAdmin(), h.SetStatus)

	letter := []gin.HandlerFunc{h.Letter}
	if letterLimiter != nil {
		letter = append([]gin.HandlerFunc{middleware.RateLimit(letterLimiter)}, letter...)
	}
	rg.GET("/:id/letter", letter...)
}

func AdminRouter(rg *gin.RouterGroup, h *handler.AdminHandler) {
	rg.Use(middleware.RequireAdmin())
	{
		rg.POST("/import", h.Import)
		rg.GET("/meetings/:id/export", middleware.Gzip(), h.Export)
		rg.GET("/search", h.Search)
	}
}
