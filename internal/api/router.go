package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/onronder/p-958660-sub000/infrastructure/gin"
	inframetrics "github.com/onronder/p-958660-sub000/infrastructure/metrics"
)

// RouterConfig carries what the router needs besides the handler.
type RouterConfig struct {
	ServiceName string
	Version     string
	Metrics     http.Handler
	Checks      map[string]infragin.HealthCheck
	// Observe receives per-request latency when set.
	Observe inframetrics.Observer
}

// Routes returns the route installer passed to infragin.NewServer.
func Routes(h *Handler, cfg RouterConfig) func(*gin.Engine) {
	return func(router *gin.Engine) {
		if cfg.Observe != nil {
			router.Use(inframetrics.Middleware(cfg.Observe))
		}

		infragin.RegisterHealth(router, cfg.ServiceName, cfg.Version, cfg.Checks)
		if cfg.Metrics != nil {
			router.GET("/metrics", gin.WrapH(cfg.Metrics))
		}

		v1 := router.Group("/api/v1")

		v1.POST("/extract", h.Extract)
		v1.POST("/extract/dependent", h.ExtractDependent)
		v1.POST("/preview-data", h.PreviewData)
		v1.POST("/sources/:id/test-connection", h.TestConnection)
		v1.GET("/extractions/:id", h.GetExtraction)
		v1.GET("/templates", h.ListTemplates)
		v1.GET("/templates/dependent", h.ListDependentTemplates)
		v1.GET("/dead-letters", h.ListDeadLetters)

		previews := v1.Group("/previews")
		previews.POST("", h.GeneratePreview)
		previews.POST("/retry", h.RetryPreview)
		previews.GET("/:session_id", h.GetPreview)
	}
}
