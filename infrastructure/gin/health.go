package gin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency. A nil error is healthy.
type HealthCheck func(ctx context.Context) error

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

const healthCheckTimeout = 3 * time.Second

// RegisterHealth mounts GET /health. Any failing check turns the response into
// 503 with status "unhealthy".
func RegisterHealth(r gin.IRoutes, service, version string, checks map[string]HealthCheck) {
	started := time.Now()

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		overall := "healthy"
		results := make(map[string]checkResult, len(checks))
		for name, check := range checks {
			begin := time.Now()
			res := checkResult{Status: "healthy"}
			if err := check(ctx); err != nil {
				res.Status = "unhealthy"
				res.Message = err.Error()
				status = http.StatusServiceUnavailable
				overall = "unhealthy"
			}
			res.Latency = time.Since(begin).String()
			results[name] = res
		}

		c.JSON(status, gin.H{
			"status":  overall,
			"service": service,
			"version": version,
			"uptime":  time.Since(started).Round(time.Second).String(),
			"checks":  results,
		})
	})
}
