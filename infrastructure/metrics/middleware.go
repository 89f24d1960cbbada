// Package metrics provides request metrics middleware for gin services.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests that hit no registered route, keeping label
// cardinality bounded.
const unmatchedRoute = "unmatched"

// Observer receives one observation per request.
type Observer func(method, route string, status int, elapsed time.Duration)

// Middleware reports every request to observe, labelled by route template
// rather than raw path.
func Middleware(observe Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		observe(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
