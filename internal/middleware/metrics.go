package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/necta-results-api/internal/service"
)

// Metrics returns middleware that captures request metrics using the provided
// service. Requests to skipped paths are not observed. Unrouted requests share
// one label so scanners cannot blow up label cardinality.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
