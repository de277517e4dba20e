// Package middleware provides HTTP middleware for security and request processing
package middleware

import (
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/ecogarden/src/server/metrics"
)

// numericIDRegex matches numeric path segments (cardinality control)
var numericIDRegex = regexp.MustCompile(`/\d+(/|$)`)

// MetricsMiddleware records HTTP metrics for all requests
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.HTTPActiveRequests.Inc()
		defer metrics.HTTPActiveRequests.Dec()

		c.Next()

		// Route template when matched, e.g. /api/conseil/:id
		path := c.FullPath()
		if path == "" {
			path = normalizeMetricPath(c.Request.URL.Path)
		}

		status := strconv.Itoa(c.Writer.Status())
		responseSize := float64(c.Writer.Size())
		if responseSize < 0 {
			responseSize = 0
		}

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		metrics.HTTPResponseSize.WithLabelValues(c.Request.Method, path).Observe(responseSize)
	}
}

// normalizeMetricPath replaces numeric segments of unmatched paths
func normalizeMetricPath(path string) string {
	if path == "" {
		return "/"
	}
	return numericIDRegex.ReplaceAllString(path, "/:id$1")
}
