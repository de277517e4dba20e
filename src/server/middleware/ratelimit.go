package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
)

// RateLimit limits each client IP to requests per window
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := httprate.NewRateLimiter(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(gin.H{
				"error":  "Too many requests. Please try again later.",
				"code":   "RATE_LIMITED",
				"status": http.StatusTooManyRequests,
			})
		}),
	)
	return wrapRateLimiter(limiter)
}

// wrapRateLimiter adapts an httprate limiter to Gin. The limiter writes
// the 429 itself; the chain continues only when it calls through.
func wrapRateLimiter(limiter *httprate.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		}))

		handler.ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}
