package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/ecogarden/src/utils"
)

// AccessLogger creates middleware for logging HTTP requests
func AccessLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		username := ""
		if user, ok := GetCurrentUser(c); ok {
			username = user.Email
		}

		size := int64(c.Writer.Size())
		if size < 0 {
			size = 0
		}

		logger.Access(c.ClientIP(), username, c.Request.Method, c.Request.URL.Path, c.Request.Proto,
			c.Writer.Status(), size, c.Request.Referer(), c.Request.UserAgent())

		for _, err := range c.Errors {
			logger.Error("%s %s [%s]: %v", c.Request.Method, c.Request.URL.Path, GetRequestID(c), err.Err)
		}

		if duration > 1*time.Second {
			logger.Warn("Slow request: %s %s took %v", c.Request.Method, c.Request.URL.Path, duration)
		}
	}
}
