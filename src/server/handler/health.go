package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/ecogarden/src/database"
	services "github.com/apimgr/ecogarden/src/server/service"
)

// HealthHandler reports service health
type HealthHandler struct {
	DB      *database.DB
	Cache   *services.ForecastCache
	Version string
	Started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, fc *services.ForecastCache, version string) *HealthHandler {
	return &HealthHandler{DB: db, Cache: fc, Version: version, Started: time.Now()}
}

// HealthCheck handles GET /healthz. A dead database makes the service
// unavailable; an unreachable Redis only degrades it, since the memory
// cache keeps working.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /healthz [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "OK"
	code := http.StatusOK

	dbStatus, latency, err := h.DB.HealthCheck(c.Request.Context())
	dbCheck := gin.H{
		"status":     dbStatus,
		"dialect":    string(h.DB.Dialect),
		"latency_ms": latency.Milliseconds(),
	}
	if err != nil {
		dbCheck["error"] = err.Error()
		status = "Unavailable"
		code = http.StatusServiceUnavailable
	}

	cacheCheck := gin.H{"status": "connected"}
	if h.Cache != nil {
		cacheCheck["backend"] = h.Cache.Backend()
		if err := h.Cache.Ping(c.Request.Context()); err != nil {
			cacheCheck["status"] = "disconnected"
			cacheCheck["error"] = err.Error()
			if code == http.StatusOK {
				status = "Degraded"
			}
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"service":   "EcoGarden",
		"version":   h.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.Started).Round(time.Second).String(),
		"checks": gin.H{
			"database": dbCheck,
			"cache":    cacheCheck,
		},
	})
}
