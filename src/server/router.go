// Package server assembles the HTTP API
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apimgr/ecogarden/src/config"
	"github.com/apimgr/ecogarden/src/database"
	"github.com/apimgr/ecogarden/src/scheduler"
	"github.com/apimgr/ecogarden/src/server/handler"
	"github.com/apimgr/ecogarden/src/server/middleware"
	models "github.com/apimgr/ecogarden/src/server/model"
	services "github.com/apimgr/ecogarden/src/server/service"
	"github.com/apimgr/ecogarden/src/swagger"
	"github.com/apimgr/ecogarden/src/utils"
)

// Deps are the collaborators the router wires into handlers
type Deps struct {
	Config  *config.AppConfig
	Logger  *utils.Logger
	DB      *database.DB
	Auth    *services.AuthService
	Weather handler.ForecastSource
	Cache   *services.ForecastCache
	Version string

	// Scheduler is optional; without it the admin task routes are absent
	Scheduler *scheduler.Scheduler
}

// NewRouter builds the Gin engine with middleware and every route
func NewRouter(d Deps) *gin.Engine {
	handler.RegisterValidators()

	r := gin.New()

	// Trust reverse proxy headers
	if err := r.SetTrustedProxies(d.Config.Server.TrustedProxies); err != nil {
		d.Logger.Warn("Invalid trusted proxies, trusting none: %v", err)
		_ = r.SetTrustedProxies(nil)
	}

	// Recovery first so a panic anywhere below still yields a 500
	r.Use(gin.Recovery())

	// Request ID middleware - for request tracing in logs
	r.Use(middleware.RequestID())

	// Access logging middleware (writes to log files)
	r.Use(middleware.AccessLogger(d.Logger))

	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodySizeLimitMiddleware(middleware.DefaultMaxBodySize))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderXRequestID},
		AllowCredentials: false,
		MaxAge:           24 * time.Hour,
	}))

	// Global rate limiting, per client IP
	r.Use(middleware.RateLimit(d.Config.RateLimit.GlobalRPS, time.Second))

	users := &models.UserModel{DB: d.DB}
	advices := &models.AdviceModel{DB: d.DB}

	authHandler := handler.NewAuthHandler(d.Auth, d.Logger)
	userHandler := handler.NewUserHandler(users, d.Logger)
	adviceHandler := handler.NewAdviceHandler(advices, d.Logger)
	weatherHandler := handler.NewWeatherHandler(d.Weather)
	healthHandler := handler.NewHealthHandler(d.DB, d.Cache, d.Version)

	r.GET("/healthz", healthHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	swagger.RegisterRoutes(r)

	requireAuth := middleware.RequireAuth(d.Auth)
	requireAdmin := middleware.RequireAdmin()

	api := r.Group("/api")
	{
		api.POST("/auth",
			middleware.RateLimit(d.Config.RateLimit.AuthRequests, d.Config.RateLimit.AuthWindow),
			authHandler.Login)

		api.POST("/user", userHandler.Create)
		api.PUT("/user/:id", requireAuth, requireAdmin, userHandler.Update)
		api.DELETE("/user/:id", requireAuth, requireAdmin, userHandler.Delete)

		api.GET("/conseil", requireAuth, adviceHandler.ListCurrentMonth)
		api.GET("/conseil/:month", requireAuth, adviceHandler.ListByMonth)
		api.POST("/conseil", requireAuth, requireAdmin, adviceHandler.Create)
		api.PUT("/conseil/:id", requireAuth, requireAdmin, adviceHandler.Update)
		api.DELETE("/conseil/:id", requireAuth, requireAdmin, adviceHandler.Delete)

		api.GET("/meteo", requireAuth, weatherHandler.ForUser)
		api.GET("/meteo/:city", requireAuth, weatherHandler.ForCity)
	}

	if d.Scheduler != nil {
		schedulerHandler := handler.NewSchedulerHandler(d.Scheduler, d.Logger)
		adminAPI := api.Group("/admin", requireAuth, requireAdmin)
		{
			adminAPI.GET("/tasks", schedulerHandler.ListTasks)
			adminAPI.POST("/tasks/:name/trigger", schedulerHandler.TriggerTask)
			adminAPI.POST("/tasks/:name/enable", schedulerHandler.EnableTask)
			adminAPI.POST("/tasks/:name/disable", schedulerHandler.DisableTask)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		handler.NotFound(c, "Route not found")
	})

	return r
}
