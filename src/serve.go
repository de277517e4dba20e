package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/apimgr/ecogarden/src/config"
	"github.com/apimgr/ecogarden/src/database"
	"github.com/apimgr/ecogarden/src/scheduler"
	"github.com/apimgr/ecogarden/src/server"
	"github.com/apimgr/ecogarden/src/server/metrics"
	models "github.com/apimgr/ecogarden/src/server/model"
	services "github.com/apimgr/ecogarden/src/server/service"
	"github.com/apimgr/ecogarden/src/tracing"
	"github.com/apimgr/ecogarden/src/utils"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests
const shutdownTimeout = 5 * time.Second

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	mode := cfg.Mode()
	gin.SetMode(mode.GinMode())

	appLogger, err := utils.NewLogger(cfg.Log.Dir, cfg.Server.Debug || mode == config.ModeDevelopment)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	metrics.Init(Version, CommitID, BuildDate)

	// Spans and W3C propagation are always on; export only when enabled
	zipkinURL := ""
	tracingState := "propagation only"
	if cfg.Tracing.Enabled {
		zipkinURL = cfg.Tracing.ZipkinURL
		tracingState = "zipkin " + zipkinURL
	}
	shutdownTracing, err := tracing.Setup(cfg.Tracing.ServiceName, zipkinURL)
	if err != nil {
		return err
	}

	ctx := c.Context
	db, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	forecastCache := services.NewForecastCache(cfg.Weather.CacheTTL, cfg.Cache.RedisURL)
	weatherClient := services.NewWeatherClient(cfg.Weather, forecastCache)
	auth := &services.AuthService{
		Users:  &models.UserModel{DB: db},
		Tokens: services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer),
	}

	taskScheduler := scheduler.NewScheduler(appLogger)
	if err := scheduler.RegisterDefaultTasks(taskScheduler, appLogger, forecastCache, cfg.Log.RotateSchedule); err != nil {
		return err
	}

	router := server.NewRouter(server.Deps{
		Config:    cfg,
		Logger:    appLogger,
		DB:        db,
		Auth:      auth,
		Weather:   weatherClient,
		Cache:     forecastCache,
		Scheduler: taskScheduler,
		Version:   Version,
	})

	taskScheduler.Start()

	// Live reload of the provider settings when server.yml changes
	var configWatcher *services.ConfigWatcher
	if cfg.Source != "" {
		configWatcher, err = services.NewConfigWatcher(cfg.Source, func(newCfg *config.AppConfig) error {
			if err := newCfg.Validate(); err != nil {
				return err
			}
			weatherClient.Reconfigure(newCfg.Weather)
			appLogger.Info("Configuration reloaded from %s", newCfg.Source)
			return nil
		})
		if err != nil {
			appLogger.Warn("Config watcher disabled: %v", err)
		} else if err := configWatcher.Start(); err != nil {
			appLogger.Warn("Failed to start config watcher: %v", err)
			configWatcher = nil
		}
	}

	srv := &http.Server{
		Addr:           cfg.ListenAddr(),
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	utils.DisplayBanner(utils.BannerInfo{
		Version:  Version,
		Mode:     mode.String(),
		Address:  cfg.ListenAddr(),
		Database: string(db.Dialect),
		Cache:    forecastCache.Backend(),
		Tracing:  tracingState,
	})
	appLogger.Info("EcoGarden %s listening on %s (%s mode)", Version, cfg.ListenAddr(), mode)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, append([]os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT}, platformSignals...)...)
	defer signal.Stop(sigChan)

	var runErr error
wait:
	for {
		select {
		case err, ok := <-serveErr:
			if ok {
				runErr = fmt.Errorf("server failed: %w", err)
			}
			break wait
		case sig := <-sigChan:
			if handlePlatformSignal(sig, appLogger) {
				continue
			}
			appLogger.Info("Received %v, shutting down gracefully", sig)
			break wait
		}
	}

	taskScheduler.Stop()

	if configWatcher != nil {
		if err := configWatcher.Stop(); err != nil {
			appLogger.Warn("Config watcher shutdown error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown: %v", err)
	}
	if err := forecastCache.Close(); err != nil {
		appLogger.Warn("Cache shutdown error: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLogger.Warn("Tracing shutdown error: %v", err)
	}

	appLogger.Info("Server exited gracefully")
	return runErr
}

// toggleDebug flips debug output in both the logger and gin and returns
// the new state
func toggleDebug(appLogger *utils.Logger) (bool, error) {
	on := !appLogger.IsDebug()
	if err := appLogger.SetDebug(on); err != nil {
		return !on, err
	}
	if on {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return on, nil
}
