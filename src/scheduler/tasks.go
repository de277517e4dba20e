package scheduler

import (
	"fmt"
	"time"
)

// Task names
const (
	TaskRotateLogs         = "rotate-logs"
	TaskPurgeForecastCache = "purge-forecast-cache"
)

// ForecastCachePurgeInterval is how often expired forecasts are evicted
const ForecastCachePurgeInterval = 10 * time.Minute

// LogRotator archives and truncates log files
type LogRotator interface {
	RotateLogs() error
}

// CachePurger evicts expired entries and reports how many remain
type CachePurger interface {
	Purge() int
}

// RegisterDefaultTasks adds log rotation on rotateSchedule and the
// periodic forecast cache purge
func RegisterDefaultTasks(s *Scheduler, logs LogRotator, cache CachePurger, rotateSchedule string) error {
	if rotateSchedule == "" {
		rotateSchedule = "0 0 * * *"
	}

	if err := s.AddTask(TaskRotateLogs, rotateSchedule, logs.RotateLogs); err != nil {
		return err
	}

	return s.AddTaskInterval(TaskPurgeForecastCache, ForecastCachePurgeInterval, func() error {
		if cache == nil {
			return fmt.Errorf("no forecast cache configured")
		}
		remaining := cache.Purge()
		s.logger.Debug("Forecast cache purged, %d entries remain", remaining)
		return nil
	})
}
