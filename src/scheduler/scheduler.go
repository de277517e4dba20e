// Package scheduler runs periodic maintenance tasks
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/apimgr/ecogarden/src/server/metrics"
	"github.com/apimgr/ecogarden/src/utils"
)

// ErrTaskNotFound is returned for operations on an unregistered task name
var ErrTaskNotFound = errors.New("task not found")

// Task represents a scheduled task
type Task struct {
	Name     string
	Schedule string // Cron expression: "0 0 * * *", "@hourly", "@every 10m"
	Fn       func() error
	entryID  cron.EntryID
	// Can be toggled on/off
	enabled bool
	lastRun *time.Time
	lastErr error
	runs    int
	mu      sync.Mutex
}

// TaskStatus is a snapshot of one task
type TaskStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Enabled   bool       `json:"enabled"`
	Runs      int        `json:"runs"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	NextRun   time.Time  `json:"nextRun"`
}

// Scheduler manages scheduled tasks using robfig/cron
type Scheduler struct {
	cron   *cron.Cron
	tasks  map[string]*Task
	logger *utils.Logger
	mu     sync.RWMutex
}

// NewScheduler creates a new scheduler instance with robfig/cron
func NewScheduler(logger *utils.Logger) *Scheduler {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}

	// Standard five-field cron plus descriptors ("@hourly", "@every 5m")
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	return &Scheduler{
		cron:   c,
		tasks:  make(map[string]*Task),
		logger: logger,
	}
}

// AddTask adds a new task to the scheduler with a cron schedule
func (s *Scheduler) AddTask(name string, schedule string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task '%s' already registered", name)
	}

	task := &Task{
		Name:     name,
		Schedule: schedule,
		Fn:       fn,
		enabled:  true,
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.executeTask(task)
	})
	if err != nil {
		return fmt.Errorf("failed to add task '%s' with schedule '%s': %w", name, schedule, err)
	}

	task.entryID = entryID
	s.tasks[name] = task

	return nil
}

// AddTaskInterval adds a task with a time.Duration interval
// Converts to @every format for robfig/cron
func (s *Scheduler) AddTaskInterval(name string, interval time.Duration, fn func() error) error {
	return s.AddTask(name, fmt.Sprintf("@every %s", interval.String()), fn)
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.cron.Start()
	s.logger.Info("Scheduler started (%d tasks)", len(s.tasks))
}

// Stop stops the cron scheduler and waits for running tasks
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// executeTask runs a task, recording its outcome. A panicking task is
// reported as failed and does not take the scheduler down.
func (s *Scheduler) executeTask(task *Task) error {
	task.mu.Lock()
	if !task.enabled {
		task.mu.Unlock()
		return nil
	}
	task.mu.Unlock()

	start := time.Now()
	err := runSafely(task.Fn)
	end := time.Now()
	elapsed := end.Sub(start)

	task.mu.Lock()
	task.lastRun = &end
	task.lastErr = err
	task.runs++
	task.mu.Unlock()

	if err != nil {
		metrics.RecordSchedulerTask(task.Name, "error", elapsed)
		s.logger.Error("Task '%s' failed after %v: %v", task.Name, elapsed, err)
	} else {
		metrics.RecordSchedulerTask(task.Name, "success", elapsed)
		s.logger.Debug("Task '%s' completed in %v", task.Name, elapsed)
	}

	s.logger.Audit(utils.AuditEntry{
		Actor:    "scheduler",
		Action:   "task.run",
		Resource: "task:" + task.Name,
		Success:  err == nil,
		Error:    errString(err),
	})

	return err
}

func runSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetTaskStatus returns status of all tasks, sorted by name
func (s *Scheduler) GetTaskStatus() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		task.mu.Lock()
		st := TaskStatus{
			Name:      task.Name,
			Schedule:  task.Schedule,
			Enabled:   task.enabled,
			Runs:      task.runs,
			LastRun:   task.lastRun,
			LastError: errString(task.lastErr),
		}
		task.mu.Unlock()

		if entry := s.cron.Entry(task.entryID); entry.ID != 0 {
			st.NextRun = entry.Next
		}
		status = append(status, st)
	}

	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}

// EnableTask enables a task by name
func (s *Scheduler) EnableTask(taskName string) error {
	return s.setEnabled(taskName, true)
}

// DisableTask disables a task by name
func (s *Scheduler) DisableTask(taskName string) error {
	return s.setEnabled(taskName, false)
}

func (s *Scheduler) setEnabled(taskName string, enabled bool) error {
	task := s.GetTask(taskName)
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskName)
	}

	task.mu.Lock()
	task.enabled = enabled
	task.mu.Unlock()
	return nil
}

// RunTask runs a task now, in the calling goroutine, and returns its error
func (s *Scheduler) RunTask(taskName string) error {
	task := s.GetTask(taskName)
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskName)
	}
	return s.executeTask(task)
}

// TriggerTask manually triggers a task to run immediately in the background
func (s *Scheduler) TriggerTask(taskName string) error {
	task := s.GetTask(taskName)
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskName)
	}

	s.logger.Info("Manually triggering task '%s'", taskName)
	go s.executeTask(task)
	return nil
}

// GetTask returns a task by name
func (s *Scheduler) GetTask(taskName string) *Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tasks[taskName]
}
