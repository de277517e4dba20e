package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/ecogarden/src/scheduler"
	"github.com/apimgr/ecogarden/src/utils"
)

// SchedulerHandler exposes the maintenance tasks to administrators
type SchedulerHandler struct {
	Scheduler *scheduler.Scheduler
	Logger    *utils.Logger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(s *scheduler.Scheduler, logger *utils.Logger) *SchedulerHandler {
	return &SchedulerHandler{Scheduler: s, Logger: logger}
}

// ListTasks handles GET /api/admin/tasks
// @Summary List maintenance tasks
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} ErrorResponse
// @Router /api/admin/tasks [get]
func (h *SchedulerHandler) ListTasks(c *gin.Context) {
	tasks := h.Scheduler.GetTaskStatus()
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// TriggerTask handles POST /api/admin/tasks/{name}/trigger. The task runs
// in the background; its outcome shows up in the task list.
// @Summary Run a maintenance task now
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param name path string true "Task name"
// @Success 202 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /api/admin/tasks/{name}/trigger [post]
func (h *SchedulerHandler) TriggerTask(c *gin.Context) {
	name := c.Param("name")
	err := h.Scheduler.TriggerTask(name)
	if h.taskError(c, name, "task.trigger", err) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task": name, "status": "triggered"})
}

// EnableTask handles POST /api/admin/tasks/{name}/enable
// @Summary Enable a maintenance task
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param name path string true "Task name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /api/admin/tasks/{name}/enable [post]
func (h *SchedulerHandler) EnableTask(c *gin.Context) {
	name := c.Param("name")
	err := h.Scheduler.EnableTask(name)
	if h.taskError(c, name, "task.enable", err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": name, "enabled": true})
}

// DisableTask handles POST /api/admin/tasks/{name}/disable
// @Summary Disable a maintenance task
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param name path string true "Task name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /api/admin/tasks/{name}/disable [post]
func (h *SchedulerHandler) DisableTask(c *gin.Context) {
	name := c.Param("name")
	err := h.Scheduler.DisableTask(name)
	if h.taskError(c, name, "task.disable", err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": name, "enabled": false})
}

// taskError answers a failed task operation and audits every attempt.
// It reports whether a response was written.
func (h *SchedulerHandler) taskError(c *gin.Context, name, action string, err error) bool {
	audit(c, h.Logger, action, fmt.Sprintf("task:%s", name), err)
	if err == nil {
		return false
	}
	if errors.Is(err, scheduler.ErrTaskNotFound) {
		NotFound(c, "Task not found")
		return true
	}
	InternalError(c, "Task operation failed", err)
	return true
}
