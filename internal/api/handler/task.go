package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/adnreport/internal/api/middleware"
	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/logger"
	"github.com/timmy/adnreport/internal/service"
	"gorm.io/gorm"
)

// TaskReader loads report tasks.
type TaskReader interface {
	GetByID(ctx context.Context, id int64) (*domain.ReportTask, error)
}

// TaskExecutor claims and runs a loaded task.
type TaskExecutor interface {
	ClaimTask(ctx context.Context, task *domain.ReportTask) error
	RunClaimed(ctx context.Context, task *domain.ReportTask) *service.TaskOutcome
}

// TaskHandler handles report task endpoints.
type TaskHandler struct {
	tasks  TaskReader
	runner TaskExecutor
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(tasks TaskReader, runner TaskExecutor) *TaskHandler {
	return &TaskHandler{tasks: tasks, runner: runner}
}

type taskResponse struct {
	*domain.ReportTask
	StatusName string `json:"status_name"`
}

// GetTask handles GET /api/v1/tasks/:id.
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := h.loadTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, taskResponse{ReportTask: task, StatusName: task.Status.String()})
}

// RunTask handles POST /api/v1/tasks/:id/run. The task is claimed before
// the response is written and then runs in the background.
func (h *TaskHandler) RunTask(c *gin.Context) {
	task, ok := h.loadTask(c)
	if !ok {
		return
	}

	err := h.runner.ClaimTask(c.Request.Context(), task)
	switch {
	case errors.Is(err, service.ErrTaskRunning):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Task is already running",
		})
		return
	case err != nil && domain.KindOf(err) == domain.KindInputInvalid:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Task has no app id",
		})
		return
	case err != nil:
		middleware.GetLogger(c).WithError(err).Error("Failed to claim task")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to claim task",
		})
		return
	}

	// Detach from the request so the run outlives the response.
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		outcome := h.runner.RunClaimed(ctx, task)
		logger.CtxInfo(ctx, "Manual task run finished: status=%s", outcome.Status)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"id":     task.ID,
		"status": "accepted",
	})
}

func (h *TaskHandler) loadTask(c *gin.Context) (*domain.ReportTask, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid task ID",
		})
		return nil, false
	}

	task, err := h.tasks.GetByID(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Task not found",
		})
		return nil, false
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to load task")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load task",
		})
		return nil, false
	}
	return task, true
}
