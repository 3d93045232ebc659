package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/traffic-backend-go/internal/maintenance"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/pkg/response"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

// MaintenanceHandler handles HTTP requests for maintenance runs
type MaintenanceHandler struct {
	store     *repository.Store
	scheduler *maintenance.Scheduler
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(store *repository.Store, scheduler *maintenance.Scheduler) *MaintenanceHandler {
	return &MaintenanceHandler{store: store, scheduler: scheduler}
}

// RunResult is the outcome of a manual run
type RunResult struct {
	Task     string `json:"task"`
	Affected int    `json:"affected"`
}

// ListRuns handles GET /api/v1/maintenance/runs?task=&limit=
func (h *MaintenanceHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRunsLimit)))
	if err != nil || limit <= 0 {
		response.BadRequest(c, "Invalid limit parameter")
		return
	}
	limit = min(limit, maxRunsLimit)

	runs, err := h.store.Runs.ListRecent(c.Request.Context(), c.Query("task"), limit)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, runs)
}

// RunTask handles POST /api/v1/maintenance/:task/run
func (h *MaintenanceHandler) RunTask(c *gin.Context) {
	if h.scheduler == nil {
		response.InternalError(c, "Scheduler not running")
		return
	}

	task := c.Param("task")
	slog.Info("manual maintenance run", "task", task, "operator", operatorName(c))

	affected, err := h.scheduler.RunNow(c.Request.Context(), task)
	if errors.Is(err, maintenance.ErrUnknownTask) {
		response.NotFound(c, "Unknown task: "+task)
		return
	}
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, RunResult{Task: task, Affected: affected})
}
