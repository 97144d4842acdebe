package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/odoosync/internal/infrastructure/scheduler"
	"github.com/erp/odoosync/internal/interfaces/http/dto"
	"github.com/erp/odoosync/internal/interfaces/http/middleware"
)

// ReadinessCheck probes one dependency
type ReadinessCheck func(ctx context.Context) error

// JobRunner exposes the background scheduler
type JobRunner interface {
	Jobs() []string
	History(limit int) []scheduler.JobRun
	RunNow(ctx context.Context, name string) (*scheduler.JobRun, error)
}

// SystemHandler serves health probes and scheduler controls
type SystemHandler struct {
	BaseHandler
	name       string
	version    string
	startTime  time.Time
	checks     map[string]ReadinessCheck
	jobs       JobRunner
	adminRoles []string
}

// NewSystemHandler creates a SystemHandler. jobs may be nil when the
// scheduler is disabled.
func NewSystemHandler(name, version string, checks map[string]ReadinessCheck, jobs JobRunner, adminRoles ...string) *SystemHandler {
	return &SystemHandler{
		name:       name,
		version:    version,
		startTime:  time.Now(),
		checks:     checks,
		jobs:       jobs,
		adminRoles: adminRoles,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// ReadinessResponse reports every dependency check
type ReadinessResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// JobsResponse lists registered jobs and recent runs
type JobsResponse struct {
	Jobs    []string           `json:"jobs"`
	History []scheduler.JobRun `json:"history"`
}

// Health is the liveness probe
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready runs every readiness check and answers 503 when one fails
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Ready = false
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: resp.Ready, Data: resp})
}

// Jobs lists the scheduler jobs and their recent runs
func (h *SystemHandler) Jobs(c *gin.Context) {
	h.Success(c, JobsResponse{Jobs: h.jobs.Jobs(), History: h.jobs.History(20)})
}

// RunJob runs a scheduler job immediately
func (h *SystemHandler) RunJob(c *gin.Context) {
	run, err := h.jobs.RunNow(c.Request.Context(), c.Param("name"))
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.ErrorWithCode(c, dto.ErrCodeNotFound, "Unknown job")
	case errors.Is(err, scheduler.ErrJobAlreadyRunning):
		h.ErrorWithCode(c, dto.ErrCodeConflict, "Job is already running")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.ErrorWithCode(c, dto.ErrCodeConflict, "Scheduler is not running")
	case run != nil:
		// A failed run is reported through its status
		h.Success(c, run)
	default:
		h.HandleError(c, err)
	}
}

// RegisterProbes mounts the probes outside the versioned API
func (h *SystemHandler) RegisterProbes(engine *gin.Engine) {
	engine.GET("/health", h.Health)
	engine.GET("/ready", h.Ready)
}

// RegisterRoutes mounts the scheduler routes on rg
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	if h.jobs == nil {
		return
	}
	system := rg.Group("/system")
	if len(h.adminRoles) > 0 {
		system.Use(middleware.RequireRole(h.adminRoles...))
	}
	system.GET("/jobs", h.Jobs)
	system.POST("/jobs/:name/run", h.RunJob)
}
