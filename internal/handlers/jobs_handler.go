package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/seawatch/internal/errors"
	"github.com/stwalsh4118/seawatch/internal/middleware"
	"github.com/stwalsh4118/seawatch/internal/scheduler"
)

// JobRunner is the part of the scheduler the jobs endpoints drive.
type JobRunner interface {
	Trigger(name string) error
	Status() []scheduler.JobStatus
}

// JobsHandler exposes the pipeline jobs over HTTP.
type JobsHandler struct {
	runner JobRunner
}

// NewJobsHandler creates a new JobsHandler instance.
func NewJobsHandler(runner JobRunner) *JobsHandler {
	return &JobsHandler{runner: runner}
}

// JobsResponse lists every registered job.
type JobsResponse struct {
	Jobs  []scheduler.JobStatus `json:"jobs"`
	Count int                   `json:"count"`
}

// TriggerResponse acknowledges a queued job run.
type TriggerResponse struct {
	Job    string `json:"job"`
	Status string `json:"status"`
}

// List handles GET /api/v1/jobs.
func (h *JobsHandler) List(c *gin.Context) {
	jobs := h.runner.Status()
	c.JSON(http.StatusOK, JobsResponse{
		Jobs:  jobs,
		Count: len(jobs),
	})
}

// Trigger handles POST /api/v1/jobs/:name.
// The run happens asynchronously in the job's own loop, so the response is
// 202 Accepted.
func (h *JobsHandler) Trigger(c *gin.Context) {
	name := c.Param("name")

	if err := h.runner.Trigger(name); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownJob):
			apierrors.NotFound(c, "Unknown job: "+name)
		case errors.Is(err, scheduler.ErrJobRunning):
			apierrors.Conflict(c, "Job "+name+" is already running")
		default:
			apierrors.InternalServerError(c, "Failed to trigger job", err)
		}
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Job triggered", map[string]interface{}{"job": name})
	}

	c.JSON(http.StatusAccepted, TriggerResponse{
		Job:    name,
		Status: "queued",
	})
}
