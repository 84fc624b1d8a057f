package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/upwork-job-applier/internal/archive"
	"github.com/justsurfingit/upwork-job-applier/internal/runlock"
	"github.com/justsurfingit/upwork-job-applier/internal/services"
	"go.uber.org/zap"
)

// PipelineHandler starts processing runs. Runs for the same user are
// serialized through Locker.
type PipelineHandler struct {
	Pipeline *services.Pipeline
	Locker   runlock.Locker
	Archive  *archive.Writer
	Log      *zap.Logger
}

func NewPipelineHandler(p *services.Pipeline, l runlock.Locker, a *archive.Writer, log *zap.Logger) *PipelineHandler {
	return &PipelineHandler{Pipeline: p, Locker: l, Archive: a, Log: log}
}

// Process is the POST /process endpoint
func (h *PipelineHandler) Process(c *gin.Context) {
	owner := currentUser(c).UserID
	release, ok := h.lock(c, owner)
	if !ok {
		return
	}
	defer release()

	result := h.Pipeline.ProcessUserJobs(c.Request.Context(), owner)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// Regenerate is the POST /jobs/:id/regenerate endpoint
func (h *PipelineHandler) Regenerate(c *gin.Context) {
	owner := currentUser(c).UserID
	release, ok := h.lock(c, owner)
	if !ok {
		return
	}
	defer release()

	result := h.Pipeline.RegenerateJob(c.Request.Context(), owner, c.Param("id"))
	status := http.StatusOK
	switch {
	case result.Message == "Job not found":
		status = http.StatusNotFound
	case !result.Success:
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// Applications returns the caller's archived applications, newest run first.
func (h *PipelineHandler) Applications(c *gin.Context) {
	runs, err := archive.ReadFile(h.Archive.UserFile(currentUser(c).UserID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	records := archive.Records(runs)
	c.JSON(http.StatusOK, gin.H{"applications": records, "count": len(records)})
}

func (h *PipelineHandler) lock(c *gin.Context, owner string) (func(), bool) {
	release, err := h.Locker.Acquire(c.Request.Context(), owner)
	if errors.Is(err, runlock.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return nil, false
	}
	if err != nil {
		h.Log.Error("❌ run lock unavailable", zap.String("user_id", owner), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not start processing, try again later"})
		return nil, false
	}
	return release, true
}
