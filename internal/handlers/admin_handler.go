package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/upwork-job-applier/internal/archive"
	"github.com/justsurfingit/upwork-job-applier/internal/dtos"
	"github.com/justsurfingit/upwork-job-applier/internal/notify"
	"github.com/justsurfingit/upwork-job-applier/internal/services"
)

// AdminHandler serves the /admin routes; AdminMiddleware guards all of them.
type AdminHandler struct {
	Users         *services.UserService
	Jobs          *services.JobService
	Prompts       *services.PromptService
	Notifications *notify.Store
	Archive       *archive.Writer
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.Users.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (h *AdminHandler) Promote(c *gin.Context) {
	h.setAdmin(c, true)
}

func (h *AdminHandler) Demote(c *gin.Context) {
	h.setAdmin(c, false)
}

func (h *AdminHandler) setAdmin(c *gin.Context, admin bool) {
	target := c.Param("id")
	if !admin && target == currentUser(c).UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrSelfAction.Error()})
		return
	}
	var (
		ok  bool
		err error
	)
	if admin {
		ok, err = h.Users.Promote(c.Request.Context(), target)
	} else {
		ok, err = h.Users.Demote(c.Request.Context(), target)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "is_admin": admin})
}

func (h *AdminHandler) ToggleStatus(c *gin.Context) {
	active, found, err := h.Users.ToggleUserStatus(c.Request.Context(), currentUser(c).UserID, c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "is_active": active})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	ok, err := h.Users.DeleteUserAdmin(c.Request.Context(), currentUser(c).UserID, c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) ListJobs(c *gin.Context) {
	jobs, err := h.Jobs.AllJobsAdmin(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (h *AdminHandler) SystemStats(c *gin.Context) {
	stats, err := h.Users.SystemStats(c.Request.Context(), h.Jobs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) ListPrompts(c *gin.Context) {
	prompts, err := h.Prompts.AllPrompts(c.Request.Context(), currentUser(c).UserID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": prompts})
}

func (h *AdminHandler) GetPrompt(c *gin.Context) {
	p, ok, err := h.Prompts.GetPrompt(c.Request.Context(), c.Param("type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		// nothing stored: show the built-in template instead
		body, err := services.DefaultPrompt(c.Param("type"))
		if err != nil || !services.IsManagedPromptType(c.Param("type")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"prompt_type": c.Param("type"), "prompt_content": body, "default": true})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *AdminHandler) UpsertPrompt(c *gin.Context) {
	var req dtos.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	p, err := h.Prompts.UpsertPrompt(c.Request.Context(), currentUser(c).UserID, c.Param("type"), req.PromptName, req.PromptContent)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *AdminHandler) DeletePrompt(c *gin.Context) {
	ok, err := h.Prompts.DeletePrompt(c.Request.Context(), currentUser(c).UserID, c.Param("type"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) InitPrompts(c *gin.Context) {
	if err := h.Prompts.InitializeDefaults(c.Request.Context(), currentUser(c).UserID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Default prompts initialized successfully"})
}

func (h *AdminHandler) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items := h.Notifications.List(limit)
	c.JSON(http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}

func (h *AdminHandler) ClearNotifications(c *gin.Context) {
	if err := h.Notifications.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Applications returns the global archive.
func (h *AdminHandler) Applications(c *gin.Context) {
	runs, err := archive.ReadFile(h.Archive.GlobalFile())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	records := archive.Records(runs)
	c.JSON(http.StatusOK, gin.H{"applications": records, "count": len(records)})
}
