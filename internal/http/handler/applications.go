package handler

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/http/middleware"
	"visa-portal/internal/service"
)

const SizeAnalysisHeader = "X-Letter-Size-Analysis"

type ApplicationHandler struct {
	svc    service.ApplicationService
	logger logger.Logger
}

func NewApplicationHandler(svc service.ApplicationService, log logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, logger: log}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ApplicationHandler) Submit(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	app, err := h.svc.Submit(c.Request.Context(), actor(c), payload)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.svc.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) ListMine(c *gin.Context) {
	apps, err := h.svc.ListMine(c.Request.Context(), actor(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps, "count": len(apps)})
}

func (h *ApplicationHandler) Patch(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	app, err := h.svc.Patch(c.Request.Context(), actor(c), c.Param("id"), payload)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewApplicationValidationFailedError("body must be {\"status\": \"...\"}"))
		return
	}
	app, err := h.svc.SetStatus(c.Request.Context(), actor(c), c.Param("id"), req.Status)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Letter streams the rendered PDF and removes it afterwards, whatever the
// outcome of the transfer.
func (h *ApplicationHandler) Letter(c *gin.Context) {
	res, err := h.svc.Letter(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	defer func() {
		if err := os.Remove(res.Path); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("could not remove letter", map[string]interface{}{"path": res.Path, "error": err.Error()})
		}
	}()

	if analysis, err := json.Marshal(res.SizeAnalysis); err == nil {
		c.Header(SizeAnalysisHeader, string(analysis))
	}
	c.Header("Cache-Control", "no-store")
	c.FileAttachment(res.Path, res.Filename)
}
