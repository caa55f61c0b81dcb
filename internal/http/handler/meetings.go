package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/http/middleware"
	"visa-portal/internal/service"
)

type MeetingHandler struct {
	svc service.MeetingService
}

func NewMeetingHandler(svc service.MeetingService) *MeetingHandler {
	return &MeetingHandler{svc: svc}
}

func (h *MeetingHandler) Create(c *gin.Context) {
	var in service.MeetingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.AbortWithError(c, errors.NewApplicationValidationFailedError("invalid meeting body"))
		return
	}
	m, err := h.svc.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// List shows active meetings; admins may pass ?all=true.
func (h *MeetingHandler) List(c *gin.Context) {
	meetings, err := h.svc.List(c.Request.Context(), actor(c), c.Query("all") != "true")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": meetings})
}
