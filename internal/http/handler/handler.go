// Package handler adapts the service layer to gin.
package handler

import (
	"github.com/gin-gonic/gin"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/http/middleware"
	"visa-portal/internal/models"
)

// actor is set by middleware.Authenticate on every route these handlers
// serve; the zero value only shows up when a route is wired without it.
func actor(c *gin.Context) models.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}

// bindPayload decodes a JSON object body. Field-level checks are left to the
// service, which validates against the JSON schema.
func bindPayload(c *gin.Context) (map[string]interface{}, bool) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		middleware.AbortWithError(c, errors.NewApplicationValidationFailedError("request body must be a JSON object"))
		return nil, false
	}
	return payload, true
}
