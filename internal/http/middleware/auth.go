package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/models"
)

const actorKey = "actor"

type ActorResolver interface {
	ResolveActor(ctx context.Context, token string) (models.Actor, error)
}

// Authenticate resolves the bearer token into an actor for the handlers.
func Authenticate(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			AbortWithError(c, errors.NewAuthenticationError("missing bearer token"))
			return
		}

		actor, err := resolver.ResolveActor(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			AbortWithError(c, errors.NewAuthenticationError("no authenticated actor"))
			return
		}
		if !actor.IsAdmin() {
			AbortWithError(c, errors.NewForbiddenError("admin role required"))
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
