package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/minhhle/authgate/internal/core/domain"
	logicv1 "github.com/minhhle/authgate/internal/logic/v1"
	"github.com/minhhle/authgate/middleware"
	"github.com/minhhle/authgate/pkg/logger"
)

// contextUserKey is where RequireSession stashes the resolved user for
// downstream handlers.
const contextUserKey = "auth.user"

// RequireSession validates the presented session token before the gated
// handler runs. Missing, unknown, and expired tokens all produce the same
// 401 body, and the gated handler never executes on failure.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := middleware.StartSpan(c.Request.Context(), "http.require_session", trace.WithAttributes(
			attribute.String("layer", "web"),
			attribute.String("path", c.Request.URL.Path),
		))
		defer span.End()

		log := logger.FromContext(ctx)

		token := h.sessionToken(c)
		user, err := h.auth.ValidateSession(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, logicv1.ErrUnauthenticated):
				span.SetAttributes(attribute.Bool("session.valid", false))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			default:
				span.RecordError(err)
				log.Error().Err(err).Msg("Session validation failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			}
			return
		}

		span.SetAttributes(attribute.String("user.id", user.ID))
		c.Set(contextUserKey, user)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CurrentUser returns the user resolved by RequireSession. Only valid on
// routes behind that middleware.
func CurrentUser(c *gin.Context) *domain.User {
	user, _ := c.Get(contextUserKey)
	u, ok := user.(*domain.User)
	if !ok {
		return &domain.User{}
	}
	return u
}
