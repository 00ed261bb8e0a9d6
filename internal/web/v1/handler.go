package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/minhhle/authgate/internal/core/domain"
	logicv1 "github.com/minhhle/authgate/internal/logic/v1"
	"github.com/minhhle/authgate/middleware"
	"github.com/minhhle/authgate/pkg/logger"
)

// Handler groups HTTP handlers for the auth API v1.
// Dependencies are injected via the constructor — no global state.
type Handler struct {
	auth         *logicv1.AuthService
	cookieName   string
	cookieMaxAge int
}

// NewHandler creates a new Handler. cookieMaxAge is the session cookie
// lifetime in seconds, normally matching the session TTL.
func NewHandler(auth *logicv1.AuthService, cookieName string, cookieMaxAge int) *Handler {
	return &Handler{auth: auth, cookieName: cookieName, cookieMaxAge: cookieMaxAge}
}

// RegisterRoutes registers all auth API v1 routes on the given router group.
// Logout is accepted on GET as well for clients that navigate to it.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.Register)
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/logout", h.Logout)
	rg.GET("/auth/logout", h.Logout)
	rg.GET("/dashboard", h.RequireSession(), h.Dashboard)
}

// Register handles HTTP request for user registration.
func (h *Handler) Register(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		middleware.AuthOperations.WithLabelValues("register", "invalid_input").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	userID, err := h.auth.Register(ctx, req)
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, logicv1.ErrInvalidInput):
			middleware.AuthOperations.WithLabelValues("register", "invalid_input").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		case errors.Is(err, logicv1.ErrUserExists):
			middleware.AuthOperations.WithLabelValues("register", "conflict").Inc()
			c.JSON(http.StatusConflict, gin.H{"message": "Username already taken"})
		default:
			log.Error().Err(err).Msg("Registration failed")
			middleware.AuthOperations.WithLabelValues("register", "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}
		return
	}

	log.Info().Str("user_id", userID).Msg("Registration successful")
	middleware.AuthOperations.WithLabelValues("register", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Registration successful"})
}

// Login handles HTTP request for credential authentication. On success a
// session token is issued via cookie and echoed in the body for
// non-browser clients.
func (h *Handler) Login(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Same body as a failed match; a missing field must not be
		// distinguishable from wrong credentials.
		middleware.AuthOperations.WithLabelValues("login", "invalid_credentials").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
		return
	}

	result, err := h.auth.Login(ctx, req)
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, logicv1.ErrInvalidCredentials):
			middleware.AuthOperations.WithLabelValues("login", "invalid_credentials").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
		default:
			log.Error().Err(err).Msg("Login failed")
			middleware.AuthOperations.WithLabelValues("login", "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}
		return
	}

	h.setSessionCookie(c, result.Token, h.cookieMaxAge)

	log.Info().Str("user_id", result.User.ID).Msg("Login successful")
	middleware.AuthOperations.WithLabelValues("login", "success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   result.Token,
	})
}

// Logout revokes the presented session token and clears the cookie.
// A request without a live session still gets a success response.
func (h *Handler) Logout(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	token := h.sessionToken(c)
	if err := h.auth.DestroySession(ctx, token); err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("Logout failed")
		middleware.AuthOperations.WithLabelValues("logout", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Logout failed"})
		return
	}

	h.setSessionCookie(c, "", -1)

	middleware.AuthOperations.WithLabelValues("logout", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Dashboard is the session-gated resource. RequireSession has already
// resolved the user by the time this runs.
func (h *Handler) Dashboard(c *gin.Context) {
	user := CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Welcome to your dashboard!",
		"username": user.Username,
	})
}

// sessionToken pulls the session token from the cookie, falling back to
// an Authorization: Bearer header for API clients.
func (h *Handler) sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(h.cookieName); err == nil && token != "" {
		return token
	}

	const bearerPrefix = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return authHeader[len(bearerPrefix):]
	}

	return ""
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, maxAge, "/", "", false, true)
}
