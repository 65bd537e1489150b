package handler

import (
	"errors"
	"net/http"
	"strings"

	"kingk/internal/auth"
	"kingk/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const sessionKey = "session"

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	// Browsers cannot set headers on a WebSocket handshake.
	return strings.TrimSpace(c.Query("access_token"))
}

// RequireAuth verifies the bearer token and stores the session on the context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.auth == nil {
			unavailable(c, "auth")
			c.Abort()
			return
		}
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		session, err := h.auth.Verify(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			if !errors.Is(err, auth.ErrInvalidToken) {
				status = http.StatusServiceUnavailable
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *domain.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*domain.Session)
	return s
}

func userID(c *gin.Context) string {
	if s := sessionFrom(c); s != nil {
		return s.UserID
	}
	return ""
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// SignUp godoc
// @Summary      Create an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  credentials  true  "Email and password"
// @Success      201  {object}  domain.Session
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/auth/signup [post]
func (h *Handler) SignUp(c *gin.Context) {
	if h.auth == nil {
		unavailable(c, "auth")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.sign-up")
	defer span.End()

	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	session, err := h.auth.SignUp(ctx, body.Email, body.Password)
	if err != nil {
		c.JSON(authStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, session)
}

// SignIn godoc
// @Summary      Sign in with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  credentials  true  "Email and password"
// @Success      200  {object}  domain.Session
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/signin [post]
func (h *Handler) SignIn(c *gin.Context) {
	if h.auth == nil {
		unavailable(c, "auth")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.sign-in")
	defer span.End()

	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	session, err := h.auth.SignIn(ctx, body.Email, body.Password)
	if err != nil {
		c.JSON(authStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// SignOut godoc
// @Summary      Revoke the current session
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Router       /api/auth/signout [post]
func (h *Handler) SignOut(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.sign-out")
	defer span.End()

	session := sessionFrom(c)
	if err := h.auth.SignOut(ctx, session.AccessToken); err != nil {
		c.JSON(authStatus(err), gin.H{"error": err.Error()})
		return
	}
	if h.chats != nil {
		h.chats.Forget(session.UserID)
	}
	c.Status(http.StatusNoContent)
}

// Refresh godoc
// @Summary      Exchange the current token for a fresh one
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  domain.Session
// @Router       /api/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.refresh")
	defer span.End()

	session, err := h.auth.Refresh(ctx, sessionFrom(c).AccessToken)
	if err != nil {
		c.JSON(authStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetProfile godoc
// @Summary      Current user and scan count
// @Tags         profile
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-profile")
	defer span.End()

	id := userID(c)
	span.SetAttributes(attribute.String("user.id", id))
	user, err := h.auth.User(ctx, id)
	if err != nil {
		c.JSON(authStatus(err), gin.H{"error": err.Error()})
		return
	}
	scans := 0
	if h.analyses != nil {
		if scans, err = h.analyses.Stats(ctx, id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":             user.ID,
		"email":          user.Email,
		"scans":          scans,
		"telegramLinked": user.TelegramChatID != nil,
		"memberSince":    user.CreatedAt,
	})
}

// CreateLinkCode godoc
// @Summary      Issue a Telegram link code
// @Tags         profile
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  map[string]string
// @Router       /api/profile/link-code [post]
func (h *Handler) CreateLinkCode(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-link-code")
	defer span.End()

	code, err := h.auth.IssueLinkCode(ctx, userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code, "usage": "/link " + code})
}
