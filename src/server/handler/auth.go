package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	services "github.com/apimgr/ecogarden/src/server/service"
	"github.com/apimgr/ecogarden/src/utils"
)

// AuthHandler exchanges credentials for a JWT
type AuthHandler struct {
	Auth   *services.AuthService
	Logger *utils.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Logger: logger}
}

// LoginRequest is the body of POST /api/auth. The username is the email.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth
// @Summary Obtain a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Email and password"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/auth [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	token, _, err := h.Auth.Login(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			if h.Logger != nil {
				h.Logger.Warn("Failed login for %q from %s", req.Username, c.ClientIP())
			}
			Unauthorized(c, "Invalid credentials.")
			return
		}
		InternalError(c, "Authentication failed", err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}
