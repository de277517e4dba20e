package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	models "github.com/apimgr/ecogarden/src/server/model"
	services "github.com/apimgr/ecogarden/src/server/service"
)

// UserContextKey is where the authenticated user is stored on the context
const UserContextKey = "user"

// abortWithError writes the API error body and stops the chain
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":  message,
		"code":   code,
		"status": status,
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth rejects requests without a valid bearer token and stores
// the token's user on the context
func RequireAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "JWT Token not found")
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, services.ErrTokenExpired):
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Expired JWT Token")
			return
		case errors.Is(err, services.ErrInvalidToken):
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid JWT Token")
			return
		case err != nil:
			c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed")
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

// RequireRole rejects authenticated users lacking role. It must run after
// RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "JWT Token not found")
			return
		}
		if !user.HasRole(role) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Access Denied.")
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequireRole for ROLE_ADMIN
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// GetCurrentUser retrieves the current user from context
func GetCurrentUser(c *gin.Context) (*models.User, bool) {
	userInterface, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}

	user, ok := userInterface.(*models.User)
	return user, ok && user != nil
}
