package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/apimgr/ecogarden/src/server/middleware"
	"github.com/apimgr/ecogarden/src/utils"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	// Human-readable error message
	Error string `json:"error"`
	// Machine-readable error code (e.g., INVALID_INPUT, NOT_FOUND)
	Code string `json:"code"`
	// HTTP status code
	Status int `json:"status"`
	// Additional error context (validation errors, field names)
	Details map[string]interface{} `json:"details,omitempty"`
}

// TokenResponse is the body of a successful login
type TokenResponse struct {
	Token string `json:"token"`
}

// Common error codes
const (
	// Client errors (4xx)
	ErrInvalidInput     = "INVALID_INPUT"
	ErrNotFound         = "NOT_FOUND"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrForbidden        = "FORBIDDEN"
	ErrConflict         = "CONFLICT"
	ErrValidationFailed = "VALIDATION_FAILED"
	ErrRateLimited      = "RATE_LIMITED"
	ErrBadRequest       = "BAD_REQUEST"

	// Server errors (5xx)
	ErrInternal        = "INTERNAL_ERROR"
	ErrServiceUnavail  = "SERVICE_UNAVAILABLE"
	ErrDatabaseError   = "DATABASE_ERROR"
	ErrExternalService = "EXTERNAL_SERVICE_ERROR"
)

// RespondError sends a standardized error response
// Format: {"error": "Human readable message", "code": "ERROR_CODE", "status": 400, "details": {}}
func RespondError(c *gin.Context, status int, code string, message string, details ...map[string]interface{}) {
	response := ErrorResponse{
		Error:  message,
		Code:   code,
		Status: status,
	}

	if len(details) > 0 {
		response.Details = details[0]
	}

	c.JSON(status, response)
}

// Helper functions for common error scenarios

// BadRequest returns a 400 Bad Request error
func BadRequest(c *gin.Context, message string, details ...map[string]interface{}) {
	RespondError(c, http.StatusBadRequest, ErrBadRequest, message, details...)
}

// InvalidInput returns a 400 Invalid Input error
func InvalidInput(c *gin.Context, message string, details ...map[string]interface{}) {
	RespondError(c, http.StatusBadRequest, ErrInvalidInput, message, details...)
}

// NotFound returns a 404 Not Found error
func NotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, ErrNotFound, message)
}

// Unauthorized returns a 401 Unauthorized error
func Unauthorized(c *gin.Context, message string) {
	RespondError(c, http.StatusUnauthorized, ErrUnauthorized, message)
}

// Conflict returns a 409 Conflict error
func Conflict(c *gin.Context, message string, details ...map[string]interface{}) {
	RespondError(c, http.StatusConflict, ErrConflict, message, details...)
}

// InternalError returns a 500 Internal Server Error. The cause is
// attached to the context so the access logger records it.
func InternalError(c *gin.Context, message string, err error) {
	if err != nil {
		c.Error(err)
	}
	RespondError(c, http.StatusInternalServerError, ErrInternal, message)
}

// ValidationFailed returns a 400 with one entry per rejected field.
// Clients of the advice and user endpoints expect 400, not 422, here.
func ValidationFailed(c *gin.Context, details map[string]interface{}) {
	RespondError(c, http.StatusBadRequest, ErrValidationFailed, "Validation failed", details)
}

// bindError answers a failed ShouldBindJSON: field violations become
// VALIDATION_FAILED details, anything else is a malformed body
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		ValidationFailed(c, validationDetails(verrs))
		return
	}
	InvalidInput(c, "Invalid JSON body")
}

// validationDetails maps each failing field (by JSON name) to a message
func validationDetails(verrs validator.ValidationErrors) map[string]interface{} {
	details := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = violationMessage(fe)
	}
	return details
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "This value should not be blank."
	case "email":
		return "This value is not a valid email address."
	case "min":
		return "This value is too short. It should have " + fe.Param() + " characters or more."
	case "max":
		return "This value is too long. It should have " + fe.Param() + " characters or less."
	case "frpostalcode":
		return "The postal code must be 5 digits."
	case "month":
		return "The month must be between 1 and 12."
	case "oneof":
		return "The value must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
	}
	return "This value is not valid."
}

// parseID validates a positive integer path parameter
func parseID(raw string) (int64, bool) {
	if !positiveIntRegex.MatchString(raw) {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

// audit writes a mutation of resource by the current user to audit.log
func audit(c *gin.Context, logger *utils.Logger, action, resource string, err error) {
	if logger == nil {
		return
	}
	actor := "anonymous"
	if user, ok := middleware.GetCurrentUser(c); ok {
		actor = user.Email
	}
	entry := utils.AuditEntry{
		RequestID: middleware.GetRequestID(c),
		Actor:     actor,
		Action:    action,
		Resource:  resource,
		IP:        c.ClientIP(),
		Success:   err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	logger.Audit(entry)
}
