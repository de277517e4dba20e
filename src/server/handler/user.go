package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	models "github.com/apimgr/ecogarden/src/server/model"
	"github.com/apimgr/ecogarden/src/utils"
)

// UserHandler manages user accounts
type UserHandler struct {
	Users  *models.UserModel
	Logger *utils.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *models.UserModel, logger *utils.Logger) *UserHandler {
	return &UserHandler{Users: users, Logger: logger}
}

// CreateUserRequest is the body of POST /api/user
type CreateUserRequest struct {
	Email      string  `json:"email" binding:"required,email,max=180"`
	Password   string  `json:"password" binding:"required,min=8"`
	PostalCode *string `json:"postalCode" binding:"omitempty,frpostalcode"`
}

// UpdateUserRequest is the body of PUT /api/user/{id}. Omitted fields are
// left unchanged; an empty postalCode clears it.
type UpdateUserRequest struct {
	Email      *string  `json:"email" binding:"omitnil,email,max=180"`
	Password   *string  `json:"password" binding:"omitnil,min=8"`
	PostalCode *string  `json:"postalCode" binding:"omitempty,frpostalcode"`
	Roles      []string `json:"roles" binding:"omitempty,dive,oneof=ROLE_USER ROLE_ADMIN"`
}

// UserResponse is the public view of an account
type UserResponse struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	Roles      []string `json:"roles"`
	PostalCode *string  `json:"postalCode"`
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Roles: u.Roles(), PostalCode: u.PostalCode}
}

// Create handles POST /api/user
// @Summary Register an account
// @Tags user
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "New account"
// @Success 201 {object} UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/user [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var postalCode *string
	if req.PostalCode != nil && *req.PostalCode != "" {
		postalCode = req.PostalCode
	}

	user, err := h.Users.Create(c.Request.Context(), strings.TrimSpace(req.Email), req.Password, nil, postalCode)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			Conflict(c, "This email is already used.", map[string]interface{}{"email": "This value is already used."})
			return
		}
		InternalError(c, "Failed to create user", err)
		return
	}

	audit(c, h.Logger, "user.create", fmt.Sprintf("user:%d", user.ID), nil)
	c.JSON(http.StatusCreated, userResponse(user))
}

// Update handles PUT /api/user/{id}
// @Summary Update an account
// @Tags user
// @Accept json
// @Security BearerAuth
// @Param id path int true "User id"
// @Param user body UpdateUserRequest true "Fields to change"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/user/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		BadRequest(c, msgInvalidID)
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	upd := models.UserUpdate{
		Email:      req.Email,
		Password:   req.Password,
		PostalCode: req.PostalCode,
		Roles:      req.Roles,
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		upd.Email = &email
	}

	resource := fmt.Sprintf("user:%d", id)
	_, err := h.Users.Update(c.Request.Context(), id, upd)
	switch {
	case errors.Is(err, models.ErrNotFound):
		NotFound(c, "User not found")
		return
	case errors.Is(err, models.ErrDuplicateEmail):
		audit(c, h.Logger, "user.update", resource, err)
		Conflict(c, "This email is already used.", map[string]interface{}{"email": "This value is already used."})
		return
	case err != nil:
		InternalError(c, "Failed to update user", err)
		return
	}

	audit(c, h.Logger, "user.update", resource, nil)
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/user/{id}
// @Summary Delete an account
// @Tags user
// @Security BearerAuth
// @Param id path int true "User id"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/user/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		BadRequest(c, msgInvalidID)
		return
	}

	err := h.Users.Delete(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		NotFound(c, "User not found")
		return
	}
	if err != nil {
		InternalError(c, "Failed to delete user", err)
		return
	}

	audit(c, h.Logger, "user.delete", fmt.Sprintf("user:%d", id), nil)
	c.Status(http.StatusNoContent)
}
