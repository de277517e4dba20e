package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/ecogarden/src/server/middleware"
	models "github.com/apimgr/ecogarden/src/server/model"
	"github.com/apimgr/ecogarden/src/utils"
)

const (
	msgNoAdviceCurrentMonth  = "Aucun conseil publié pour le mois en cours"
	msgNoAdviceSelectedMonth = "Aucun conseil publié pour le mois selectionné"
	msgInvalidMonth          = "Le mois doit être un entier entre 1 et 12."
	msgInvalidID             = "L'id doit être un nombre entier positif"
)

// AdviceHandler serves gardening advice
type AdviceHandler struct {
	Advices *models.AdviceModel
	Logger  *utils.Logger
	// Now returns the current time; tests pin it
	Now func() time.Time
}

// NewAdviceHandler creates a new advice handler
func NewAdviceHandler(advices *models.AdviceModel, logger *utils.Logger) *AdviceHandler {
	return &AdviceHandler{Advices: advices, Logger: logger, Now: time.Now}
}

// AdviceRequest is the body of POST /api/conseil, and the shape a
// partially updated advice must still satisfy
type AdviceRequest struct {
	Text  string `json:"text" binding:"required,notblank"`
	Month int    `json:"month" binding:"required,month"`
}

// AdvicePatch is the body of PUT /api/conseil/{id}
type AdvicePatch struct {
	Text  *string `json:"text"`
	Month *int    `json:"month"`
}

// ListCurrentMonth handles GET /api/conseil
// @Summary Advice for the current month
// @Tags conseil
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Advice
// @Failure 401 {object} ErrorResponse
// @Router /api/conseil [get]
func (h *AdviceHandler) ListCurrentMonth(c *gin.Context) {
	h.list(c, int(h.Now().Month()), msgNoAdviceCurrentMonth)
}

// ListByMonth handles GET /api/conseil/{month}
// @Summary Advice for a given month
// @Tags conseil
// @Produce json
// @Security BearerAuth
// @Param month path int true "Month, 1 to 12"
// @Success 200 {array} models.Advice
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/conseil/{month} [get]
func (h *AdviceHandler) ListByMonth(c *gin.Context) {
	raw := c.Param("month")
	if !monthRegex.MatchString(raw) {
		BadRequest(c, msgInvalidMonth)
		return
	}
	month, _ := strconv.Atoi(raw)
	h.list(c, month, msgNoAdviceSelectedMonth)
}

func (h *AdviceHandler) list(c *gin.Context, month int, emptyMessage string) {
	advices, err := h.Advices.ListByMonth(c.Request.Context(), month)
	if err != nil {
		InternalError(c, "Failed to load advice", err)
		return
	}
	if len(advices) == 0 {
		c.JSON(http.StatusOK, []string{emptyMessage})
		return
	}
	c.JSON(http.StatusOK, advices)
}

// Create handles POST /api/conseil
// @Summary Publish an advice
// @Tags conseil
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param advice body AdviceRequest true "Advice"
// @Success 201 {object} models.Advice
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/conseil [post]
func (h *AdviceHandler) Create(c *gin.Context) {
	var req AdviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	author, _ := middleware.GetCurrentUser(c)
	advice, err := h.Advices.Create(c.Request.Context(), strings.TrimSpace(req.Text), req.Month, author)
	if err != nil {
		InternalError(c, "Failed to create advice", err)
		return
	}

	audit(c, h.Logger, "advice.create", fmt.Sprintf("advice:%d", advice.ID), nil)
	c.JSON(http.StatusCreated, advice)
}

// Update handles PUT /api/conseil/{id}
// @Summary Update an advice
// @Tags conseil
// @Accept json
// @Security BearerAuth
// @Param id path int true "Advice id"
// @Param advice body AdvicePatch true "Fields to change"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/conseil/{id} [put]
func (h *AdviceHandler) Update(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		BadRequest(c, msgInvalidID)
		return
	}

	advice, err := h.Advices.GetByID(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		NotFound(c, "Advice not found")
		return
	}
	if err != nil {
		InternalError(c, "Failed to load advice", err)
		return
	}

	var patch AdvicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	if patch.Text != nil {
		advice.Text = strings.TrimSpace(*patch.Text)
	}
	if patch.Month != nil {
		advice.Month = *patch.Month
	}

	if err := validateStruct(AdviceRequest{Text: advice.Text, Month: advice.Month}); err != nil {
		bindError(c, err)
		return
	}

	if author, ok := middleware.GetCurrentUser(c); ok {
		advice.CreatedBy = &models.Author{ID: author.ID, Email: author.Email}
	}

	resource := fmt.Sprintf("advice:%d", id)
	if err := h.Advices.Update(c.Request.Context(), advice); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			NotFound(c, "Advice not found")
			return
		}
		InternalError(c, "Failed to update advice", err)
		return
	}

	audit(c, h.Logger, "advice.update", resource, nil)
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/conseil/{id}
// @Summary Delete an advice
// @Tags conseil
// @Security BearerAuth
// @Param id path int true "Advice id"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/conseil/{id} [delete]
func (h *AdviceHandler) Delete(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		BadRequest(c, msgInvalidID)
		return
	}

	err := h.Advices.Delete(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		NotFound(c, "Advice not found")
		return
	}
	if err != nil {
		InternalError(c, "Failed to delete advice", err)
		return
	}

	audit(c, h.Logger, "advice.delete", fmt.Sprintf("advice:%d", id), nil)
	c.Status(http.StatusNoContent)
}
