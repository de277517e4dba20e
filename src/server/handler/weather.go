package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/ecogarden/src/server/middleware"
	services "github.com/apimgr/ecogarden/src/server/service"
	"github.com/apimgr/ecogarden/src/weather"
)

// ForecastSource fetches raw current-weather payloads from the provider
type ForecastSource interface {
	ByPostalCode(ctx context.Context, postalCode string) (*services.UpstreamResponse, error)
	ByCity(ctx context.Context, city string) (*services.UpstreamResponse, error)
}

// WeatherHandler serves normalized forecasts
type WeatherHandler struct {
	Source ForecastSource
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(source ForecastSource) *WeatherHandler {
	return &WeatherHandler{Source: source}
}

// ForUser handles GET /api/meteo, using the caller's postal code
// @Summary Forecast at the current user's postal code
// @Tags meteo
// @Produce json
// @Security BearerAuth
// @Success 200 {object} weather.Forecast
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/meteo [get]
func (h *WeatherHandler) ForUser(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok || user.PostalCode == nil || *user.PostalCode == "" {
		BadRequest(c, "Code postal non défini dans le user")
		return
	}

	resp, err := h.Source.ByPostalCode(c.Request.Context(), *user.PostalCode)
	h.respond(c, resp, err)
}

// ForCity handles GET /api/meteo/{city}
// @Summary Forecast for a city
// @Tags meteo
// @Produce json
// @Security BearerAuth
// @Param city path string true "City name"
// @Success 200 {object} weather.Forecast
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} weather.Forecast
// @Failure 502 {object} ErrorResponse
// @Router /api/meteo/{city} [get]
func (h *WeatherHandler) ForCity(c *gin.Context) {
	city := strings.TrimSpace(c.Param("city"))
	if city == "" {
		BadRequest(c, "City is required")
		return
	}

	resp, err := h.Source.ByCity(c.Request.Context(), city)
	h.respond(c, resp, err)
}

// respond normalizes the upstream payload and answers with the upstream
// status, whatever it was
func (h *WeatherHandler) respond(c *gin.Context, resp *services.UpstreamResponse, err error) {
	if err != nil {
		c.Error(err)
		if errors.Is(err, services.ErrUpstream) {
			RespondError(c, http.StatusBadGateway, ErrExternalService, "Weather provider unreachable")
			return
		}
		InternalError(c, "Failed to fetch weather", nil)
		return
	}

	if resp.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}

	forecast, status := weather.Normalize(weather.DecodePayload(resp.Body), resp.Status)
	c.JSON(status, forecast)
}
