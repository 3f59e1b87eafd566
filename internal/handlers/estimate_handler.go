package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/rainyield/internal/errors"
	"github.com/stwalsh4118/rainyield/internal/estimator"
	"github.com/stwalsh4118/rainyield/internal/middleware"
	"github.com/stwalsh4118/rainyield/internal/models"
	"github.com/stwalsh4118/rainyield/internal/services"
)

// InputMissingMessage prompts the user to select a rooftop before asking for power.
const InputMissingMessage = "Roof area or rainfall data is missing"

// EstimateHandler handles estimation and climatology HTTP requests.
type EstimateHandler struct {
	service services.EstimationService
}

// NewEstimateHandler creates a new EstimateHandler instance.
func NewEstimateHandler(service services.EstimationService) *EstimateHandler {
	return &EstimateHandler{
		service: service,
	}
}

// HarvestRequest is the body of POST /api/v1/estimates/harvest.
type HarvestRequest struct {
	Geometry *models.Polygon `json:"geometry" binding:"required"`
}

// PowerRequest is the body of POST /api/v1/estimates/power. Roof area and
// rainfall rate are pointers so that an absent value is told apart from a
// bad one.
type PowerRequest struct {
	RoofAreaM2            *float64 `json:"roof_area_m2"`
	RainfallRateMmPerHour *float64 `json:"rainfall_rate_mm_per_hour"`
	PipeHeightM           *float64 `json:"pipe_height_m" binding:"omitempty,gte=0"`
	Efficiency            *float64 `json:"efficiency" binding:"omitempty,gte=0,lte=1"`
}

// CombinedRequest is the body of POST /api/v1/estimates/combined.
type CombinedRequest struct {
	Geometry              *models.Polygon `json:"geometry" binding:"required"`
	RainfallRateMmPerHour *float64        `json:"rainfall_rate_mm_per_hour" binding:"omitempty,gt=0"`
	PipeHeightM           *float64        `json:"pipe_height_m" binding:"omitempty,gte=0"`
	Efficiency            *float64        `json:"efficiency" binding:"omitempty,gte=0,lte=1"`
}

// ClimatologyRequest holds the query parameters of GET /api/v1/climatology.
type ClimatologyRequest struct {
	Lat *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng *float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// HarvestResponse represents the response of the harvest endpoint.
type HarvestResponse struct {
	Estimate           models.HarvestEstimate   `json:"estimate"`
	Centroid           models.GeoPoint          `json:"centroid"`
	Summary            estimator.HarvestSummary `json:"summary"`
	PolygonFingerprint string                   `json:"polygon_fingerprint"`
	SelfIntersects     bool                     `json:"self_intersects"`
}

// PowerResponse represents the response of the power endpoint.
type PowerResponse struct {
	Estimate models.PowerEstimate   `json:"estimate"`
	Summary  estimator.PowerSummary `json:"summary"`
}

// CombinedResponse represents the response of the combined endpoint.
type CombinedResponse struct {
	Harvest             HarvestResponse `json:"harvest"`
	Power               PowerResponse   `json:"power"`
	RainfallRateDerived bool            `json:"rainfall_rate_derived"`
}

// Harvest handles POST /api/v1/estimates/harvest.
// A failed climatology lookup still yields 200 with rainfall_source "fallback".
func (h *EstimateHandler) Harvest(c *gin.Context) {
	var req HarvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	logRequest(c, "Processing harvest estimate request", map[string]interface{}{
		"rings": len(req.Geometry.Coordinates),
	})

	result, err := h.service.EstimateHarvest(c.Request.Context(), middleware.GetSessionID(c), *req.Geometry)
	if err != nil {
		serviceError(c, err, "Failed to estimate harvest")
		return
	}

	c.JSON(http.StatusOK, mapHarvestResult(result))
}

// Power handles POST /api/v1/estimates/power.
func (h *EstimateHandler) Power(c *gin.Context) {
	var req PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if req.RoofAreaM2 == nil || req.RainfallRateMmPerHour == nil {
		apierrors.InputMissing(c, InputMissingMessage)
		return
	}

	logRequest(c, "Processing power estimate request", map[string]interface{}{
		"roof_area_m2":              *req.RoofAreaM2,
		"rainfall_rate_mm_per_hour": *req.RainfallRateMmPerHour,
	})

	result, err := h.service.EstimatePower(c.Request.Context(), services.PowerInput{
		RoofAreaM2:            *req.RoofAreaM2,
		RainfallRateMmPerHour: *req.RainfallRateMmPerHour,
		PipeHeightM:           req.PipeHeightM,
		Efficiency:            req.Efficiency,
	})
	if err != nil {
		serviceError(c, err, "Failed to estimate power")
		return
	}

	c.JSON(http.StatusOK, mapPowerResult(result))
}

// Combined handles POST /api/v1/estimates/combined.
func (h *EstimateHandler) Combined(c *gin.Context) {
	var req CombinedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	logRequest(c, "Processing combined estimate request", map[string]interface{}{
		"rings":        len(req.Geometry.Coordinates),
		"derived_rate": req.RainfallRateMmPerHour == nil,
	})

	result, err := h.service.EstimateHarvestAndPower(c.Request.Context(), middleware.GetSessionID(c), *req.Geometry, services.PowerParams{
		RainfallRateMmPerHour: req.RainfallRateMmPerHour,
		PipeHeightM:           req.PipeHeightM,
		Efficiency:            req.Efficiency,
	})
	if err != nil {
		serviceError(c, err, "Failed to estimate harvest and power")
		return
	}

	c.JSON(http.StatusOK, CombinedResponse{
		Harvest:             mapHarvestResult(&result.Harvest),
		Power:               mapPowerResult(&result.Power),
		RainfallRateDerived: result.RainfallRateDerived,
	})
}

// Climatology handles GET /api/v1/climatology.
// Unlike the estimates, this endpoint reports a failed lookup as 503.
func (h *EstimateHandler) Climatology(c *gin.Context) {
	var req ClimatologyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	point := models.GeoPoint{Lat: *req.Lat, Lng: *req.Lng}
	logRequest(c, "Processing climatology request", map[string]interface{}{
		"lat": point.Lat,
		"lng": point.Lng,
	})

	result, err := h.service.LookupClimatology(c.Request.Context(), point)
	if err != nil {
		serviceError(c, err, "Failed to look up climatology")
		return
	}

	c.JSON(http.StatusOK, result)
}

// bindError maps a request binding failure onto the error envelope.
func bindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		apierrors.ValidationError(c, validationErrors)
	case errors.Is(err, models.ErrUnsupportedGeometry):
		apierrors.InvalidGeometry(c, err.Error())
	default:
		apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{
			"reason": err.Error(),
		})
	}
}

// serviceError maps service-level errors onto HTTP responses.
func serviceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrInputMissing):
		apierrors.InputMissing(c, InputMissingMessage)
	case errors.Is(err, services.ErrInvalidGeometry):
		apierrors.InvalidGeometry(c, err.Error())
	case errors.Is(err, services.ErrInvalidCoordinates):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrSuperseded):
		apierrors.Superseded(c, "A newer estimate from this session replaced this one")
	case errors.Is(err, services.ErrClimatologyUnavailable):
		apierrors.ServiceUnavailable(c, "Climatology service unavailable", err)
	default:
		apierrors.InternalServerError(c, message, err)
	}
}

func logRequest(c *gin.Context, msg string, fields map[string]interface{}) {
	if log := middleware.GetLogger(c); log != nil {
		log.Info(msg, fields)
	}
}

func mapHarvestResult(result *services.HarvestResult) HarvestResponse {
	return HarvestResponse{
		Estimate:           result.Estimate,
		Centroid:           result.Estimate.Centroid,
		Summary:            result.Summary,
		PolygonFingerprint: result.Fingerprint,
		SelfIntersects:     result.SelfIntersects,
	}
}

func mapPowerResult(result *services.PowerResult) PowerResponse {
	return PowerResponse{
		Estimate: result.Estimate,
		Summary:  result.Summary,
	}
}
