package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stwalsh4118/rainyield/internal/climatology"
	"github.com/stwalsh4118/rainyield/internal/estimator"
	"github.com/stwalsh4118/rainyield/internal/geometry"
	"github.com/stwalsh4118/rainyield/internal/logger"
	"github.com/stwalsh4118/rainyield/internal/models"
)

// HoursPerYear converts an annual rainfall depth into a mean hourly intensity.
const HoursPerYear = 8760.0

// Service-level errors
var (
	ErrInvalidGeometry        = errors.New("invalid geometry")
	ErrInvalidCoordinates     = errors.New("invalid coordinates")
	ErrSuperseded             = errors.New("superseded by a newer request in the same session")
	ErrClimatologyUnavailable = errors.New("climatology data unavailable")
	ErrInputMissing           = estimator.ErrInputMissing
)

// PowerInput holds the inputs of a standalone power estimate. Nil optional
// fields take the estimator defaults.
type PowerInput struct {
	RoofAreaM2            float64
	RainfallRateMmPerHour float64
	PipeHeightM           *float64
	Efficiency            *float64
}

// PowerParams configures the power half of a combined estimate. A nil
// rainfall rate means the mean hourly intensity of the annual rainfall.
type PowerParams struct {
	RainfallRateMmPerHour *float64
	PipeHeightM           *float64
	Efficiency            *float64
}

// HarvestResult is a harvest estimate with its display summary.
type HarvestResult struct {
	Estimate       models.HarvestEstimate   `json:"estimate"`
	Summary        estimator.HarvestSummary `json:"summary"`
	Fingerprint    string                   `json:"polygon_fingerprint"`
	SelfIntersects bool                     `json:"self_intersects"`
}

// PowerResult is a power estimate with its display summary.
type PowerResult struct {
	Estimate models.PowerEstimate   `json:"estimate"`
	Summary  estimator.PowerSummary `json:"summary"`
}

// CombinedResult is a harvest estimate and the power estimate derived from
// its roof area.
type CombinedResult struct {
	Harvest             HarvestResult `json:"harvest"`
	Power               PowerResult   `json:"power"`
	RainfallRateDerived bool          `json:"rainfall_rate_derived"`
}

// ClimatologyLookup is the raw monthly climatology for a point.
type ClimatologyLookup struct {
	Point            models.GeoPoint    `json:"point"`
	Rates            models.Climatology `json:"monthly_mm_per_day"`
	AnnualRainfallMm float64            `json:"annual_rainfall_mm"`
	MonthsAvailable  int                `json:"months_available"`
	Cached           bool               `json:"cached"`
}

// EstimationService defines the estimation operations exposed over HTTP.
type EstimationService interface {
	// EstimateHarvest estimates yield and storage for a rooftop footprint.
	// Returns ErrInvalidGeometry for out-of-range coordinates and
	// ErrSuperseded when a newer request from the same session overtook it.
	// A failed climatology lookup is not an error.
	EstimateHarvest(ctx context.Context, sessionID string, polygon models.Polygon) (*HarvestResult, error)

	// EstimatePower estimates micro-hydro output.
	// Returns ErrInputMissing when the roof area or rainfall rate is absent.
	EstimatePower(ctx context.Context, input PowerInput) (*PowerResult, error)

	// EstimateHarvestAndPower runs both estimators on one footprint.
	EstimateHarvestAndPower(ctx context.Context, sessionID string, polygon models.Polygon, params PowerParams) (*CombinedResult, error)

	// LookupClimatology returns the monthly climatology for a point.
	// Returns ErrClimatologyUnavailable when the lookup yields nothing.
	LookupClimatology(ctx context.Context, point models.GeoPoint) (*ClimatologyLookup, error)
}

// estimationService is the concrete implementation of EstimationService.
type estimationService struct {
	source  climatology.Source
	tracker *SessionTracker
	opts    estimator.Options
	log     *logger.Logger
}

// NewEstimationService creates a new instance of EstimationService.
func NewEstimationService(source climatology.Source, tracker *SessionTracker, opts estimator.Options, log *logger.Logger) EstimationService {
	if tracker == nil {
		tracker = NewSessionTracker()
	}
	return &estimationService{
		source:  source,
		tracker: tracker,
		opts:    opts,
		log:     log.Component("estimation"),
	}
}

func (s *estimationService) EstimateHarvest(ctx context.Context, sessionID string, polygon models.Polygon) (*HarvestResult, error) {
	if err := geometry.Validate(polygon); err != nil {
		s.log.Warn("Invalid polygon provided", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}

	fingerprint := geometry.Fingerprint(polygon)
	lookupCtx, ticket := s.tracker.Begin(ctx, sessionID, fingerprint)

	s.log.Info("Estimating harvest", map[string]interface{}{
		"session_id":  sessionID,
		"fingerprint": fingerprint,
		"token":       ticket.Token.String(),
	})

	estimate := estimator.EstimateHarvest(lookupCtx, polygon, s.source, s.opts)

	if !s.tracker.Finish(ticket) {
		s.log.Info("Dropping superseded harvest estimate", map[string]interface{}{
			"session_id":  sessionID,
			"fingerprint": fingerprint,
			"token":       ticket.Token.String(),
		})
		return nil, ErrSuperseded
	}

	fields := map[string]interface{}{
		"session_id":      sessionID,
		"fingerprint":     fingerprint,
		"roof_area_m2":    estimate.RoofAreaM2,
		"rainfall_mm":     estimate.AnnualRainfallMm,
		"rainfall_source": string(estimate.RainfallSource),
	}
	if estimate.RainfallSource == models.RainfallFallback {
		s.log.Warn("Harvest estimated with fallback rainfall", fields)
	} else {
		s.log.Info("Harvest estimated", fields)
	}

	intersects := geometry.SelfIntersects(polygon)
	if intersects {
		s.log.Warn("Polygon outline crosses itself", map[string]interface{}{
			"session_id":  sessionID,
			"fingerprint": fingerprint,
		})
	}

	return &HarvestResult{
		Estimate:       estimate,
		Summary:        estimator.SummarizeHarvest(estimate),
		Fingerprint:    fingerprint,
		SelfIntersects: intersects,
	}, nil
}

func (s *estimationService) EstimatePower(ctx context.Context, input PowerInput) (*PowerResult, error) {
	pipeHeight := valueOr(input.PipeHeightM, estimator.DefaultPipeHeightM)
	efficiency := valueOr(input.Efficiency, estimator.DefaultEfficiency)

	estimate, err := estimator.EstimatePower(input.RoofAreaM2, input.RainfallRateMmPerHour, pipeHeight, efficiency)
	if err != nil {
		s.log.Warn("Power estimate rejected", map[string]interface{}{
			"roof_area_m2":              input.RoofAreaM2,
			"rainfall_rate_mm_per_hour": input.RainfallRateMmPerHour,
			"error":                     err.Error(),
		})
		return nil, err
	}

	s.log.Info("Power estimated", map[string]interface{}{
		"roof_area_m2":              estimate.RoofAreaM2,
		"rainfall_rate_mm_per_hour": estimate.RainfallRateMmPerHour,
		"pipe_height_m":             estimate.PipeHeightM,
		"efficiency":                estimate.Efficiency,
		"power_watts":               estimate.PowerWatts,
	})

	return &PowerResult{
		Estimate: estimate,
		Summary:  estimator.SummarizePower(estimate),
	}, nil
}

func (s *estimationService) EstimateHarvestAndPower(ctx context.Context, sessionID string, polygon models.Polygon, params PowerParams) (*CombinedResult, error) {
	harvest, err := s.EstimateHarvest(ctx, sessionID, polygon)
	if err != nil {
		return nil, err
	}

	derived := params.RainfallRateMmPerHour == nil
	rate := valueOr(params.RainfallRateMmPerHour, harvest.Estimate.AnnualRainfallMm/HoursPerYear)

	power, err := s.EstimatePower(ctx, PowerInput{
		RoofAreaM2:            harvest.Estimate.RoofAreaM2,
		RainfallRateMmPerHour: rate,
		PipeHeightM:           params.PipeHeightM,
		Efficiency:            params.Efficiency,
	})
	if err != nil {
		return nil, err
	}

	return &CombinedResult{
		Harvest:             *harvest,
		Power:               *power,
		RainfallRateDerived: derived,
	}, nil
}

func (s *estimationService) LookupClimatology(ctx context.Context, point models.GeoPoint) (*ClimatologyLookup, error) {
	if err := geometry.ValidatePoint(point); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCoordinates, err)
	}

	timeout := s.opts.Timeout
	if timeout <= 0 {
		timeout = estimator.DefaultLookupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := s.source.MonthlyRates(ctx, point)
	usable := estimator.UsableRates(result.Rates)
	if !result.OK() || len(usable) == 0 {
		cause := result.Err
		if cause == nil {
			cause = climatology.ErrNoData
		}
		s.log.Warn("Climatology lookup returned no data", map[string]interface{}{
			"lat":   point.Lat,
			"lng":   point.Lng,
			"error": cause.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrClimatologyUnavailable, cause)
	}

	annual, _ := estimator.AnnualRainfall(result, 0)
	return &ClimatologyLookup{
		Point:            point,
		Rates:            usable,
		AnnualRainfallMm: annual,
		MonthsAvailable:  len(usable),
		Cached:           result.Cached,
	}, nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}
