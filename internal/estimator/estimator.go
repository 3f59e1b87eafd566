// Package estimator turns a rooftop footprint and a rainfall signal into
// harvest, storage and recharge figures, and a flow, head and efficiency
// tuple into micro-hydro power.
//
// Every function here is a pure computation over its arguments except
// EstimateHarvest, whose only side effect is the climatology lookup.
package estimator

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/stwalsh4118/rainyield/internal/climatology"
	"github.com/stwalsh4118/rainyield/internal/geometry"
	"github.com/stwalsh4118/rainyield/internal/models"
)

const (
	// FallbackAnnualRainfallMm is used whenever the climatology lookup yields nothing.
	FallbackAnnualRainfallMm = 1000.0
	// TankFraction is the share of annual yield the storage tank is sized for.
	TankFraction = 0.5
	// RechargeFraction is the share of annual yield routed to groundwater recharge.
	RechargeFraction = 0.3
	// PitDepthM is the fixed depth of the square recharge pit.
	PitDepthM = 2.0

	// WaterDensity in kg/m³.
	WaterDensity = 1000.0
	// Gravity in m/s².
	Gravity = 9.81
	// DefaultPipeHeightM is the head height used when the caller supplies none.
	DefaultPipeHeightM = 3.0
	// DefaultEfficiency is the turbine efficiency used when the caller supplies none.
	DefaultEfficiency = 0.7
	// PowerDurationSeconds is the run time the energy figure is quoted for.
	PowerDurationSeconds = 3600.0

	// DefaultLookupTimeout bounds the climatology lookup.
	DefaultLookupTimeout = 8 * time.Second
)

// ErrInputMissing is returned by EstimatePower when the roof area or the
// rainfall rate is absent, zero or not a finite number.
var ErrInputMissing = errors.New("roof area or rainfall data is missing")

// Options tune EstimateHarvest.
type Options struct {
	// Timeout bounds the climatology lookup. Zero means DefaultLookupTimeout.
	Timeout time.Duration
	// FallbackMmPerYear replaces the annual rainfall when the lookup fails.
	// Zero means FallbackAnnualRainfallMm.
	FallbackMmPerYear float64
}

// DefaultOptions returns the standard lookup timeout and fallback.
func DefaultOptions() Options {
	return Options{
		Timeout:           DefaultLookupTimeout,
		FallbackMmPerYear: FallbackAnnualRainfallMm,
	}
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultLookupTimeout
	}
	if o.FallbackMmPerYear <= 0 || math.IsNaN(o.FallbackMmPerYear) || math.IsInf(o.FallbackMmPerYear, 0) {
		o.FallbackMmPerYear = FallbackAnnualRainfallMm
	}
	return o
}

// UsableRates returns the calendar months of rates holding a finite,
// non-negative value. Anything else counts as absent.
func UsableRates(rates models.Climatology) models.Climatology {
	usable := make(models.Climatology, len(rates))
	for _, month := range models.Months {
		rate, ok := rates[month]
		if !ok || math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
			continue
		}
		usable[month] = rate
	}
	return usable
}

// AnnualRainfall sums rate × days over the usable months of result. Missing
// months are skipped. A failed result, or one without a single usable month,
// yields the fallback.
func AnnualRainfall(result climatology.Result, fallback float64) (float64, models.RainfallSource) {
	if !result.OK() {
		return fallback, models.RainfallFallback
	}

	usable := UsableRates(result.Rates)
	if len(usable) == 0 {
		return fallback, models.RainfallFallback
	}

	var total float64
	for _, month := range models.Months {
		if rate, ok := usable[month]; ok {
			total += rate * float64(month.Days())
		}
	}
	return total, models.RainfallFromClimatology
}

// Harvest derives yield, tank and recharge pit sizing from a roof area and
// an annual rainfall depth.
func Harvest(areaM2, annualRainfallMm float64, source models.RainfallSource) models.HarvestEstimate {
	areaM2 = nonNegative(areaM2)
	annualRainfallMm = nonNegative(annualRainfallMm)

	// 1 mm over 1 m² is 1 liter
	annualLiters := areaM2 * annualRainfallMm / 1000
	rechargeLiters := annualLiters * RechargeFraction

	return models.HarvestEstimate{
		RainfallSource:          source,
		RoofAreaM2:              areaM2,
		AnnualRainfallMm:        annualRainfallMm,
		AnnualVolumeLiters:      annualLiters,
		TankSizeLiters:          annualLiters * TankFraction,
		RechargePitVolumeLiters: rechargeLiters,
		RechargePitSideM:        pitSide(rechargeLiters),
		RechargePitDepthM:       PitDepthM,
	}
}

func pitSide(rechargeLiters float64) float64 {
	volumeM3 := rechargeLiters / 1000
	baseAreaM2 := volumeM3 / PitDepthM
	return math.Sqrt(nonNegative(baseAreaM2))
}

// nonNegative clamps negative, NaN and infinite values to zero.
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// EstimateHarvest runs the whole harvest pipeline for a footprint: area,
// centroid, a bounded climatology lookup, then Harvest. It never fails. A
// lookup that errors, times out or returns no usable month falls back to
// opts.FallbackMmPerYear. An empty footprint skips the lookup entirely.
func EstimateHarvest(ctx context.Context, polygon models.Polygon, source climatology.Source, opts Options) models.HarvestEstimate {
	opts = opts.withDefaults()

	area := geometry.Area(polygon)
	centroid, ok := geometry.Centroid(polygon)
	if !ok || source == nil {
		estimate := Harvest(area, opts.FallbackMmPerYear, models.RainfallFallback)
		estimate.Centroid = centroid
		return estimate
	}

	result := lookup(ctx, source, centroid, opts.Timeout)
	rainfall, rainfallSource := AnnualRainfall(result, opts.FallbackMmPerYear)

	estimate := Harvest(area, rainfall, rainfallSource)
	estimate.Centroid = centroid
	return estimate
}

// lookup queries source under a timeout. The deadline holds even for a
// source that ignores ctx: its late answer is abandoned. A panicking source
// is reported as unavailable rather than taking down the estimate.
func lookup(ctx context.Context, source climatology.Source, point models.GeoPoint, timeout time.Duration) climatology.Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan climatology.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- climatology.Failure(climatology.ErrUnavailable)
			}
		}()
		done <- source.MonthlyRates(ctx, point)
	}()

	select {
	case result := <-done:
		if result.OK() && ctx.Err() != nil {
			// Answered after the deadline; treat as expired.
			return climatology.Failure(ctx.Err())
		}
		return result
	case <-ctx.Done():
		return climatology.Failure(ctx.Err())
	}
}

// EstimatePower computes the hydro power available from rain falling at
// rateMmPerHour on areaM2 of roof, dropping pipeHeightM through a turbine of
// the given efficiency. Efficiency is used as given.
func EstimatePower(areaM2, rateMmPerHour, pipeHeightM, efficiency float64) (models.PowerEstimate, error) {
	if !positive(areaM2) || !positive(rateMmPerHour) {
		return models.PowerEstimate{}, ErrInputMissing
	}

	rateMPerS := (rateMmPerHour / 1000) / 3600
	flow := areaM2 * rateMPerS
	power := WaterDensity * Gravity * pipeHeightM * flow * efficiency
	energy := power * PowerDurationSeconds / 3600

	return models.PowerEstimate{
		RoofAreaM2:             areaM2,
		RainfallRateMmPerHour:  rateMmPerHour,
		PipeHeightM:            pipeHeightM,
		Efficiency:             efficiency,
		FlowRateM3PerS:         flow,
		PowerWatts:             power,
		DurationSeconds:        PowerDurationSeconds,
		EnergyWattHoursPerHour: energy,
	}, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
