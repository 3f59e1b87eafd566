package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/rainyield/internal/climatology"
	"github.com/stwalsh4118/rainyield/internal/estimator"
	"github.com/stwalsh4118/rainyield/internal/logger"
	"github.com/stwalsh4118/rainyield/internal/models"
)

// MockSource is a mock implementation of climatology.Source for testing
type MockSource struct {
	mock.Mock
}

func (m *MockSource) MonthlyRates(ctx context.Context, point models.GeoPoint) climatology.Result {
	args := m.Called(ctx, point)
	return args.Get(0).(climatology.Result)
}

var testRoof = models.Polygon{Coordinates: [][][2]float64{{
	{77.5946, 12.9716},
	{77.5948, 12.9716},
	{77.5948, 12.9718},
	{77.5946, 12.9718},
	{77.5946, 12.9716},
}}}

func fullYear(mmPerDay float64) models.Climatology {
	rates := models.Climatology{}
	for _, m := range models.Months {
		rates[m] = mmPerDay
	}
	return rates
}

func newTestService(source climatology.Source) EstimationService {
	return NewEstimationService(source, NewSessionTracker(), estimator.DefaultOptions(), logger.New("test"))
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestEstimateHarvest_Success(t *testing.T) {
	// Arrange
	source := new(MockSource)
	service := newTestService(source)
	source.On("MonthlyRates", mock.Anything, mock.AnythingOfType("models.GeoPoint")).
		Return(climatology.Result{Rates: fullYear(2)})

	// Act
	result, err := service.EstimateHarvest(context.Background(), "session-1", testRoof)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.RainfallFromClimatology, result.Estimate.RainfallSource)
	assert.InDelta(t, 730, result.Estimate.AnnualRainfallMm, 1e-9)
	assert.InDelta(t, 483.03, result.Estimate.RoofAreaM2, 0.01)
	assert.Equal(t, "483.03 m²", result.Summary.RoofArea)
	assert.Equal(t, "730 mm/year", result.Summary.AnnualRainfall)
	assert.False(t, result.Summary.RainfallEstimated)
	assert.Len(t, result.Fingerprint, 16)
	assert.False(t, result.SelfIntersects)
	source.AssertExpectations(t)
}

func TestEstimateHarvest_SourceFailureFallsBack(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)
	source.On("MonthlyRates", mock.Anything, mock.Anything).
		Return(climatology.Failure(climatology.ErrUnavailable))

	result, err := service.EstimateHarvest(context.Background(), "", testRoof)

	require.NoError(t, err)
	assert.Equal(t, models.RainfallFallback, result.Estimate.RainfallSource)
	assert.Equal(t, 1000.0, result.Estimate.AnnualRainfallMm)
	assert.True(t, result.Summary.RainfallEstimated)
}

func TestEstimateHarvest_InvalidGeometry(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)

	bad := models.Polygon{Coordinates: [][][2]float64{{{0, 95}, {1, 0}, {0, 0}, {0, 95}}}}
	result, err := service.EstimateHarvest(context.Background(), "", bad)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	source.AssertNotCalled(t, "MonthlyRates", mock.Anything, mock.Anything)
}

func TestEstimateHarvest_EmptyPolygonIsZero(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)

	result, err := service.EstimateHarvest(context.Background(), "", models.Polygon{})

	require.NoError(t, err)
	assert.Zero(t, result.Estimate.RoofAreaM2)
	assert.Zero(t, result.Estimate.AnnualVolumeLiters)
	assert.Equal(t, "0.00 m × 0.00 m × 2 m", result.Summary.RechargePitSize)
}

func TestEstimateHarvest_SupersededRequestDropped(t *testing.T) {
	firstRoof := testRoof
	secondRoof := models.Polygon{Coordinates: [][][2]float64{{
		{10, 10}, {10.001, 10}, {10.001, 10.001}, {10, 10.001}, {10, 10},
	}}}

	started := make(chan struct{})
	source := climatology.SourceFunc(func(ctx context.Context, point models.GeoPoint) climatology.Result {
		if point.Lat > 12 {
			close(started)
			<-ctx.Done()
			return climatology.Failure(ctx.Err())
		}
		return climatology.Result{Rates: fullYear(1)}
	})
	service := newTestService(source)

	type outcome struct {
		result *HarvestResult
		err    error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		r, err := service.EstimateHarvest(context.Background(), "session-1", firstRoof)
		firstDone <- outcome{r, err}
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first lookup never started")
	}

	second, err := service.EstimateHarvest(context.Background(), "session-1", secondRoof)
	require.NoError(t, err)
	assert.Equal(t, models.RainfallFromClimatology, second.Estimate.RainfallSource)

	select {
	case first := <-firstDone:
		assert.Nil(t, first.result)
		assert.ErrorIs(t, first.err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first request was not cancelled")
	}
}

func TestEstimatePower_Defaults(t *testing.T) {
	service := newTestService(new(MockSource))

	result, err := service.EstimatePower(context.Background(), PowerInput{
		RoofAreaM2:            100,
		RainfallRateMmPerHour: 50,
	})

	require.NoError(t, err)
	assert.Equal(t, estimator.DefaultPipeHeightM, result.Estimate.PipeHeightM)
	assert.Equal(t, estimator.DefaultEfficiency, result.Estimate.Efficiency)
	assert.InDelta(t, 28.6125, result.Estimate.PowerWatts, 1e-9)
	assert.Equal(t, "0.00139 m³/s", result.Summary.FlowRate)
	assert.Equal(t, "28.61 W", result.Summary.Power)
	assert.Equal(t, "28.61 Wh", result.Summary.Energy)
}

func TestEstimatePower_Overrides(t *testing.T) {
	service := newTestService(new(MockSource))

	result, err := service.EstimatePower(context.Background(), PowerInput{
		RoofAreaM2:            100,
		RainfallRateMmPerHour: 50,
		PipeHeightM:           floatPtr(6),
		Efficiency:            floatPtr(0.35),
	})

	require.NoError(t, err)
	assert.InDelta(t, 28.6125, result.Estimate.PowerWatts, 1e-9)
}

func TestEstimatePower_InputMissing(t *testing.T) {
	service := newTestService(new(MockSource))

	result, err := service.EstimatePower(context.Background(), PowerInput{RoofAreaM2: 100})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInputMissing)
}

func TestEstimateHarvestAndPower_ExplicitRate(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)
	source.On("MonthlyRates", mock.Anything, mock.Anything).
		Return(climatology.Result{Rates: fullYear(2)})

	result, err := service.EstimateHarvestAndPower(context.Background(), "", testRoof, PowerParams{
		RainfallRateMmPerHour: floatPtr(50),
	})

	require.NoError(t, err)
	assert.False(t, result.RainfallRateDerived)
	assert.Equal(t, result.Harvest.Estimate.RoofAreaM2, result.Power.Estimate.RoofAreaM2)
	assert.Equal(t, 50.0, result.Power.Estimate.RainfallRateMmPerHour)
}

func TestEstimateHarvestAndPower_DerivedRate(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)
	source.On("MonthlyRates", mock.Anything, mock.Anything).
		Return(climatology.Failure(climatology.ErrUnavailable))

	result, err := service.EstimateHarvestAndPower(context.Background(), "", testRoof, PowerParams{})

	require.NoError(t, err)
	assert.True(t, result.RainfallRateDerived)
	assert.InDelta(t, 1000/HoursPerYear, result.Power.Estimate.RainfallRateMmPerHour, 1e-12)
}

func TestEstimateHarvestAndPower_EmptyPolygon(t *testing.T) {
	service := newTestService(new(MockSource))

	result, err := service.EstimateHarvestAndPower(context.Background(), "", models.Polygon{}, PowerParams{
		RainfallRateMmPerHour: floatPtr(50),
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInputMissing)
}

func TestLookupClimatology_Success(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)
	point := models.GeoPoint{Lat: 12.97, Lng: 77.59}
	source.On("MonthlyRates", mock.Anything, point).
		Return(climatology.Result{Rates: models.Climatology{models.January: 1, models.February: 2}, Cached: true})

	result, err := service.LookupClimatology(context.Background(), point)

	require.NoError(t, err)
	assert.InDelta(t, 31+56, result.AnnualRainfallMm, 1e-9)
	assert.Equal(t, 2, result.MonthsAvailable)
	assert.True(t, result.Cached)
	source.AssertExpectations(t)
}

func TestLookupClimatology_Unavailable(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)
	source.On("MonthlyRates", mock.Anything, mock.Anything).
		Return(climatology.Failure(climatology.ErrUnavailable))

	result, err := service.LookupClimatology(context.Background(), models.GeoPoint{Lat: 1, Lng: 2})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrClimatologyUnavailable)
	assert.ErrorIs(t, err, climatology.ErrUnavailable)
}

func TestLookupClimatology_EmptyRates(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)
	source.On("MonthlyRates", mock.Anything, mock.Anything).
		Return(climatology.Result{})

	_, err := service.LookupClimatology(context.Background(), models.GeoPoint{Lat: 1, Lng: 2})

	assert.ErrorIs(t, err, ErrClimatologyUnavailable)
	assert.ErrorIs(t, err, climatology.ErrNoData)
}

func TestLookupClimatology_OnlyUnusableMonths(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)
	source.On("MonthlyRates", mock.Anything, mock.Anything).
		Return(climatology.Result{Rates: models.Climatology{models.March: math.NaN(), "ANN": 3}})

	result, err := service.LookupClimatology(context.Background(), models.GeoPoint{Lat: 1, Lng: 2})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrClimatologyUnavailable)
	assert.ErrorIs(t, err, climatology.ErrNoData)
}

func TestLookupClimatology_CountsUsableMonthsOnly(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)
	source.On("MonthlyRates", mock.Anything, mock.Anything).
		Return(climatology.Result{Rates: models.Climatology{
			models.January: 1,
			models.May:     -999,
			"ANN":          3,
		}})

	result, err := service.LookupClimatology(context.Background(), models.GeoPoint{Lat: 1, Lng: 2})

	require.NoError(t, err)
	assert.Equal(t, 1, result.MonthsAvailable)
	assert.Equal(t, models.Climatology{models.January: 1}, result.Rates)
	assert.InDelta(t, 31, result.AnnualRainfallMm, 1e-9)
}

func TestLookupClimatology_InvalidCoordinates(t *testing.T) {
	source := new(MockSource)
	service := newTestService(source)

	_, err := service.LookupClimatology(context.Background(), models.GeoPoint{Lat: 100, Lng: 0})

	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	source.AssertNotCalled(t, "MonthlyRates", mock.Anything, mock.Anything)
}
