package climatology

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/rainyield/internal/logger"
	"github.com/stwalsh4118/rainyield/internal/models"
)

// MockClimatologyRepository is a mock implementation of ClimatologyRepository for testing
type MockClimatologyRepository struct {
	mock.Mock
}

func (m *MockClimatologyRepository) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockClimatologyRepository) Get(ctx context.Context, key string) (*models.ClimatologyRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	record, ok := args.Get(0).(*models.ClimatologyRecord)
	if !ok {
		return nil, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockClimatologyRepository) Put(ctx context.Context, record models.ClimatologyRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockClimatologyRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// countingSource returns result and counts calls.
type countingSource struct {
	result Result
	calls  int
}

func (s *countingSource) MonthlyRates(ctx context.Context, point models.GeoPoint) Result {
	s.calls++
	return s.result
}

func newTestCachedSource(repo *MockClimatologyRepository, next Source) *CachedSource {
	cs := NewCachedSource(repo, next, "PRECTOTCORR", time.Hour, logger.New("test"))
	cs.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return cs
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		name  string
		point models.GeoPoint
		want  string
	}{
		{"rounds to two places", models.GeoPoint{Lat: 12.97171, Lng: 77.59469}, "PRECTOTCORR:12.97:77.59"},
		{"rounds half away from zero", models.GeoPoint{Lat: 0.125, Lng: -0.125}, "PRECTOTCORR:0.13:-0.13"},
		{"negative zero folded", models.GeoPoint{Lat: -0.001, Lng: -0.004}, "PRECTOTCORR:0.00:0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CacheKey("PRECTOTCORR", tt.point))
		})
	}
}

func TestCachedSource_Hit(t *testing.T) {
	repo := new(MockClimatologyRepository)
	next := &countingSource{}
	cs := newTestCachedSource(repo, next)
	ctx := context.Background()

	rates := models.Climatology{models.January: 2}
	repo.On("Get", ctx, "PRECTOTCORR:12.97:77.59").
		Return(&models.ClimatologyRecord{Rates: rates}, nil)

	result := cs.MonthlyRates(ctx, models.GeoPoint{Lat: 12.9717, Lng: 77.5947})

	assert.True(t, result.OK())
	assert.True(t, result.Cached)
	assert.Equal(t, rates, result.Rates)
	assert.Equal(t, 0, next.calls)
	repo.AssertExpectations(t)
}

func TestCachedSource_MissStoresSuccess(t *testing.T) {
	repo := new(MockClimatologyRepository)
	rates := models.Climatology{models.June: 5}
	next := &countingSource{result: Result{Rates: rates}}
	cs := newTestCachedSource(repo, next)
	ctx := context.Background()

	fetchedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.On("Get", ctx, "PRECTOTCORR:1.00:2.00").Return(nil, nil)
	repo.On("Put", ctx, models.ClimatologyRecord{
		Key:       "PRECTOTCORR:1.00:2.00",
		Parameter: "PRECTOTCORR",
		Lat:       1,
		Lng:       2,
		Rates:     rates,
		FetchedAt: fetchedAt,
		ExpiresAt: fetchedAt.Add(time.Hour),
	}).Return(nil)

	result := cs.MonthlyRates(ctx, models.GeoPoint{Lat: 1.001, Lng: 1.999})

	assert.True(t, result.OK())
	assert.False(t, result.Cached)
	assert.Equal(t, 1, next.calls)
	repo.AssertExpectations(t)
}

func TestCachedSource_FailureNotStored(t *testing.T) {
	repo := new(MockClimatologyRepository)
	next := &countingSource{result: Failure(ErrUnavailable)}
	cs := newTestCachedSource(repo, next)
	ctx := context.Background()

	repo.On("Get", ctx, mock.Anything).Return(nil, nil)

	result := cs.MonthlyRates(ctx, models.GeoPoint{Lat: 1, Lng: 2})

	assert.ErrorIs(t, result.Err, ErrUnavailable)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCachedSource_RepositoryErrorsIgnored(t *testing.T) {
	repo := new(MockClimatologyRepository)
	rates := models.Climatology{models.May: 1}
	next := &countingSource{result: Result{Rates: rates}}
	cs := newTestCachedSource(repo, next)
	ctx := context.Background()

	repo.On("Get", ctx, mock.Anything).Return(nil, errors.New("connection refused"))
	repo.On("Put", ctx, mock.Anything).Return(errors.New("connection refused"))

	result := cs.MonthlyRates(ctx, models.GeoPoint{Lat: 1, Lng: 2})

	assert.True(t, result.OK())
	assert.Equal(t, rates, result.Rates)
	assert.Equal(t, 1, next.calls)
	repo.AssertExpectations(t)
}

func TestCachedSource_EmptyRecordTreatedAsMiss(t *testing.T) {
	repo := new(MockClimatologyRepository)
	rates := models.Climatology{models.May: 1}
	next := &countingSource{result: Result{Rates: rates}}
	cs := newTestCachedSource(repo, next)
	ctx := context.Background()

	repo.On("Get", ctx, mock.Anything).Return(&models.ClimatologyRecord{}, nil)
	repo.On("Put", ctx, mock.Anything).Return(nil)

	result := cs.MonthlyRates(ctx, models.GeoPoint{Lat: 1, Lng: 2})

	assert.False(t, result.Cached)
	assert.Equal(t, 1, next.calls)
}
