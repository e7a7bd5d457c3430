package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_WithinNormalDeviation(t *testing.T) {
	cases := []struct {
		name      string
		observed  float64
		neighbors []float64
	}{
		{"matches neighbors exactly", 100, []float64{100, 100, 100}},
		{"at half the neighbor average", 50, []float64{100, 100}},
		{"at twice the neighbor average", 200, []float64{100, 100}},
		{"slightly above average", 110, []float64{95, 105, 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Score("@2554", PM25, tc.observed, tc.neighbors)
			assert.Equal(t, 100.0, result.Score)
			assert.False(t, result.IsQuarantined)
			assert.Empty(t, result.Reason)
		})
	}
}

func TestScore_HighDeviationQuarantines(t *testing.T) {
	// 10x the neighbor average: ratio 10, excess 8, penalty (8/3)*80 caps at 0.
	result := Score("@2554", PM25, 1000, []float64{100, 100, 100})

	require.True(t, result.IsQuarantined)
	assert.Equal(t, 0.0, result.Score)
	assert.Contains(t, result.Reason, "deviation ratio 10.0000")
	require.NotNil(t, result.DeviationRatio)
	assert.Equal(t, 10.0, *result.DeviationRatio)
}

func TestScore_ModerateDeviationDecaysLinearly(t *testing.T) {
	t.Run("3x average scores above threshold", func(t *testing.T) {
		// ratio 3, excess 1, score 100 - (1/3)*80 = 73.33
		result := Score("@2554", NO2, 300, []float64{100})
		assert.InDelta(t, 73.33, result.Score, 0.01)
		assert.False(t, result.IsQuarantined)
	})

	t.Run("low reading decays on its own slope", func(t *testing.T) {
		// ratio 0.25, deficit 0.25, score 100 - (0.25/0.5)*60 = 70
		result := Score("@2554", NO2, 25, []float64{100})
		assert.Equal(t, 70.0, result.Score)
		assert.False(t, result.IsQuarantined)
	})

	t.Run("very low reading quarantines", func(t *testing.T) {
		// ratio 0.05, deficit 0.45, score 100 - 54 = 46
		result := Score("@2554", NO2, 5, []float64{100})
		assert.Equal(t, 46.0, result.Score)
		assert.True(t, result.IsQuarantined)
	})
}

func TestScore_NoNeighbors(t *testing.T) {
	result := Score("@2554", PM25, 85, nil)

	assert.Equal(t, neutralScore, result.Score)
	assert.False(t, result.IsQuarantined)
	assert.Nil(t, result.NeighborAverage)
	assert.Nil(t, result.DeviationRatio)
}

func TestScore_InvalidNeighborsFilteredOut(t *testing.T) {
	t.Run("all neighbors invalid means no neighbors", func(t *testing.T) {
		result := Score("@2554", PM25, 85, []float64{math.NaN(), math.Inf(1), -5})
		assert.Equal(t, neutralScore, result.Score)
		assert.Nil(t, result.NeighborAverage)
	})

	t.Run("invalid values do not skew the average", func(t *testing.T) {
		result := Score("@2554", PM25, 100, []float64{100, math.NaN(), 100})
		assert.Equal(t, 100.0, result.Score)
		require.NotNil(t, result.NeighborAverage)
		assert.Equal(t, 100.0, *result.NeighborAverage)
	})
}

func TestScore_ZeroNeighborAverage(t *testing.T) {
	t.Run("zero observed agrees with zero neighbors", func(t *testing.T) {
		result := Score("@2554", SO2, 0, []float64{0, 0})
		assert.Equal(t, 100.0, result.Score)
		assert.False(t, result.IsQuarantined)
	})

	t.Run("nonzero observed against zero neighbors quarantines", func(t *testing.T) {
		result := Score("@2554", SO2, 40, []float64{0, 0})
		assert.Equal(t, 20.0, result.Score)
		require.True(t, result.IsQuarantined)
		require.NotNil(t, result.DeviationRatio)
		assert.True(t, math.IsInf(*result.DeviationRatio, 1))
	})
}

func TestScore_NaNObserved(t *testing.T) {
	result := Score("@2554", PM25, math.NaN(), []float64{100})

	require.True(t, result.IsQuarantined)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, "observed value is not a valid number", result.Reason)
}

func TestScoreAllPollutants(t *testing.T) {
	reading := Reading{
		StationID: "@2554",
		Pollutants: map[Pollutant]float64{
			PM25: 100,
			NO2:  500, // 10x the neighbor value
		},
	}
	neighbors := []Reading{
		{StationID: "@2556", Pollutants: map[Pollutant]float64{PM25: 95, NO2: 50}},
		{StationID: "@2560", Pollutants: map[Pollutant]float64{PM25: 105, NO2: 50}},
	}

	results := ScoreAllPollutants("@2554", reading, neighbors)

	require.Len(t, results, 2)
	assert.False(t, results[PM25].IsQuarantined)
	assert.Equal(t, 100.0, results[PM25].Score)
	assert.True(t, results[NO2].IsQuarantined)
}
