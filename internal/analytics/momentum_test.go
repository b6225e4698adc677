package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmalcolm/alpine-analytics/internal/models"
)

func momentumCfg() MomentumConfig {
	return MomentumConfig{
		Lambda:          0.3,
		HotThreshold:    1.0,
		ColdThreshold:   -1.0,
		MinObservations: 2,
	}
}

func obsAt(day int, raceID string, z float64) MomentumObservation {
	return MomentumObservation{
		RaceID: raceID,
		Date:   time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
		Z:      z,
	}
}

// The exact recursion with lambda=0.3 over z-scores [2.1, -0.3, 1.0]:
// mu2 = 0.7*2.1 + 0.3*(-0.3), var2 = 0.7*0 + 0.3*(-0.3-mu2)^2, and so on.
// A windowed or batch approximation would not match these values.
func TestComputeMomentumSeriesReferenceRecursion(t *testing.T) {
	obs := []MomentumObservation{
		obsAt(1, "r1", 2.1),
		obsAt(8, "r2", -0.3),
		obsAt(15, "r3", 1.0),
	}

	records := ComputeMomentumSeries("10001", "A. Steiner", models.DisciplineSlalom, obs, momentumCfg())
	require.Len(t, records, 3)

	// Race 1: state seeded, momentum undefined.
	assert.Equal(t, 1, records[0].Seq)
	assert.InDelta(t, 2.1, records[0].EwmaZ, 1e-12)
	assert.Zero(t, records[0].EwstdZ)
	assert.Nil(t, records[0].MomentumZ)
	assert.Equal(t, models.TrendUnknown, records[0].Trend)

	// Race 2.
	mu2 := 0.7*2.1 + 0.3*(-0.3)
	var2 := 0.3 * (-0.3 - mu2) * (-0.3 - mu2)
	require.NotNil(t, records[1].MomentumZ)
	assert.InDelta(t, mu2, records[1].EwmaZ, 1e-12)
	assert.InDelta(t, math.Sqrt(var2), records[1].EwstdZ, 1e-12)
	assert.InDelta(t, mu2/math.Sqrt(var2), *records[1].MomentumZ, 1e-12)

	// Race 3 continues the recursion from the race 2 state.
	mu3 := 0.7*mu2 + 0.3*1.0
	var3 := 0.7*var2 + 0.3*(1.0-mu3)*(1.0-mu3)
	require.NotNil(t, records[2].MomentumZ)
	assert.InDelta(t, mu3, records[2].EwmaZ, 1e-12)
	assert.InDelta(t, mu3/math.Sqrt(var3), *records[2].MomentumZ, 1e-12)
}

func TestComputeMomentumSeriesSingleRace(t *testing.T) {
	records := ComputeMomentumSeries("10001", "A. Steiner", models.DisciplineSlalom,
		[]MomentumObservation{obsAt(1, "r1", 1.5)}, momentumCfg())

	require.Len(t, records, 1)
	assert.Nil(t, records[0].MomentumZ)
	assert.Nil(t, records[0].MomentumPoints)
}

func TestComputeMomentumSeriesIdempotent(t *testing.T) {
	obs := []MomentumObservation{
		obsAt(1, "r1", 0.4),
		obsAt(3, "r2", -1.2),
		obsAt(9, "r3", 0.9),
		obsAt(20, "r4", 2.2),
	}

	first := ComputeMomentumSeries("x", "X", models.DisciplineGiantSlalom, obs, momentumCfg())
	second := ComputeMomentumSeries("x", "X", models.DisciplineGiantSlalom, obs, momentumCfg())
	assert.Equal(t, first, second)
}

func TestComputeMomentumSeriesSortsObservations(t *testing.T) {
	ordered := []MomentumObservation{
		obsAt(1, "r1", 2.1),
		obsAt(8, "r2", -0.3),
		obsAt(15, "r3", 1.0),
	}
	shuffled := []MomentumObservation{ordered[2], ordered[0], ordered[1]}

	assert.Equal(t,
		ComputeMomentumSeries("x", "X", models.DisciplineSlalom, ordered, momentumCfg()),
		ComputeMomentumSeries("x", "X", models.DisciplineSlalom, shuffled, momentumCfg()))
}

func TestComputeMomentumSeriesZeroVariance(t *testing.T) {
	// Identical z-scores accumulate no variance: momentum must stay nil, not
	// divide by zero.
	obs := []MomentumObservation{
		obsAt(1, "r1", 0.8),
		obsAt(2, "r2", 0.8),
		obsAt(3, "r3", 0.8),
	}

	records := ComputeMomentumSeries("x", "X", models.DisciplineSlalom, obs, momentumCfg())
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Nil(t, rec.MomentumZ)
	}
}

func TestTrendClassification(t *testing.T) {
	cfg := momentumCfg()

	tests := []struct {
		name     string
		momentum *float64
		expected models.TrendLabel
	}{
		{name: "Hot above threshold", momentum: ptr(1.5), expected: models.TrendHot},
		{name: "Cold below threshold", momentum: ptr(-1.5), expected: models.TrendCold},
		{name: "Neutral inside band", momentum: ptr(0.2), expected: models.TrendNeutral},
		{name: "Exactly at threshold is neutral", momentum: ptr(1.0), expected: models.TrendNeutral},
		{name: "Undefined", momentum: nil, expected: models.TrendUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyTrend(tt.momentum, cfg))
		})
	}
}
