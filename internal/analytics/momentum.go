package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/fmalcolm/alpine-analytics/internal/models"
)

// MomentumConfig carries the exponential-decay and classification parameters
// for the momentum engine. Lambda is the weight given to the newest
// observation, in (0, 1).
type MomentumConfig struct {
	Lambda          float64
	HotThreshold    float64
	ColdThreshold   float64
	MinObservations int
}

// MomentumObservation is one defined z-score in an athlete-discipline series.
// PointsVsField feeds the parallel raw-points momentum stream.
type MomentumObservation struct {
	RaceID        string
	Date          time.Time
	Z             float64
	PointsVsField float64
}

// ewState is the fold state of one exponentially weighted stream.
type ewState struct {
	mu     float64
	sigma2 float64
	n      int
}

// step advances the recursion by one observation. The variance update uses
// the already-updated mean, matching the reference recursion downstream
// consumers were calibrated against.
func (s *ewState) step(x, lambda float64) {
	if s.n == 0 {
		s.mu = x
		s.sigma2 = 0
		s.n = 1
		return
	}
	s.mu = (1-lambda)*s.mu + lambda*x
	d := x - s.mu
	s.sigma2 = (1-lambda)*s.sigma2 + lambda*d*d
	s.n++
}

// momentum is mu/sqrt(sigma2), or nil while the series is too short or has
// accumulated no variance.
func (s *ewState) momentum(minObs int) *float64 {
	if s.n < minObs || s.sigma2 <= 0 {
		return nil
	}
	return ptr(s.mu / math.Sqrt(s.sigma2))
}

// ComputeMomentumSeries folds one athlete-discipline z-score sequence into
// momentum records, oldest observation first. The fold is inherently
// sequential: each record depends on the full prior state, so a changed
// historical z-score invalidates everything after it and the caller replaces
// the whole series. Observations are sorted here so callers cannot feed the
// recursion out of order.
func ComputeMomentumSeries(athleteID, name string, discipline models.Discipline, obs []MomentumObservation, cfg MomentumConfig) []models.MomentumRecord {
	if len(obs) == 0 {
		return nil
	}
	sorted := make([]MomentumObservation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].RaceID < sorted[j].RaceID
	})

	var zState, pointsState ewState
	records := make([]models.MomentumRecord, 0, len(sorted))
	for i, o := range sorted {
		zState.step(o.Z, cfg.Lambda)
		pointsState.step(o.PointsVsField, cfg.Lambda)

		momentumZ := zState.momentum(cfg.MinObservations)
		rec := models.MomentumRecord{
			AthleteID:      athleteID,
			Discipline:     discipline,
			RaceID:         o.RaceID,
			Name:           name,
			RaceDate:       o.Date,
			Seq:            i + 1,
			ZScore:         o.Z,
			EwmaZ:          zState.mu,
			EwstdZ:         math.Sqrt(zState.sigma2),
			MomentumZ:      momentumZ,
			Trend:          classifyTrend(momentumZ, cfg),
			EwmaPoints:     pointsState.mu,
			EwstdPoints:    math.Sqrt(pointsState.sigma2),
			MomentumPoints: pointsState.momentum(cfg.MinObservations),
		}
		records = append(records, rec)
	}
	return records
}

func classifyTrend(momentum *float64, cfg MomentumConfig) models.TrendLabel {
	if momentum == nil {
		return models.TrendUnknown
	}
	switch {
	case *momentum > cfg.HotThreshold:
		return models.TrendHot
	case *momentum < cfg.ColdThreshold:
		return models.TrendCold
	default:
		return models.TrendNeutral
	}
}
