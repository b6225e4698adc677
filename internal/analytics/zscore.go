package analytics

import (
	"github.com/fmalcolm/alpine-analytics/internal/models"
)

// FieldStats summarizes the finisher field of one race. A finisher is a row
// with a parseable ordinal rank and numeric FIS points; DNF/DSQ rows and rows
// with unparseable points are excluded from field statistics.
type FieldStats struct {
	Finishers int
	Mean      float64
	Std       float64
}

// ComputeFieldStats partitions one race's results and computes the finisher
// mean and sample standard deviation of FIS points.
func ComputeFieldStats(results []models.RaceResult) FieldStats {
	points := finisherPoints(results)
	return FieldStats{
		Finishers: len(points),
		Mean:      mean(points),
		Std:       sampleStd(points),
	}
}

// ComputeRaceZScores standardizes every finisher of one race against the
// field: z = (field mean - points) / field std, so beating the field (lower
// points) yields a positive z. Races with fewer than two finishers produce no
// records; a zero-variance field produces records with a nil z.
func ComputeRaceZScores(results []models.RaceResult) []models.RaceZScore {
	stats := ComputeFieldStats(results)
	if stats.Finishers < 2 {
		return nil
	}

	records := make([]models.RaceZScore, 0, stats.Finishers)
	for _, r := range results {
		if !isFinisher(r) {
			continue
		}
		vsField := stats.Mean - *r.FISPoints
		rec := models.RaceZScore{
			RaceID:        r.RaceID,
			AthleteID:     r.AthleteID,
			Name:          r.Name,
			FieldSize:     stats.Finishers,
			FieldMean:     ptr(stats.Mean),
			FieldStd:      ptr(stats.Std),
			PointsVsField: ptr(vsField),
		}
		if stats.Std > 0 {
			rec.ZScore = ptr(vsField / stats.Std)
		}
		records = append(records, rec)
	}
	return records
}

func isFinisher(r models.RaceResult) bool {
	if r.FISPoints == nil {
		return false
	}
	_, ok := ParseRank(r.Rank)
	return ok
}

func finisherPoints(results []models.RaceResult) []float64 {
	points := make([]float64, 0, len(results))
	for _, r := range results {
		if isFinisher(r) {
			points = append(points, *r.FISPoints)
		}
	}
	return points
}

func ptr(v float64) *float64 {
	return &v
}
