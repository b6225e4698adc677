package analytics

import (
	"github.com/fmalcolm/alpine-analytics/internal/models"
)

// RegressionConfig carries the regression engine parameters.
type RegressionConfig struct {
	MinSamples int
}

// RegressionRow pairs one race's z-score with the course characteristics the
// athlete faced. Nil traits simply drop that race from the trait's fit.
type RegressionRow struct {
	Z              float64
	GateCount      *float64
	VerticalDrop   *float64
	StartAltitude  *float64
	WinningTimeSec *float64
}

// ComputeCourseRegressions fits one independent simple linear regression of
// z-score on each course trait over an athlete's discipline history. Traits
// with fewer than cfg.MinSamples usable pairs, or with no variance, emit no
// record: an unreliable fit is worse than none.
func ComputeCourseRegressions(athleteID, name string, discipline models.Discipline, rows []RegressionRow, cfg RegressionConfig) []models.RegressionRecord {
	traits := []struct {
		trait models.CourseTrait
		get   func(RegressionRow) *float64
	}{
		{models.TraitGateCount, func(r RegressionRow) *float64 { return r.GateCount }},
		{models.TraitVerticalDrop, func(r RegressionRow) *float64 { return r.VerticalDrop }},
		{models.TraitStartAltitude, func(r RegressionRow) *float64 { return r.StartAltitude }},
		{models.TraitWinningTime, func(r RegressionRow) *float64 { return r.WinningTimeSec }},
	}

	var records []models.RegressionRecord
	for _, t := range traits {
		var x, y []float64
		for _, row := range rows {
			v := t.get(row)
			if v == nil {
				continue
			}
			x = append(x, *v)
			y = append(y, row.Z)
		}
		if len(x) < cfg.MinSamples {
			continue
		}
		slope, r2, ok := linearFit(x, y)
		if !ok {
			continue
		}
		records = append(records, models.RegressionRecord{
			AthleteID:   athleteID,
			Discipline:  discipline,
			Trait:       t.trait,
			Name:        name,
			Coefficient: slope,
			RSquared:    r2,
			SampleCount: len(x),
		})
	}
	return records
}
