package analytics

import (
	"sort"

	"github.com/fmalcolm/alpine-analytics/internal/models"
)

// AdvantageConfig carries the advantage engine parameters. MinRaces applies
// to each partition separately: a country needs enough home AND away races
// before a row is emitted.
type AdvantageConfig struct {
	MinRaces int
}

// AdvantageRow is one athlete result joined with the nationality being
// compared against: the host country, or the effective course setter's
// country, depending on the basis.
type AdvantageRow struct {
	RaceID       string
	Country      string
	Sex          string
	Discipline   models.Discipline
	BasisCountry string
	FISPoints    float64
}

// ComputeAdvantages partitions each (country, sex, discipline) group's rows
// into home (athlete country matches the basis country) and away, and
// compares mean FIS points across the partitions. Lower points are better, so
// a negative percentage difference marks a home advantage.
func ComputeAdvantages(basis models.AdvantageBasis, rows []AdvantageRow, cfg AdvantageConfig) []models.AdvantageRecord {
	type groupKey struct {
		country    string
		sex        string
		discipline models.Discipline
	}
	type partition struct {
		pointsSum float64
		rowCount  int
		races     map[string]struct{}
	}
	type group struct {
		home partition
		away partition
	}

	groups := make(map[groupKey]*group)
	for _, row := range rows {
		country := normalizeCountry(row.Country)
		if country == "" {
			continue
		}
		key := groupKey{country: country, sex: row.Sex, discipline: row.Discipline}
		g := groups[key]
		if g == nil {
			g = &group{
				home: partition{races: make(map[string]struct{})},
				away: partition{races: make(map[string]struct{})},
			}
			groups[key] = g
		}
		p := &g.away
		if country == normalizeCountry(row.BasisCountry) {
			p = &g.home
		}
		p.pointsSum += row.FISPoints
		p.rowCount++
		p.races[row.RaceID] = struct{}{}
	}

	var records []models.AdvantageRecord
	for key, g := range groups {
		if len(g.home.races) < cfg.MinRaces || len(g.away.races) < cfg.MinRaces {
			continue
		}
		homeAvg := g.home.pointsSum / float64(g.home.rowCount)
		awayAvg := g.away.pointsSum / float64(g.away.rowCount)
		rec := models.AdvantageRecord{
			Basis:         basis,
			Country:       key.country,
			Sex:           key.sex,
			Discipline:    key.discipline,
			HomeRaceCount: len(g.home.races),
			AwayRaceCount: len(g.away.races),
			HomeAvgPoints: homeAvg,
			AwayAvgPoints: awayAvg,
		}
		if awayAvg != 0 {
			rec.PctDiff = ptr((homeAvg - awayAvg) / awayAvg * 100)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Country != records[j].Country {
			return records[i].Country < records[j].Country
		}
		if records[i].Sex != records[j].Sex {
			return records[i].Sex < records[j].Sex
		}
		return records[i].Discipline < records[j].Discipline
	})
	return records
}
