package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmalcolm/alpine-analytics/internal/models"
)

// advantageRows fabricates n races for one country/sex/discipline group, each
// contributing a single result with the given points. Home races host in the
// athlete's country, away races elsewhere.
func advantageRows(country, sex string, disc models.Discipline, home bool, n int, points float64) []AdvantageRow {
	basis := "SUI"
	prefix := "away"
	if home {
		basis = country
		prefix = "home"
	}
	rows := make([]AdvantageRow, n)
	for i := range rows {
		rows[i] = AdvantageRow{
			RaceID:       fmt.Sprintf("%s-%s-%d", country, prefix, i),
			Country:      country,
			Sex:          sex,
			Discipline:   disc,
			BasisCountry: basis,
			FISPoints:    points,
		}
	}
	return rows
}

func TestComputeAdvantagesPctDiff(t *testing.T) {
	rows := append(
		advantageRows("AUT", "M", models.DisciplineSlalom, true, 5, 15.3),
		advantageRows("AUT", "M", models.DisciplineSlalom, false, 5, 18.2)...,
	)

	records := ComputeAdvantages(models.BasisHostCountry, rows, AdvantageConfig{MinRaces: 5})
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "AUT", rec.Country)
	assert.Equal(t, 5, rec.HomeRaceCount)
	assert.Equal(t, 5, rec.AwayRaceCount)
	assert.InDelta(t, 15.3, rec.HomeAvgPoints, 1e-9)
	assert.InDelta(t, 18.2, rec.AwayAvgPoints, 1e-9)
	require.NotNil(t, rec.PctDiff)
	assert.InDelta(t, (15.3-18.2)/18.2*100, *rec.PctDiff, 1e-9)
	assert.Negative(t, *rec.PctDiff, "lower points at home is an advantage")
}

func TestComputeAdvantagesMinimumRaces(t *testing.T) {
	// 4 home races against a minimum of 5: the group is suppressed even
	// though the away side qualifies.
	rows := append(
		advantageRows("NOR", "F", models.DisciplineDownhill, true, 4, 10.0),
		advantageRows("NOR", "F", models.DisciplineDownhill, false, 8, 12.0)...,
	)

	records := ComputeAdvantages(models.BasisHostCountry, rows, AdvantageConfig{MinRaces: 5})
	assert.Empty(t, records)
}

func TestComputeAdvantagesDistinctRaces(t *testing.T) {
	// Many results in the same race count as one race toward the minimum.
	var rows []AdvantageRow
	for i := 0; i < 10; i++ {
		rows = append(rows, AdvantageRow{
			RaceID:       "same-race",
			Country:      "ITA",
			Sex:          "M",
			Discipline:   models.DisciplineGiantSlalom,
			BasisCountry: "ITA",
			FISPoints:    20.0,
		})
	}
	rows = append(rows, advantageRows("ITA", "M", models.DisciplineGiantSlalom, false, 5, 22.0)...)

	records := ComputeAdvantages(models.BasisHostCountry, rows, AdvantageConfig{MinRaces: 2})
	assert.Empty(t, records, "one distinct home race cannot satisfy a minimum of two")
}

func TestComputeAdvantagesZeroAwayAverage(t *testing.T) {
	rows := append(
		advantageRows("GER", "M", models.DisciplineSuperG, true, 3, 5.0),
		advantageRows("GER", "M", models.DisciplineSuperG, false, 3, 0.0)...,
	)

	records := ComputeAdvantages(models.BasisHostCountry, rows, AdvantageConfig{MinRaces: 3})
	require.Len(t, records, 1)
	assert.Nil(t, records[0].PctDiff, "percentage difference is undefined against a zero away average")
	assert.InDelta(t, 0.0, records[0].AwayAvgPoints, 1e-9)
}

func TestComputeAdvantagesCountryNormalization(t *testing.T) {
	rows := []AdvantageRow{
		{RaceID: "r1", Country: "aut ", Sex: "M", Discipline: models.DisciplineSlalom, BasisCountry: "AUT", FISPoints: 10},
		{RaceID: "r2", Country: "AUT", Sex: "M", Discipline: models.DisciplineSlalom, BasisCountry: "FRA", FISPoints: 14},
	}

	records := ComputeAdvantages(models.BasisHostCountry, rows, AdvantageConfig{MinRaces: 1})
	require.Len(t, records, 1)
	assert.Equal(t, "AUT", records[0].Country)
	assert.Equal(t, 1, records[0].HomeRaceCount)
	assert.Equal(t, 1, records[0].AwayRaceCount)
}

func TestComputeAdvantagesGroupsAreIndependent(t *testing.T) {
	rows := append(
		advantageRows("AUT", "M", models.DisciplineSlalom, true, 3, 8.0),
		advantageRows("AUT", "M", models.DisciplineSlalom, false, 3, 9.0)...,
	)
	rows = append(rows, advantageRows("AUT", "F", models.DisciplineSlalom, true, 3, 30.0)...)
	rows = append(rows, advantageRows("AUT", "F", models.DisciplineSlalom, false, 3, 20.0)...)

	records := ComputeAdvantages(models.BasisHostCountry, rows, AdvantageConfig{MinRaces: 3})
	require.Len(t, records, 2)

	// Sorted by country, sex, discipline.
	assert.Equal(t, "F", records[0].Sex)
	assert.Equal(t, "M", records[1].Sex)
	require.NotNil(t, records[0].PctDiff)
	require.NotNil(t, records[1].PctDiff)
	assert.Positive(t, *records[0].PctDiff)
	assert.Negative(t, *records[1].PctDiff)
}
