package analytics

import (
	"sort"

	"github.com/fmalcolm/alpine-analytics/internal/models"
)

// DifficultyWeights are the fixed component weights of the difficulty index.
// They are renormalized per course over whichever components have data.
type DifficultyWeights struct {
	DNFRate       float64
	WinningTime   float64
	VerticalDrop  float64
	GateCount     float64
	StartAltitude float64
}

// DifficultyConfig carries the difficulty engine parameters. Components are
// normalized per discipline by clipping to [LowerQuantile, UpperQuantile]
// quantiles and scaling to 0-100; courses with fewer than MinRaces races are
// flagged low-confidence rather than dropped.
type DifficultyConfig struct {
	MinRaces      int
	LowerQuantile float64
	UpperQuantile float64
	Weights       DifficultyWeights
}

// CourseAggregate is the raw per-course summary the index is computed from.
type CourseAggregate struct {
	Location   string
	Country    string
	Discipline models.Discipline

	RaceCount int
	DNFRate   float64

	AvgWinningTimeSec  *float64
	WinningTimeSamples int

	AvgGateCount     *float64
	GateCountSamples int

	AvgStartAltitude     *float64
	StartAltitudeSamples int

	AvgVerticalDrop     *float64
	VerticalDropSamples int
}

// AggregateCourses rolls every race at each (location, discipline) course
// into one CourseAggregate. A race's DNF rate is its non-finisher fraction
// over all starters; the winning time is the parsed final time of the rank-1
// row. Races without results contribute nothing.
func AggregateCourses(races []models.Race, resultsByRace map[string][]models.RaceResult) []CourseAggregate {
	type courseKey struct {
		location   string
		discipline models.Discipline
	}
	type courseAcc struct {
		country       string
		raceCount     int
		dnfRateSum    float64
		winningTimes  []float64
		gateCounts    []float64
		startAlts     []float64
		verticalDrops []float64
	}

	byCourse := make(map[courseKey]*courseAcc)
	for _, race := range races {
		results := resultsByRace[race.RaceID]
		if len(results) == 0 {
			continue
		}

		key := courseKey{location: race.Location, discipline: race.Discipline}
		acc := byCourse[key]
		if acc == nil {
			acc = &courseAcc{country: race.Country}
			byCourse[key] = acc
		}

		// DNF rate counts on rank alone: a finisher with unparseable points
		// is still a finisher.
		nonFinishers := 0
		for _, r := range results {
			if _, ok := ParseRank(r.Rank); !ok {
				nonFinishers++
			}
		}
		acc.raceCount++
		acc.dnfRateSum += float64(nonFinishers) / float64(len(results))

		if wt, ok := raceWinningTime(results); ok {
			acc.winningTimes = append(acc.winningTimes, wt)
		}
		if race.GateCount != nil {
			acc.gateCounts = append(acc.gateCounts, *race.GateCount)
		}
		if race.StartAltitude != nil {
			acc.startAlts = append(acc.startAlts, *race.StartAltitude)
		}
		if race.VerticalDrop != nil {
			acc.verticalDrops = append(acc.verticalDrops, *race.VerticalDrop)
		}
	}

	aggs := make([]CourseAggregate, 0, len(byCourse))
	for key, acc := range byCourse {
		agg := CourseAggregate{
			Location:             key.location,
			Country:              acc.country,
			Discipline:           key.discipline,
			RaceCount:            acc.raceCount,
			DNFRate:              acc.dnfRateSum / float64(acc.raceCount),
			WinningTimeSamples:   len(acc.winningTimes),
			GateCountSamples:     len(acc.gateCounts),
			StartAltitudeSamples: len(acc.startAlts),
			VerticalDropSamples:  len(acc.verticalDrops),
		}
		if len(acc.winningTimes) > 0 {
			agg.AvgWinningTimeSec = ptr(mean(acc.winningTimes))
		}
		if len(acc.gateCounts) > 0 {
			agg.AvgGateCount = ptr(mean(acc.gateCounts))
		}
		if len(acc.startAlts) > 0 {
			agg.AvgStartAltitude = ptr(mean(acc.startAlts))
		}
		if len(acc.verticalDrops) > 0 {
			agg.AvgVerticalDrop = ptr(mean(acc.verticalDrops))
		}
		aggs = append(aggs, agg)
	}

	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].Discipline != aggs[j].Discipline {
			return aggs[i].Discipline < aggs[j].Discipline
		}
		return aggs[i].Location < aggs[j].Location
	})
	return aggs
}

func raceWinningTime(results []models.RaceResult) (float64, bool) {
	for _, r := range results {
		if rank, ok := ParseRank(r.Rank); ok && rank == 1 {
			return ParseFinalTime(r.FinalTime)
		}
	}
	return 0, false
}

// ComputeDifficultyIndex normalizes each component within its discipline and
// combines them into the 0-100 index. A component missing for a course drops
// out of that course's weighted sum and the remaining weights are rescaled.
func ComputeDifficultyIndex(aggs []CourseAggregate, cfg DifficultyConfig) []models.CourseDifficultyRecord {
	records := make([]models.CourseDifficultyRecord, len(aggs))
	for i, agg := range aggs {
		records[i] = models.CourseDifficultyRecord{
			Location:             agg.Location,
			Country:              agg.Country,
			Discipline:           agg.Discipline,
			RaceCount:            agg.RaceCount,
			DNFRate:              agg.DNFRate,
			AvgWinningTimeSec:    agg.AvgWinningTimeSec,
			WinningTimeSamples:   agg.WinningTimeSamples,
			AvgGateCount:         agg.AvgGateCount,
			GateCountSamples:     agg.GateCountSamples,
			AvgStartAltitude:     agg.AvgStartAltitude,
			StartAltitudeSamples: agg.StartAltitudeSamples,
			AvgVerticalDrop:      agg.AvgVerticalDrop,
			VerticalDropSamples:  agg.VerticalDropSamples,
			LowConfidence:        agg.RaceCount < cfg.MinRaces,
		}
	}

	// Normalization pools are per discipline: a Slalom course is only steep
	// or flat relative to other Slalom courses.
	byDiscipline := make(map[models.Discipline][]int)
	for i, agg := range aggs {
		byDiscipline[agg.Discipline] = append(byDiscipline[agg.Discipline], i)
	}

	for _, indices := range byDiscipline {
		normalizeComponent(records, indices, cfg,
			func(r *models.CourseDifficultyRecord) *float64 { return ptr(r.DNFRate) },
			func(r *models.CourseDifficultyRecord, v *float64) { r.DNFRateNorm = v })
		normalizeComponent(records, indices, cfg,
			func(r *models.CourseDifficultyRecord) *float64 { return r.AvgWinningTimeSec },
			func(r *models.CourseDifficultyRecord, v *float64) { r.WinningTimeNorm = v })
		normalizeComponent(records, indices, cfg,
			func(r *models.CourseDifficultyRecord) *float64 { return r.AvgVerticalDrop },
			func(r *models.CourseDifficultyRecord, v *float64) { r.VerticalDropNorm = v })
		normalizeComponent(records, indices, cfg,
			func(r *models.CourseDifficultyRecord) *float64 { return r.AvgGateCount },
			func(r *models.CourseDifficultyRecord, v *float64) { r.GateCountNorm = v })
		normalizeComponent(records, indices, cfg,
			func(r *models.CourseDifficultyRecord) *float64 { return r.AvgStartAltitude },
			func(r *models.CourseDifficultyRecord, v *float64) { r.StartAltitudeNorm = v })
	}

	for i := range records {
		records[i].DifficultyIndex = weightedIndex(&records[i], cfg.Weights)
	}
	return records
}

// normalizeComponent clips one component to the configured quantiles across
// the discipline's courses and scales it to 0-100. A constant component maps
// every course to 50.
func normalizeComponent(records []models.CourseDifficultyRecord, indices []int, cfg DifficultyConfig,
	get func(*models.CourseDifficultyRecord) *float64,
	set func(*models.CourseDifficultyRecord, *float64)) {

	values := make([]float64, 0, len(indices))
	for _, i := range indices {
		if v := get(&records[i]); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return
	}

	low := quantile(values, cfg.LowerQuantile)
	high := quantile(values, cfg.UpperQuantile)

	for _, i := range indices {
		v := get(&records[i])
		if v == nil {
			continue
		}
		if high <= low {
			set(&records[i], ptr(50))
			continue
		}
		clipped := *v
		if clipped < low {
			clipped = low
		}
		if clipped > high {
			clipped = high
		}
		set(&records[i], ptr(100*(clipped-low)/(high-low)))
	}
}

func weightedIndex(r *models.CourseDifficultyRecord, w DifficultyWeights) float64 {
	sum, weightSum := 0.0, 0.0
	add := func(norm *float64, weight float64) {
		if norm != nil {
			sum += weight * *norm
			weightSum += weight
		}
	}
	add(r.DNFRateNorm, w.DNFRate)
	add(r.WinningTimeNorm, w.WinningTime)
	add(r.VerticalDropNorm, w.VerticalDrop)
	add(r.GateCountNorm, w.GateCount)
	add(r.StartAltitudeNorm, w.StartAltitude)
	if weightSum == 0 {
		return 0
	}
	index := sum / weightSum
	if index < 0 {
		index = 0
	}
	if index > 100 {
		index = 100
	}
	return index
}
