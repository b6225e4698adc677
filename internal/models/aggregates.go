package models

import (
	"time"
)

// TrendLabel classifies an athlete's current momentum.
type TrendLabel string

const (
	TrendHot     TrendLabel = "hot"
	TrendCold    TrendLabel = "cold"
	TrendNeutral TrendLabel = "neutral"
	// TrendUnknown marks records whose momentum is still undefined.
	TrendUnknown TrendLabel = ""
)

// RaceZScore is the standardized performance of one finisher within one
// race's field. ZScore is nil when the field had fewer than two finishers or
// zero points variance.
type RaceZScore struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RaceID        string    `gorm:"not null;uniqueIndex:idx_z_race_athlete,priority:1" json:"race_id"`
	AthleteID     string    `gorm:"not null;uniqueIndex:idx_z_race_athlete,priority:2;index" json:"athlete_id"`
	Name          string    `json:"name"`
	ZScore        *float64  `json:"z_score"`
	FieldSize     int       `json:"field_size"`
	FieldMean     *float64  `json:"field_mean"`
	FieldStd      *float64  `json:"field_std"`
	PointsVsField *float64  `json:"points_vs_field"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (RaceZScore) TableName() string {
	return "agg_race_z_scores"
}

// MomentumRecord is one step of an athlete-discipline momentum series. Seq is
// the chronological position within the series; the whole series is replaced
// whenever any of the athlete's z-scores in that discipline change.
type MomentumRecord struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	AthleteID  string     `gorm:"not null;uniqueIndex:idx_mom_key,priority:1" json:"athlete_id"`
	Discipline Discipline `gorm:"not null;uniqueIndex:idx_mom_key,priority:2" json:"discipline"`
	RaceID     string     `gorm:"not null;uniqueIndex:idx_mom_key,priority:3" json:"race_id"`
	Name       string     `json:"name"`
	RaceDate   time.Time  `gorm:"not null" json:"race_date"`
	Seq        int        `gorm:"not null" json:"seq"`
	ZScore     float64    `json:"z_score"`
	EwmaZ      float64    `json:"ewma_z"`
	EwstdZ     float64    `json:"ewstd_z"`
	MomentumZ  *float64   `json:"momentum_z"`
	Trend      TrendLabel `gorm:"type:varchar(16)" json:"trend"`

	// Same recursion over raw FIS points, sign-flipped so positive still
	// means improving form.
	EwmaPoints     float64  `json:"ewma_points"`
	EwstdPoints    float64  `json:"ewstd_points"`
	MomentumPoints *float64 `json:"momentum_points"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (MomentumRecord) TableName() string {
	return "agg_momentum"
}

// CourseDifficultyRecord aggregates every race held at one (location,
// discipline) course into a composite 0-100 difficulty index. Normalized
// component columns are nil when the underlying metric had no samples.
type CourseDifficultyRecord struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Location   string     `gorm:"not null;uniqueIndex:idx_course_diff,priority:1" json:"location"`
	Discipline Discipline `gorm:"not null;uniqueIndex:idx_course_diff,priority:2" json:"discipline"`
	Country    string     `json:"country"`

	RaceCount int     `json:"race_count"`
	DNFRate   float64 `json:"dnf_rate"`

	AvgWinningTimeSec    *float64 `json:"avg_winning_time_sec"`
	WinningTimeSamples   int      `json:"winning_time_samples"`
	AvgGateCount         *float64 `json:"avg_gate_count"`
	GateCountSamples     int      `json:"gate_count_samples"`
	AvgStartAltitude     *float64 `json:"avg_start_altitude"`
	StartAltitudeSamples int      `json:"start_altitude_samples"`
	AvgVerticalDrop      *float64 `json:"avg_vertical_drop"`
	VerticalDropSamples  int      `json:"vertical_drop_samples"`

	DNFRateNorm       *float64 `json:"dnf_rate_norm"`
	WinningTimeNorm   *float64 `json:"winning_time_norm"`
	GateCountNorm     *float64 `json:"gate_count_norm"`
	StartAltitudeNorm *float64 `json:"start_altitude_norm"`
	VerticalDropNorm  *float64 `json:"vertical_drop_norm"`

	DifficultyIndex float64 `json:"difficulty_index"`
	LowConfidence   bool    `json:"low_confidence"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (CourseDifficultyRecord) TableName() string {
	return "agg_course_difficulty"
}

// CourseTrait names a course characteristic used by the regression engine.
type CourseTrait string

const (
	TraitGateCount     CourseTrait = "gate_count"
	TraitVerticalDrop  CourseTrait = "vertical_drop"
	TraitStartAltitude CourseTrait = "start_altitude"
	TraitWinningTime   CourseTrait = "winning_time"
)

// RegressionRecord is the fit of one athlete's discipline z-scores against
// one course trait. A positive coefficient means the athlete performs better
// as the trait value increases.
type RegressionRecord struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	AthleteID   string      `gorm:"not null;uniqueIndex:idx_reg_key,priority:1" json:"athlete_id"`
	Discipline  Discipline  `gorm:"not null;uniqueIndex:idx_reg_key,priority:2" json:"discipline"`
	Trait       CourseTrait `gorm:"type:varchar(32);not null;uniqueIndex:idx_reg_key,priority:3" json:"trait"`
	Name        string      `json:"name"`
	Coefficient float64     `json:"coefficient"`
	RSquared    float64     `json:"r_squared"`
	SampleCount int         `json:"sample_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (RegressionRecord) TableName() string {
	return "agg_course_regression"
}

// AdvantageBasis selects which nationality comparison an AdvantageRecord
// aggregates: racing in the home country, or racing on a home-set course.
type AdvantageBasis string

const (
	BasisHostCountry  AdvantageBasis = "host_country"
	BasisCourseSetter AdvantageBasis = "course_setter"
)

// AdvantageRecord compares a country's home and away mean FIS points for one
// discipline and sex. Lower points are better, so a negative PctDiff is a
// home advantage. PctDiff is nil when the away mean is zero.
type AdvantageRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Basis      AdvantageBasis `gorm:"type:varchar(16);not null;uniqueIndex:idx_adv_key,priority:1" json:"basis"`
	Country    string         `gorm:"not null;uniqueIndex:idx_adv_key,priority:2" json:"country"`
	Sex        string         `gorm:"not null;uniqueIndex:idx_adv_key,priority:3" json:"sex"`
	Discipline Discipline     `gorm:"not null;uniqueIndex:idx_adv_key,priority:4" json:"discipline"`

	HomeRaceCount int      `json:"home_race_count"`
	AwayRaceCount int      `json:"away_race_count"`
	HomeAvgPoints float64  `json:"home_avg_points"`
	AwayAvgPoints float64  `json:"away_avg_points"`
	PctDiff       *float64 `json:"pct_diff"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (AdvantageRecord) TableName() string {
	return "agg_country_advantage"
}
