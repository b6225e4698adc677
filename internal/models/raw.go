package models

import (
	"time"
)

// Discipline identifies an alpine skiing discipline as scraped from FIS.
type Discipline = string

const (
	DisciplineSlalom      Discipline = "Slalom"
	DisciplineGiantSlalom Discipline = "Giant Slalom"
	DisciplineSuperG      Discipline = "Super G"
	DisciplineDownhill    Discipline = "Downhill"
)

// SpeedDiscipline reports whether a discipline is run on a single course
// setting (no second run, so no second-run course setter).
func SpeedDiscipline(d Discipline) bool {
	return d == DisciplineSuperG || d == DisciplineDownhill
}

// Race is immutable race metadata from the scraper feed. The pipeline treats
// this table as read-only input; course characteristics are nullable because
// older FIS pages omit them.
type Race struct {
	RaceID              string     `gorm:"primaryKey" json:"race_id"`
	Date                time.Time  `gorm:"not null;index" json:"date"`
	Location            string     `gorm:"not null;index:idx_course,priority:1" json:"location"`
	Country             string     `json:"country"`
	Sex                 string     `json:"sex"`
	Discipline          Discipline `gorm:"not null;index:idx_course,priority:2" json:"discipline"`
	RaceType            string     `json:"race_type"`
	HomologationNumber  string     `json:"homologation_number"`
	VerticalDrop        *float64   `json:"vertical_drop"`
	StartAltitude       *float64   `json:"start_altitude"`
	GateCount           *float64   `json:"gate_count"`
	FirstSetterCountry  string     `json:"first_setter_country"`
	SecondSetterCountry string     `json:"second_setter_country"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (Race) TableName() string {
	return "raw_races"
}

// EffectiveSetterCountry resolves the course setter whose nationality matters
// for setter-advantage aggregation: speed disciplines only set one course.
func (r *Race) EffectiveSetterCountry() string {
	if SpeedDiscipline(r.Discipline) {
		return r.FirstSetterCountry
	}
	return r.SecondSetterCountry
}

// RaceResult is one athlete's row in one race. Rank is kept as scraped: an
// ordinal for finishers, or a DNF/DSQ/DNS style sentinel.
type RaceResult struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RaceID    string     `gorm:"not null;uniqueIndex:idx_race_athlete,priority:1" json:"race_id"`
	AthleteID string     `gorm:"not null;uniqueIndex:idx_race_athlete,priority:2;index" json:"athlete_id"`
	Name      string     `json:"name"`
	Country   string     `json:"country"`
	Bib       *int       `json:"bib"`
	Rank      string     `json:"rank"`
	FISPoints *float64   `json:"fis_points"`
	FinalTime string     `json:"final_time"`
	CreatedAt time.Time  `json:"created_at"`
}

func (RaceResult) TableName() string {
	return "raw_race_results"
}
