package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fmalcolm/alpine-analytics/internal/models"
	"github.com/fmalcolm/alpine-analytics/pkg/config"
	"github.com/fmalcolm/alpine-analytics/pkg/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|seed]")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.Workers, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	command := os.Args[1]

	switch command {
	case "up":
		if err := runMigrations(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "seed":
		if err := seedData(db); err != nil {
			logrus.Fatalf("Failed to seed data: %v", err)
		}
		logrus.Info("Data seeded successfully")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func runMigrations(db *database.DB) error {
	// Auto migrate the raw input tables and every derived aggregate table
	if err := db.AutoMigrate(
		&models.Race{},
		&models.RaceResult{},
		&models.RaceZScore{},
		&models.MomentumRecord{},
		&models.CourseDifficultyRecord{},
		&models.RegressionRecord{},
		&models.AdvantageRecord{},
		&models.EtlRun{},
	); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	// Covering indexes for the pipeline's partition queries
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_raw_results_country ON raw_race_results(country)",
		"CREATE INDEX IF NOT EXISTS idx_raw_races_date_disc ON raw_races(date, discipline)",
		"CREATE INDEX IF NOT EXISTS idx_momentum_athlete ON agg_momentum(athlete_id, discipline, seq)",
		"CREATE INDEX IF NOT EXISTS idx_difficulty_index ON agg_course_difficulty(discipline, difficulty_index DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func dropTables(db *database.DB) error {
	// Derived tables first, raw input last
	tables := []string{
		"etl_runs",
		"agg_country_advantage",
		"agg_course_regression",
		"agg_course_difficulty",
		"agg_momentum",
		"agg_race_z_scores",
		"raw_race_results",
		"raw_races",
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	return nil
}

// seedData loads a small deterministic development dataset: two Slalom races
// in Kitzbuehel and one in Wengen, enough to exercise every module end to
// end.
func seedData(db *database.DB) error {
	day := func(offset int) time.Time {
		return time.Date(2026, 1, 10+offset, 10, 0, 0, 0, time.UTC)
	}
	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }

	races := []models.Race{
		{RaceID: "seed-1001", Date: day(0), Location: "Kitzbuehel", Country: "AUT", Sex: "M", Discipline: models.DisciplineSlalom, RaceType: "World Cup", HomologationNumber: "12853/01/19", VerticalDrop: f(200), StartAltitude: f(1000), GateCount: f(66), FirstSetterCountry: "AUT", SecondSetterCountry: "SUI"},
		{RaceID: "seed-1002", Date: day(7), Location: "Kitzbuehel", Country: "AUT", Sex: "M", Discipline: models.DisciplineSlalom, RaceType: "World Cup", HomologationNumber: "12853/01/19", VerticalDrop: f(200), StartAltitude: f(1000), GateCount: f(64), FirstSetterCountry: "GER", SecondSetterCountry: "AUT"},
		{RaceID: "seed-1003", Date: day(14), Location: "Wengen", Country: "SUI", Sex: "M", Discipline: models.DisciplineSlalom, RaceType: "World Cup", HomologationNumber: "14321/11/22", VerticalDrop: f(180), StartAltitude: f(1400), GateCount: f(62), FirstSetterCountry: "SUI", SecondSetterCountry: "NOR"},
	}
	if err := db.Create(&races).Error; err != nil {
		return fmt.Errorf("failed to create races: %w", err)
	}

	athletes := []struct {
		id, name, country string
	}{
		{"10001", "A. Steiner", "AUT"},
		{"10002", "B. Nilsen", "NOR"},
		{"10003", "C. Gasser", "SUI"},
		{"10004", "D. Munier", "FRA"},
		{"10005", "E. Kalt", "GER"},
	}

	var results []models.RaceResult
	for _, race := range races {
		for idx, a := range athletes {
			r := models.RaceResult{
				RaceID:    race.RaceID,
				AthleteID: a.id,
				Name:      a.name,
				Country:   a.country,
				Bib:       i(idx + 1),
			}
			// Last starter skis out in the first seeded race.
			if race.RaceID == "seed-1001" && idx == len(athletes)-1 {
				r.Rank = "DNF"
			} else {
				r.Rank = fmt.Sprintf("%d", idx+1)
				r.FISPoints = f(float64(idx) * 4.2)
				r.FinalTime = fmt.Sprintf("1:%05.2f", 40.0+float64(idx)*0.8)
			}
			results = append(results, r)
		}
	}
	if err := db.CreateInBatches(results, 200).Error; err != nil {
		return fmt.Errorf("failed to create race results: %w", err)
	}

	logrus.Infof("Seeded %d races with %d results", len(races), len(results))
	return nil
}
