package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fmalcolm/alpine-analytics/internal/models"
	"github.com/fmalcolm/alpine-analytics/pkg/database"
)

// newTestDB opens a private in-memory database with the full schema. A single
// connection keeps sqlite happy under the pipeline's worker pool.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(
		&models.Race{},
		&models.RaceResult{},
		&models.RaceZScore{},
		&models.MomentumRecord{},
		&models.CourseDifficultyRecord{},
		&models.RegressionRecord{},
		&models.AdvantageRecord{},
		&models.EtlRun{},
	))

	return &database.DB{DB: gdb}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type seedAthlete struct {
	id      string
	name    string
	country string
	rank    string
	points  *float64
	time    string
}

// seedRace inserts one race and its results. Course characteristics are fixed
// apart from the gate count so regression inputs have a varying trait.
func seedRace(t *testing.T, db *database.DB, raceID string, date time.Time, location, hostCountry string, gates float64, athletes []seedAthlete) {
	t.Helper()

	race := models.Race{
		RaceID:              raceID,
		Date:                date,
		Location:            location,
		Country:             hostCountry,
		Sex:                 "M",
		Discipline:          models.DisciplineSlalom,
		VerticalDrop:        fptr(220),
		StartAltitude:       fptr(1700),
		GateCount:           fptr(gates),
		FirstSetterCountry:  "AUT",
		SecondSetterCountry: "AUT",
	}
	require.NoError(t, db.Create(&race).Error)

	for _, a := range athletes {
		result := models.RaceResult{
			RaceID:    raceID,
			AthleteID: a.id,
			Name:      a.name,
			Country:   a.country,
			Rank:      a.rank,
			FISPoints: a.points,
			FinalTime: a.time,
		}
		require.NoError(t, db.Create(&result).Error)
	}
}

// standardField is three finishers with evenly spaced points (sample std 10)
// and one DNF.
func standardField() []seedAthlete {
	return []seedAthlete{
		{id: "100", name: "A. Steiner", country: "AUT", rank: "1", points: fptr(10), time: "1:40.00"},
		{id: "200", name: "B. Meier", country: "SUI", rank: "2", points: fptr(20), time: "1:41.50"},
		{id: "300", name: "C. Braun", country: "GER", rank: "3", points: fptr(30), time: "1:43.00"},
		{id: "400", name: "D. Novak", country: "AUT", rank: "DNF1"},
	}
}

func seedSeason(t *testing.T, db *database.DB) {
	t.Helper()
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	seedRace(t, db, "2026SL001", base, "Kitzbuehel", "AUT", 62, standardField())
	seedRace(t, db, "2026SL002", base.AddDate(0, 0, 7), "Kitzbuehel", "AUT", 65, standardField())
	seedRace(t, db, "2026SL003", base.AddDate(0, 0, 14), "Wengen", "SUI", 68, standardField())
	seedRace(t, db, "2026SL004", base.AddDate(0, 0, 21), "Wengen", "SUI", 71, standardField())
}

func fptr(v float64) *float64 {
	return &v
}

func raceSeq(i int) string {
	return fmt.Sprintf("2026SL%03d", i)
}
