package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/fmalcolm/alpine-analytics/internal/analytics"
	"github.com/fmalcolm/alpine-analytics/internal/models"
	"github.com/fmalcolm/alpine-analytics/pkg/database"
)

// AdvantageService maintains the home/away advantage table for both bases:
// racing in the home country, and racing a course set by a compatriot. The
// aggregation spans a country's entire history, so the table is rebuilt whole
// each run.
type AdvantageService struct {
	db     *database.DB
	logger *logrus.Logger
	cfg    analytics.AdvantageConfig
}

func NewAdvantageService(db *database.DB, logger *logrus.Logger, cfg analytics.AdvantageConfig) *AdvantageService {
	return &AdvantageService{db: db, logger: logger, cfg: cfg}
}

type advantageInputRow struct {
	RaceID              string
	Country             string
	Sex                 string
	Discipline          models.Discipline
	HostCountry         string
	FirstSetterCountry  string
	SecondSetterCountry string
	FISPoints           float64
	Date                time.Time
}

// Rebuild recomputes both advantage bases and replaces the table in one
// transaction per basis.
func (s *AdvantageService) Rebuild() (int, error) {
	var rows []advantageInputRow
	err := s.db.
		Table("raw_race_results AS res").
		Select("res.race_id, res.country, r.sex, r.discipline, r.country AS host_country, r.first_setter_country, r.second_setter_country, res.fis_points, r.date").
		Joins("JOIN raw_races AS r ON r.race_id = res.race_id").
		Where("res.fis_points IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load advantage input: %w", err)
	}

	hostRows := make([]analytics.AdvantageRow, 0, len(rows))
	setterRows := make([]analytics.AdvantageRow, 0, len(rows))
	for _, row := range rows {
		base := analytics.AdvantageRow{
			RaceID:     row.RaceID,
			Country:    row.Country,
			Sex:        row.Sex,
			Discipline: row.Discipline,
			FISPoints:  row.FISPoints,
		}

		host := base
		host.BasisCountry = row.HostCountry
		hostRows = append(hostRows, host)

		race := models.Race{
			Discipline:          row.Discipline,
			FirstSetterCountry:  row.FirstSetterCountry,
			SecondSetterCountry: row.SecondSetterCountry,
		}
		if setterCountry := race.EffectiveSetterCountry(); setterCountry != "" {
			setter := base
			setter.BasisCountry = setterCountry
			setterRows = append(setterRows, setter)
		}
	}

	total := 0
	for _, part := range []struct {
		basis models.AdvantageBasis
		rows  []analytics.AdvantageRow
	}{
		{models.BasisHostCountry, hostRows},
		{models.BasisCourseSetter, setterRows},
	} {
		records := analytics.ComputeAdvantages(part.basis, part.rows, s.cfg)
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("basis = ?", part.basis).Delete(&models.AdvantageRecord{}).Error; err != nil {
				return err
			}
			if len(records) == 0 {
				return nil
			}
			return tx.CreateInBatches(records, 200).Error
		})
		if err != nil {
			return 0, fmt.Errorf("failed to replace %s advantage table: %w", part.basis, err)
		}
		total += len(records)
	}

	s.logger.WithFields(logrus.Fields{
		"module": "country_advantage",
		"rows":   total,
	}).Info("Rebuilt country advantage tables")
	return total, nil
}
