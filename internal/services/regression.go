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

// RegressionService fits per-trait course regressions against each athlete's
// full discipline history.
type RegressionService struct {
	db     *database.DB
	logger *logrus.Logger
	cfg    analytics.RegressionConfig
}

func NewRegressionService(db *database.DB, logger *logrus.Logger, cfg analytics.RegressionConfig) *RegressionService {
	return &RegressionService{db: db, logger: logger, cfg: cfg}
}

// Partitions lists the (athlete, discipline) pairs to refit.
func (s *RegressionService) Partitions(from *time.Time) ([]AthleteDiscipline, error) {
	return athleteDisciplinePartitions(s.db, from)
}

type regressionInputRow struct {
	Name          string
	ZScore        float64
	GateCount     *float64
	VerticalDrop  *float64
	StartAltitude *float64
	WinningTime   string
}

// ProcessPartition refits one athlete-discipline's trait regressions and
// replaces the stored records in one transaction. Below the sample minimum
// nothing is written, and any stale records are removed.
func (s *RegressionService) ProcessPartition(p AthleteDiscipline) (int, error) {
	var rows []regressionInputRow
	err := s.db.
		Table("agg_race_z_scores AS z").
		Select("z.name, z.z_score, r.gate_count, r.vertical_drop, r.start_altitude, wt.final_time AS winning_time").
		Joins("JOIN raw_races AS r ON r.race_id = z.race_id").
		Joins("LEFT JOIN raw_race_results AS wt ON wt.race_id = r.race_id AND wt.rank = '1'").
		Where("z.athlete_id = ? AND r.discipline = ? AND z.z_score IS NOT NULL", p.AthleteID, p.Discipline).
		Order("r.date, z.race_id").
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load regression input for %s: %w", p, err)
	}

	inputs := make([]analytics.RegressionRow, len(rows))
	name := ""
	for i, row := range rows {
		inputs[i] = analytics.RegressionRow{
			Z:             row.ZScore,
			GateCount:     row.GateCount,
			VerticalDrop:  row.VerticalDrop,
			StartAltitude: row.StartAltitude,
		}
		if sec, ok := analytics.ParseFinalTime(row.WinningTime); ok {
			inputs[i].WinningTimeSec = &sec
		}
		name = row.Name
	}

	records := analytics.ComputeCourseRegressions(p.AthleteID, name, p.Discipline, inputs, s.cfg)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("athlete_id = ? AND discipline = ?", p.AthleteID, p.Discipline).
			Delete(&models.RegressionRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(records).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to replace regressions for %s: %w", p, err)
	}

	s.logger.WithFields(logrus.Fields{
		"module":     "course_regression",
		"athlete_id": p.AthleteID,
		"discipline": p.Discipline,
		"rows":       len(records),
	}).Debug("Replaced course regressions")
	return len(records), nil
}
