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

// AthleteDiscipline identifies one momentum/regression partition.
type AthleteDiscipline struct {
	AthleteID  string
	Discipline models.Discipline
}

func (p AthleteDiscipline) String() string {
	return p.AthleteID + "/" + p.Discipline
}

// MomentumService maintains the exponentially weighted form series. The fold
// inside a partition is strictly sequential, so recomputation always replaces
// the partition's entire series; parallelism is only safe across partitions.
type MomentumService struct {
	db     *database.DB
	logger *logrus.Logger
	cfg    analytics.MomentumConfig
}

func NewMomentumService(db *database.DB, logger *logrus.Logger, cfg analytics.MomentumConfig) *MomentumService {
	return &MomentumService{db: db, logger: logger, cfg: cfg}
}

// Partitions lists the (athlete, discipline) pairs to recompute. With a from
// date only pairs that started in a race inside the window are returned —
// their whole series still gets rebuilt, since any new or late-arriving
// z-score invalidates every later value in the recursion.
func (s *MomentumService) Partitions(from *time.Time) ([]AthleteDiscipline, error) {
	return athleteDisciplinePartitions(s.db, from)
}

type momentumInputRow struct {
	RaceID        string
	Name          string
	Date          time.Time
	ZScore        float64
	PointsVsField float64
}

// ProcessPartition rebuilds one athlete-discipline series from its full
// chronological z-score history and replaces the stored series in one
// transaction.
func (s *MomentumService) ProcessPartition(p AthleteDiscipline) (int, error) {
	var rows []momentumInputRow
	err := s.db.
		Table("agg_race_z_scores AS z").
		Select("z.race_id, z.name, r.date, z.z_score, z.points_vs_field").
		Joins("JOIN raw_races AS r ON r.race_id = z.race_id").
		Where("z.athlete_id = ? AND r.discipline = ? AND z.z_score IS NOT NULL", p.AthleteID, p.Discipline).
		Order("r.date, z.race_id").
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load z-score history for %s: %w", p, err)
	}

	obs := make([]analytics.MomentumObservation, len(rows))
	name := ""
	for i, row := range rows {
		obs[i] = analytics.MomentumObservation{
			RaceID:        row.RaceID,
			Date:          row.Date,
			Z:             row.ZScore,
			PointsVsField: row.PointsVsField,
		}
		name = row.Name
	}

	records := analytics.ComputeMomentumSeries(p.AthleteID, name, p.Discipline, obs, s.cfg)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("athlete_id = ? AND discipline = ?", p.AthleteID, p.Discipline).
			Delete(&models.MomentumRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to replace momentum series for %s: %w", p, err)
	}

	s.logger.WithFields(logrus.Fields{
		"module":     "momentum",
		"athlete_id": p.AthleteID,
		"discipline": p.Discipline,
		"rows":       len(records),
	}).Debug("Replaced momentum series")
	return len(records), nil
}

// athleteDisciplinePartitions is shared by the momentum and regression
// services: both recompute per (athlete, discipline) over the full history.
func athleteDisciplinePartitions(db *database.DB, from *time.Time) ([]AthleteDiscipline, error) {
	var pairs []AthleteDiscipline
	q := db.
		Table("raw_race_results AS res").
		Select("DISTINCT res.athlete_id, r.discipline").
		Joins("JOIN raw_races AS r ON r.race_id = res.race_id").
		Order("res.athlete_id, r.discipline")
	if from != nil {
		q = q.Where("res.athlete_id IN (?)",
			db.Table("raw_race_results AS affected").
				Select("affected.athlete_id").
				Joins("JOIN raw_races AS ar ON ar.race_id = affected.race_id").
				Where("ar.date >= ?", *from))
	}
	if err := q.Scan(&pairs).Error; err != nil {
		return nil, fmt.Errorf("failed to list athlete-discipline partitions: %w", err)
	}
	return pairs, nil
}
