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

// ZScoreService recomputes the per-race standardized scores. Each race is an
// independent partition: its z-scores depend only on that race's field.
type ZScoreService struct {
	db     *database.DB
	logger *logrus.Logger
}

func NewZScoreService(db *database.DB, logger *logrus.Logger) *ZScoreService {
	return &ZScoreService{db: db, logger: logger}
}

// RaceIDs lists the races to recompute: everything, or only races dated on or
// after from.
func (s *ZScoreService) RaceIDs(from *time.Time) ([]string, error) {
	var ids []string
	q := s.db.Model(&models.Race{}).Order("race_id")
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if err := q.Pluck("race_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list races: %w", err)
	}
	return ids, nil
}

// ProcessRace recomputes and fully replaces one race's z-score rows in a
// single transaction. Rerunning it with the same input is a no-op changewise;
// a race whose field shrank below two finishers ends up with no rows.
func (s *ZScoreService) ProcessRace(raceID string) (int, error) {
	var results []models.RaceResult
	if err := s.db.Where("race_id = ?", raceID).Find(&results).Error; err != nil {
		return 0, fmt.Errorf("failed to load results for race %s: %w", raceID, err)
	}

	records := analytics.ComputeRaceZScores(results)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("race_id = ?", raceID).Delete(&models.RaceZScore{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to replace z-scores for race %s: %w", raceID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"module":  "race_z_score",
		"race_id": raceID,
		"rows":    len(records),
	}).Debug("Replaced race z-scores")
	return len(records), nil
}
