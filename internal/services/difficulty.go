package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/fmalcolm/alpine-analytics/internal/analytics"
	"github.com/fmalcolm/alpine-analytics/internal/models"
	"github.com/fmalcolm/alpine-analytics/pkg/database"
)

// DifficultyService maintains the course difficulty table. Component
// normalization ranks every course against its discipline's population, so
// the table is always rebuilt whole, even on incremental runs — a new race at
// one course can shift every other course's normalized components.
type DifficultyService struct {
	db     *database.DB
	logger *logrus.Logger
	cfg    analytics.DifficultyConfig
}

func NewDifficultyService(db *database.DB, logger *logrus.Logger, cfg analytics.DifficultyConfig) *DifficultyService {
	return &DifficultyService{db: db, logger: logger, cfg: cfg}
}

// Rebuild recomputes the whole difficulty table and replaces it in one
// transaction so readers never see a partially renormalized population.
func (s *DifficultyService) Rebuild() (int, error) {
	var races []models.Race
	if err := s.db.Find(&races).Error; err != nil {
		return 0, fmt.Errorf("failed to load races: %w", err)
	}

	var results []models.RaceResult
	if err := s.db.Find(&results).Error; err != nil {
		return 0, fmt.Errorf("failed to load race results: %w", err)
	}
	resultsByRace := make(map[string][]models.RaceResult, len(races))
	for _, r := range results {
		resultsByRace[r.RaceID] = append(resultsByRace[r.RaceID], r)
	}

	aggs := analytics.AggregateCourses(races, resultsByRace)
	records := analytics.ComputeDifficultyIndex(aggs, s.cfg)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CourseDifficultyRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to replace course difficulty table: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"module": "course_difficulty",
		"rows":   len(records),
	}).Info("Rebuilt course difficulty table")
	return len(records), nil
}
