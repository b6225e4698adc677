package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunMode selects how much history a pipeline run recomputes.
type RunMode string

const (
	// RunModeFull recomputes every derived table from the entire history.
	RunModeFull RunMode = "full"
	// RunModeDaily recomputes only partitions touched by races inside the
	// lookback window.
	RunModeDaily RunMode = "daily"
)

// EtlRun is the bookkeeping row written at the end of every pipeline run.
// ModuleStats holds per-module counters (partitions processed, rows written,
// failures); FailedPartitions lists the keys that were skipped so an operator
// can re-run them.
type EtlRun struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Mode             RunMode        `gorm:"type:varchar(16);not null" json:"mode"`
	FromDate         *time.Time     `json:"from_date"`
	StartedAt        time.Time      `gorm:"not null;index" json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	ModuleStats      datatypes.JSON `gorm:"type:jsonb" json:"module_stats"`
	FailedPartitions pq.StringArray `gorm:"type:text[]" json:"failed_partitions"`
	Success          bool           `json:"success"`
}

func (EtlRun) TableName() string {
	return "etl_runs"
}

// BeforeCreate assigns the run ID so bookkeeping does not depend on a
// Postgres-only column default.
func (r *EtlRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
