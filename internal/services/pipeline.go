package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/fmalcolm/alpine-analytics/internal/analytics"
	"github.com/fmalcolm/alpine-analytics/internal/models"
	"github.com/fmalcolm/alpine-analytics/pkg/config"
	"github.com/fmalcolm/alpine-analytics/pkg/database"
)

// ModuleStats are the per-module counters recorded on the EtlRun row.
type ModuleStats struct {
	Partitions int   `json:"partitions"`
	Failed     int   `json:"failed"`
	Rows       int   `json:"rows"`
	DurationMs int64 `json:"duration_ms"`
}

// RunSummary is the outcome of one pipeline run.
type RunSummary struct {
	RunID            uuid.UUID
	Mode             models.RunMode
	FromDate         *time.Time
	Modules          map[string]*ModuleStats
	FailedPartitions []string
	Success          bool
}

// Pipeline orchestrates the analytics modules in dependency order: z-scores
// feed everything else. Partitions fan out across a bounded worker pool; a
// failed partition is logged and skipped so one bad athlete or race never
// aborts the run, while systemic persistence failures trip the circuit
// breaker and abort as fatal.
type Pipeline struct {
	db     *database.DB
	logger *logrus.Logger
	cfg    *config.Config

	zscores    *ZScoreService
	momentum   *MomentumService
	regression *RegressionService
	difficulty *DifficultyService
	advantage  *AdvantageService

	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewPipeline(db *database.DB, logger *logrus.Logger, cfg *config.Config) *Pipeline {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "etl-persistence",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
	})

	return &Pipeline{
		db:     db,
		logger: logger,
		cfg:    cfg,
		zscores: NewZScoreService(db, logger),
		momentum: NewMomentumService(db, logger, analytics.MomentumConfig{
			Lambda:          cfg.DecayLambda,
			HotThreshold:    cfg.HotThreshold,
			ColdThreshold:   cfg.ColdThreshold,
			MinObservations: cfg.MomentumMinRaces,
		}),
		regression: NewRegressionService(db, logger, analytics.RegressionConfig{
			MinSamples: cfg.RegressionMinRaces,
		}),
		difficulty: NewDifficultyService(db, logger, analytics.DifficultyConfig{
			MinRaces:      cfg.DifficultyMinRaces,
			LowerQuantile: cfg.DifficultyLowerQuant,
			UpperQuantile: cfg.DifficultyUpperQuant,
			Weights: analytics.DifficultyWeights{
				DNFRate:       cfg.WeightDNFRate,
				WinningTime:   cfg.WeightWinningTime,
				VerticalDrop:  cfg.WeightVerticalDrop,
				GateCount:     cfg.WeightGateCount,
				StartAltitude: cfg.WeightStartAltitude,
			},
		}),
		advantage: NewAdvantageService(db, logger, analytics.AdvantageConfig{
			MinRaces: cfg.AdvantageMinRaces,
		}),
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.PartitionQPS), 1),
	}
}

// Run executes one batch run. In daily mode with a nil fromDate the window is
// auto-detected as one day before the latest race in the store, so updates to
// freshly scraped races are caught. All writes are idempotent replacements:
// running twice with the same input produces identical output.
func (p *Pipeline) Run(ctx context.Context, mode models.RunMode, fromDate *time.Time) (*RunSummary, error) {
	startedAt := time.Now().UTC()
	summary := &RunSummary{
		RunID:   uuid.New(),
		Mode:    mode,
		Modules: make(map[string]*ModuleStats),
	}

	if mode == models.RunModeDaily {
		resolved, err := p.resolveWindow(fromDate)
		if err != nil {
			return summary, err
		}
		if resolved == nil {
			p.logger.Warn("No races in the store, nothing to update")
			summary.Success = true
			p.recordRun(summary, startedAt)
			return summary, nil
		}
		summary.FromDate = resolved
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"mode":      mode,
		"from_date": formatDate(summary.FromDate),
	}).Info("Pipeline run starting")

	err := p.runPhases(ctx, summary)

	summary.Success = err == nil
	p.recordRun(summary, startedAt)

	failed := len(summary.FailedPartitions)
	p.logger.WithFields(logrus.Fields{
		"run_id":            summary.RunID,
		"duration":          time.Since(startedAt).Round(time.Millisecond),
		"failed_partitions": failed,
		"success":           summary.Success,
	}).Info("Pipeline run finished")

	return summary, err
}

func (p *Pipeline) runPhases(ctx context.Context, summary *RunSummary) error {
	// Phase 1: z-scores, the foundation every other module reads.
	raceIDs, err := p.zscores.RaceIDs(summary.FromDate)
	if err != nil {
		return err
	}
	jobs := make([]partitionJob, len(raceIDs))
	for i, id := range raceIDs {
		id := id
		jobs[i] = partitionJob{key: "race_z_score:" + id, fn: func() (int, error) {
			return p.zscores.ProcessRace(id)
		}}
	}
	if err := p.runModule(ctx, summary, "race_z_score", jobs); err != nil {
		return err
	}

	// Phase 2: consumers of the z-score table.
	momentumParts, err := p.momentum.Partitions(summary.FromDate)
	if err != nil {
		return err
	}
	jobs = jobs[:0]
	for _, part := range momentumParts {
		part := part
		jobs = append(jobs, partitionJob{key: "momentum:" + part.String(), fn: func() (int, error) {
			return p.momentum.ProcessPartition(part)
		}})
	}
	if err := p.runModule(ctx, summary, "momentum", jobs); err != nil {
		return err
	}

	regressionParts, err := p.regression.Partitions(summary.FromDate)
	if err != nil {
		return err
	}
	jobs = jobs[:0]
	for _, part := range regressionParts {
		part := part
		jobs = append(jobs, partitionJob{key: "course_regression:" + part.String(), fn: func() (int, error) {
			return p.regression.ProcessPartition(part)
		}})
	}
	if err := p.runModule(ctx, summary, "course_regression", jobs); err != nil {
		return err
	}

	// Difficulty and advantage normalize against the full population, so
	// they are rebuilt whole regardless of the window.
	fullRebuilds := []partitionJob{
		{key: "course_difficulty", fn: p.difficulty.Rebuild},
	}
	if err := p.runModule(ctx, summary, "course_difficulty", fullRebuilds); err != nil {
		return err
	}
	fullRebuilds = []partitionJob{
		{key: "country_advantage", fn: p.advantage.Rebuild},
	}
	return p.runModule(ctx, summary, "country_advantage", fullRebuilds)
}

// resolveWindow picks the incremental window start: one day before the most
// recent race, unless the caller supplied a date. Nil with no error means an
// empty store.
func (p *Pipeline) resolveWindow(fromDate *time.Time) (*time.Time, error) {
	if fromDate != nil {
		return fromDate, nil
	}
	var latest sql.NullTime
	row := p.db.Model(&models.Race{}).Select("MAX(date)").Row()
	if err := row.Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to find latest race date: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	resolved := latest.Time.AddDate(0, 0, -1)
	return &resolved, nil
}

type partitionJob struct {
	key string
	fn  func() (int, error)
}

// runModule fans a module's partitions across the worker pool. Partition
// errors are recorded and skipped; an open breaker or a cancelled context
// aborts the whole run.
func (p *Pipeline) runModule(ctx context.Context, summary *RunSummary, module string, jobs []partitionJob) error {
	start := time.Now()
	stats := &ModuleStats{Partitions: len(jobs)}
	summary.Modules[module] = stats

	workers := p.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan partitionJob)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
	)

	setFatal := func(err error) {
		mu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		mu.Unlock()
		cancel()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if err := p.limiter.Wait(ctx); err != nil {
					setFatal(err)
					return
				}
				rows, err := p.breaker.Execute(func() (interface{}, error) {
					return job.fn()
				})
				if err != nil {
					if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
						setFatal(fmt.Errorf("persistence breaker open, aborting run: %w", err))
						return
					}
					p.logger.WithFields(logrus.Fields{
						"module":    module,
						"partition": job.key,
					}).WithError(err).Error("Partition failed, skipping")
					mu.Lock()
					stats.Failed++
					summary.FailedPartitions = append(summary.FailedPartitions, job.key)
					mu.Unlock()
					continue
				}
				mu.Lock()
				stats.Rows += rows.(int)
				mu.Unlock()
			}
		}()
	}

	for _, job := range jobs {
		select {
		case jobCh <- job:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobCh)
	wg.Wait()

	stats.DurationMs = time.Since(start).Milliseconds()

	if fatalErr != nil {
		return fatalErr
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"module":     module,
		"partitions": stats.Partitions,
		"failed":     stats.Failed,
		"rows":       stats.Rows,
		"duration":   time.Duration(stats.DurationMs) * time.Millisecond,
	}).Info("Module completed")
	return nil
}

// recordRun persists the bookkeeping row. Bookkeeping is best effort: losing
// a run record must not fail a run that already updated the aggregates.
func (p *Pipeline) recordRun(summary *RunSummary, startedAt time.Time) {
	statsJSON, err := json.Marshal(summary.Modules)
	if err != nil {
		p.logger.WithError(err).Error("Failed to encode run stats")
		return
	}

	run := models.EtlRun{
		ID:               summary.RunID,
		Mode:             summary.Mode,
		FromDate:         summary.FromDate,
		StartedAt:        startedAt,
		FinishedAt:       time.Now().UTC(),
		ModuleStats:      statsJSON,
		FailedPartitions: pq.StringArray(summary.FailedPartitions),
		Success:          summary.Success,
	}
	if err := p.db.Create(&run).Error; err != nil {
		p.logger.WithError(err).Error("Failed to record ETL run")
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
