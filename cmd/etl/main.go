package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fmalcolm/alpine-analytics/internal/models"
	"github.com/fmalcolm/alpine-analytics/internal/services"
	"github.com/fmalcolm/alpine-analytics/pkg/config"
	"github.com/fmalcolm/alpine-analytics/pkg/database"
	"github.com/fmalcolm/alpine-analytics/pkg/logger"
)

func main() {
	var (
		mode         = flag.String("mode", string(models.RunModeDaily), "run mode: daily (incremental) or full")
		fromDateStr  = flag.String("from-date", "", "recompute races from this date forward (YYYY-MM-DD)")
		days         = flag.Int("days", 0, "recompute races from the last N days")
		scheduleMode = flag.Bool("schedule", false, "run as a daemon on the configured cron schedule")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

	fromDate, err := resolveFromDate(*fromDateStr, *days)
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.Workers, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	pipeline := services.NewPipeline(db, log, cfg)

	if *scheduleMode {
		runScheduled(log, cfg, pipeline)
		return
	}

	runMode := models.RunMode(*mode)
	if runMode != models.RunModeFull && runMode != models.RunModeDaily {
		log.Fatalf("Unknown mode %q, expected daily or full", *mode)
	}

	summary, err := pipeline.Run(context.Background(), runMode, fromDate)
	if err != nil {
		log.WithError(err).Fatal("Pipeline run failed")
	}
	if len(summary.FailedPartitions) > 0 {
		log.WithField("failed_partitions", summary.FailedPartitions).
			Warn("Run completed with skipped partitions")
		os.Exit(1)
	}
}

// resolveFromDate turns the mutually exclusive -from-date / -days flags into
// a window start. Nil means auto-detect (daily) or everything (full).
func resolveFromDate(fromDateStr string, days int) (*time.Time, error) {
	if fromDateStr != "" && days > 0 {
		return nil, errInvalidWindow
	}
	if fromDateStr != "" {
		parsed, err := time.Parse("2006-01-02", fromDateStr)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	}
	if days > 0 {
		from := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)
		return &from, nil
	}
	return nil, nil
}

var errInvalidWindow = errFlag("cannot specify both -from-date and -days")

type errFlag string

func (e errFlag) Error() string { return string(e) }

func runScheduled(log *logrus.Logger, cfg *config.Config, pipeline *services.Pipeline) {
	lock := services.NewLocalRunLock()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		lock = services.NewRedisRunLock(client, "alpine-analytics:etl-run", cfg.RunLockTTL)
	}

	scheduler := services.NewScheduler(pipeline, lock, log, cfg.Schedule)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down scheduler...")
}
