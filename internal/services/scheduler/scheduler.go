package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/storage/vector"
)

// Scheduler runs periodic maintenance: pruning old terminal jobs and
// compacting the vector store's value log.
type Scheduler struct {
	cron   *cron.Cron
	config *common.SchedulerConfig
	jobs   interfaces.JobStorage
	vector *vector.BadgerDB
	logger arbor.ILogger
}

// New creates the maintenance scheduler
func New(config *common.SchedulerConfig, jobs interfaces.JobStorage, vectorDB *vector.BadgerDB, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		config: config,
		jobs:   jobs,
		vector: vectorDB,
		logger: logger,
	}
}

// Start registers and starts the cron entries
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	if s.config.CleanupSchedule != "" {
		if _, err := s.cron.AddFunc(s.config.CleanupSchedule, s.cleanupJobs); err != nil {
			return err
		}
	}
	if s.config.GCSchedule != "" {
		if _, err := s.cron.AddFunc(s.config.GCSchedule, s.runVectorGC); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info().
		Str("cleanup", s.config.CleanupSchedule).
		Str("gc", s.config.GCSchedule).
		Msg("Scheduler started")
	return nil
}

// Stop stops the cron scheduler and waits for running entries
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) cleanupJobs() {
	retention := s.config.JobRetentionDays
	if retention <= 0 {
		retention = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retention).Unix()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.jobs.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Job cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Pruned old terminal jobs")
	}
}

func (s *Scheduler) runVectorGC() {
	if s.vector == nil {
		return
	}
	if err := s.vector.RunGC(); err != nil {
		s.logger.Warn().Err(err).Msg("Vector store GC failed")
		return
	}
	s.logger.Debug().Msg("Vector store GC completed")
}
