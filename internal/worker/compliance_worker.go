// Package worker wires background processes: the recurring compliance tick
// and the notification handler registration.
package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/persistence"
	"github.com/spec-kit/sla-engine/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// ComplianceWorker drives the monitor on a fixed cadence.
type ComplianceWorker struct {
	monitor *monitor.Monitor
	redis   *persistence.Redis
	logger  *zap.Logger
	cfg     config.ComplianceConfig
	cron    *cron.Cron
}

// NewComplianceWorker constructs the worker. redis may be nil; the monitor's
// in-process guard still prevents overlapping ticks within one replica.
func NewComplianceWorker(m *monitor.Monitor, redis *persistence.Redis, logger *zap.Logger, cfg config.ComplianceConfig) *ComplianceWorker {
	return &ComplianceWorker{
		monitor: m,
		redis:   redis,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(),
	}
}

// Start schedules the recurring tick. The entry itself is quick: each tick
// runs to completion or failure independently of the next schedule.
func (w *ComplianceWorker) Start() error {
	spec := fmt.Sprintf("@every %dm", w.cfg.IntervalMinutes)
	if _, err := w.cron.AddFunc(spec, w.tick); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("compliance worker started", zap.String("schedule", spec))
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (w *ComplianceWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

func (w *ComplianceWorker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*w.cfg.Interval())
	defer cancel()

	// the lock TTL outlives the tick deadline so a slow pass cannot be
	// doubled by another replica
	acquired, err := w.redis.AcquireTickLock(ctx, 3*w.cfg.Interval())
	if err != nil {
		w.logger.Warn("tick lock unavailable; running with in-process guard only", zap.Error(err))
	} else if !acquired {
		w.logger.Info("compliance tick held by another replica; skipping")
		return
	}
	if err == nil && acquired {
		defer func() {
			if releaseErr := w.redis.ReleaseTickLock(context.Background()); releaseErr != nil {
				w.logger.Warn("failed to release tick lock", zap.Error(releaseErr))
			}
		}()
	}

	if err := w.monitor.RunOnce(ctx); err != nil {
		w.logger.Error("compliance pass failed", zap.Error(err))
	}
}
