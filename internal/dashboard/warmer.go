package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/inkwell-analytics/insight/internal/analytics"
)

const warmTimeout = 30 * time.Second

// Warmer periodically recomputes the unfiltered overview and revenue
// pages for the common range presets so first paint after a cold cache
// stays fast.
type Warmer struct {
	service  *Service
	schedule string
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewWarmer creates a cache warmer with a cron schedule spec, e.g.
// "@every 5m".
func NewWarmer(service *Service, schedule string, logger *zap.Logger) *Warmer {
	return &Warmer{
		service:  service,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the warm job and starts the scheduler.
func (w *Warmer) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.warm); err != nil {
		return fmt.Errorf("invalid warm schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.logger.Info("cache warmer started", zap.String("schedule", w.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running warm to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Warmer) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	start := time.Now()
	for _, preset := range []string{analytics.Range7d, analytics.Range30d, analytics.Range90d} {
		f := analytics.Filters{DateRange: analytics.DateRange{Preset: preset}}
		if _, err := w.service.Overview(ctx, f); err != nil {
			w.logger.Warn("overview warm failed", zap.String("preset", preset), zap.Error(err))
		}
		if _, err := w.service.Revenue(ctx, f); err != nil {
			w.logger.Warn("revenue warm failed", zap.String("preset", preset), zap.Error(err))
		}
	}
	w.logger.Debug("dashboard cache warmed", zap.Duration("took", time.Since(start)))
}
