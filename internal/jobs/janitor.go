package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/metrics"
)

// SessionSweeper expires and idles out sessions.
type SessionSweeper interface {
	Sweep(ctx context.Context) (expired, idled int)
}

// CacheSweeper drops expired cache entries from memory.
type CacheSweeper interface {
	Sweep() int
}

// Janitor periodically sweeps sessions and the answer cache. Both expire
// lazily on access as well, so the janitor only bounds memory and closes
// sessions nobody touches any more.
type Janitor struct {
	sessions SessionSweeper
	answers  CacheSweeper
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewJanitor(sessions SessionSweeper, answers CacheSweeper, schedule string, logger *zap.Logger) *Janitor {
	return &Janitor{
		sessions: sessions,
		answers:  answers,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start schedules the sweep.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	j.cron.Start()
	j.logger.Info("janitor started", zap.String("schedule", j.schedule))
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("janitor stopped")
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce(ctx context.Context) {
	expired, idled := j.sessions.Sweep(ctx)
	evicted := j.answers.Sweep()

	metrics.JanitorRuns.WithLabelValues("session_expired").Add(float64(expired))
	metrics.JanitorRuns.WithLabelValues("session_idle").Add(float64(idled))
	metrics.JanitorRuns.WithLabelValues("cache_entry").Add(float64(evicted))

	if expired+idled+evicted > 0 {
		j.logger.Info("janitor sweep",
			zap.Int("sessions_expired", expired),
			zap.Int("sessions_idle", idled),
			zap.Int("cache_evicted", evicted))
	}
}
