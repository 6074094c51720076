package sweeper

import (
	"context"
	"time"

	"lv-simtrade/internal/metrics"

	"go.uber.org/zap"
)

// Pass is one evaluation of all resting orders. Implemented by the order
// service.
type Pass interface {
	SweepPendingOrders(ctx context.Context) (int, error)
}

// Sweeper drives the trigger evaluation loop on a fixed cadence. It never
// stops on pass errors; a bad pass is logged and the next tick runs anyway.
type Sweeper struct {
	pass      Pass
	interval  time.Duration
	collector *metrics.Collector
	logger    *zap.Logger
}

const DefaultInterval = 30 * time.Second

func New(pass Pass, interval time.Duration, collector *metrics.Collector, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{pass: pass, interval: interval, collector: collector, logger: logger}
}

// Run blocks until ctx is cancelled. The first pass runs after one full
// interval, not immediately, so startup is quiet.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("order sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("order sweeper stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	start := time.Now()
	filled, err := s.pass.SweepPendingOrders(ctx)
	took := time.Since(start)
	if err != nil {
		s.logger.Error("sweep pass failed", zap.Error(err), zap.Duration("took", took))
		return
	}
	if s.collector != nil {
		s.collector.SweepCompleted(filled, took)
	}
	if filled > 0 {
		s.logger.Info("sweep pass filled orders",
			zap.Int("filled", filled),
			zap.Duration("took", took))
	}
}
