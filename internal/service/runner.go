package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner drives a named background task on a fixed interval. The task runs
// once immediately so fresh work does not wait for the first ticker edge.
type Runner struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	logger   *zap.Logger

	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func NewRunner(name string, interval time.Duration, run func(ctx context.Context) error, logger *zap.Logger) (*Runner, error) {
	if name == "" {
		return nil, fmt.Errorf("runner name is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("runner interval must be positive")
	}
	if run == nil {
		return nil, fmt.Errorf("runner task is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(d)
			return ticker.C, ticker.Stop
		},
	}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.logger.Info("runner started",
		zap.String("task", r.name),
		zap.Duration("interval", r.interval),
	)

	if err := r.run(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("initial run failed", zap.String("task", r.name), zap.Error(err))
	}

	ticks, stop := r.newTicker(r.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped", zap.String("task", r.name))
			return nil
		case <-ticks:
			if err := r.run(ctx); err != nil {
				if ctx.Err() != nil {
					r.logger.Info("runner stopped", zap.String("task", r.name))
					return nil
				}
				r.logger.Error("run failed", zap.String("task", r.name), zap.Error(err))
			}
		}
	}
}
