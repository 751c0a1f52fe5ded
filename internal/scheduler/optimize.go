package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sky-flux/flux"
	"github.com/sky-flux/flux/optimizer"
)

// Optimize refits the scheduler parameters from this user's full review
// history and replaces the stored configuration wholesale. Retention,
// learning steps and the other settings survive the refit; only the weight
// vector changes.
//
// It is a no-op when there are no review logs yet, or when there are too few
// cross-day reviews for the fit to be meaningful. Intended for periodic or
// manual invocation, never the request path.
func (e *Engine) Optimize(ctx context.Context) error {
	logs, err := e.db.AllReviewLogs()
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		slog.Info("optimize skipped, no review history yet")
		return nil
	}

	opt := optimizer.NewOptimizer(optimizer.OptimizerConfig{})
	params, err := opt.ComputeOptimalParameters(ctx, logs)
	if errors.Is(err, optimizer.ErrInsufficientData) {
		slog.Warn("optimize skipped, not enough cross-day reviews", "logs", len(logs))
		return nil
	}
	if err != nil {
		return fmt.Errorf("compute optimal parameters: %w", err)
	}

	current, err := e.db.LoadScheduler()
	if err != nil {
		return err
	}
	cfg, err := schedulerConfig(current)
	if err != nil {
		return err
	}
	cfg.Parameters = params

	next, err := flux.NewScheduler(cfg)
	if err != nil {
		return fmt.Errorf("rebuild scheduler: %w", err)
	}
	if err := e.db.SaveScheduler(next, e.now()); err != nil {
		return err
	}

	e.algo = FluxAlgorithm(next)
	slog.Info("scheduler parameters optimized", "logs", len(logs))
	return nil
}

// schedulerConfig recovers the configuration a scheduler was built with by
// round-tripping through its serialized form.
func schedulerConfig(sched *flux.Scheduler) (flux.SchedulerConfig, error) {
	data, err := json.Marshal(sched)
	if err != nil {
		return flux.SchedulerConfig{}, fmt.Errorf("encode scheduler: %w", err)
	}
	var cfg flux.SchedulerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return flux.SchedulerConfig{}, fmt.Errorf("decode scheduler config: %w", err)
	}
	return cfg, nil
}
