// Package scheduler runs the service's periodic maintenance tasks.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one maintenance job. Returning an error only logs; the task runs
// again on the next day.
type Task func(ctx context.Context) error

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	// Hour and Minute are the local time the tasks run at (24h clock)
	Hour   int
	Minute int

	// CheckInterval is how often the clock is polled
	CheckInterval time.Duration
}

// DefaultDailyTriggerConfig runs maintenance at 03:00
func DefaultDailyTriggerConfig() DailyTriggerConfig {
	return DailyTriggerConfig{
		Hour:          3,
		Minute:        0,
		CheckInterval: time.Minute,
	}
}

// Validate checks the configured time of day
func (c DailyTriggerConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: time %02d:%02d", ErrInvalidConfig, c.Hour, c.Minute)
	}
	if c.CheckInterval <= 0 || c.CheckInterval > time.Minute {
		return fmt.Errorf("%w: check interval must be in (0, 1m]", ErrInvalidConfig)
	}
	return nil
}

type namedTask struct {
	name string
	run  Task
}

// DailyTrigger runs registered tasks once a day at a fixed time
type DailyTrigger struct {
	config DailyTriggerConfig
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	tasks       []namedTask
	isRunning   bool
	lastRunDate string
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(config DailyTriggerConfig, logger *zap.Logger) (*DailyTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyTrigger{
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Register adds a task. Tasks run sequentially in registration order.
func (d *DailyTrigger) Register(name string, task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tasks {
		if t.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
		}
	}
	d.tasks = append(d.tasks, namedTask{name: name, run: task})
	return nil
}

// Start starts polling the clock
func (d *DailyTrigger) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isRunning {
		return nil
	}
	d.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.runLoop(ctx)

	d.logger.Info("Maintenance trigger started",
		zap.Int("hour", d.config.Hour),
		zap.Int("minute", d.config.Minute),
		zap.Int("tasks", len(d.tasks)),
	)
	return nil
}

// Stop stops the trigger and waits for a running task to return
func (d *DailyTrigger) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Maintenance trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DailyTrigger) runLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkAndRun(ctx)
		}
	}
}

// checkAndRun runs the tasks when the clock reaches the configured minute,
// at most once per calendar day
func (d *DailyTrigger) checkAndRun(ctx context.Context) bool {
	now := d.now()
	if now.Hour() != d.config.Hour || now.Minute() != d.config.Minute {
		return false
	}

	today := now.Format("2006-01-02")
	d.mu.Lock()
	if d.lastRunDate == today {
		d.mu.Unlock()
		return false
	}
	d.lastRunDate = today
	d.mu.Unlock()

	d.RunNow(ctx)
	return true
}

// RunNow runs every task immediately
func (d *DailyTrigger) RunNow(ctx context.Context) {
	d.mu.Lock()
	tasks := make([]namedTask, len(d.tasks))
	copy(tasks, d.tasks)
	d.mu.Unlock()

	for _, t := range tasks {
		if ctx.Err() != nil {
			return
		}
		start := d.now()
		if err := t.run(ctx); err != nil {
			d.logger.Error("Maintenance task failed", zap.String("task", t.name), zap.Error(err))
			continue
		}
		d.logger.Info("Maintenance task finished",
			zap.String("task", t.name),
			zap.Duration("duration", d.now().Sub(start)))
	}
}
