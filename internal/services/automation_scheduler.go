package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AutomationRunner materializes automations as of now.
type AutomationRunner interface {
	Run(ctx context.Context, now time.Time) (MaterializeResult, error)
}

type AutomationSchedulerConfig struct {
	// Interval between runs (default: 1h)
	Interval time.Duration

	// RunOnStart triggers a run as soon as the scheduler starts (default: true)
	RunOnStart bool
}

func DefaultAutomationSchedulerConfig() AutomationSchedulerConfig {
	return AutomationSchedulerConfig{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// AutomationScheduler runs the materializer periodically so that rules keep
// producing transactions while the process stays up across month boundaries.
type AutomationScheduler struct {
	runner AutomationRunner
	config AutomationSchedulerConfig
	now    func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewAutomationScheduler(runner AutomationRunner, config AutomationSchedulerConfig) *AutomationScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultAutomationSchedulerConfig().Interval
	}
	return &AutomationScheduler{
		runner: runner,
		config: config,
		now:    time.Now,
	}
}

// Start begins the run loop. Returns an error if already running.
func (s *AutomationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("automation scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Automation scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for an in-flight run to finish.
func (s *AutomationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Automation scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Automation scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

func (s *AutomationScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *AutomationScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *AutomationScheduler) runOnce(ctx context.Context) {
	res, err := s.runner.Run(ctx, s.now())
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled automation run failed", "error", err)
		return
	}
	slog.DebugContext(ctx, "Scheduled automation run",
		"created", res.Created,
		"existing", res.Existing,
		"skipped", res.Skipped)
}
