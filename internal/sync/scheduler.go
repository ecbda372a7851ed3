package sync

import (
	"context"
	stdsync "sync"
	"time"

	"alcyxob/fitness-sync/internal/remote"

	"github.com/rs/zerolog"
)

// Runner is what the scheduler triggers; *Engine satisfies it.
type Runner interface {
	Run(ctx context.Context) error
}

// SchedulerConfig tunes trigger handling and the bounded retry chain.
type SchedulerConfig struct {
	// Debounce absorbs flapping connectivity signals before a sync run is
	// attempted.
	Debounce time.Duration
	// BackoffBase is the delay before the first automatic retry of a
	// failed run; each further retry doubles it up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// MaxRetries bounds the retry chain; after that the dirty set simply
	// waits for the next connectivity event or manual refresh.
	MaxRetries int
}

// DefaultSchedulerConfig returns the stock trigger tuning.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Debounce:    750 * time.Millisecond,
		BackoffBase: 30 * time.Second,
		BackoffCap:  10 * time.Minute,
		MaxRetries:  5,
	}
}

// Scheduler turns connectivity transitions and explicit refresh requests
// into sync runs. A single-slot gate guarantees at most one run in
// flight; a trigger arriving while one is running is dropped, not
// queued. Runs are skipped entirely while no valid auth credential is
// held.
type Scheduler struct {
	runner Runner
	tokens remote.TokenProvider
	cfg    SchedulerConfig
	log    zerolog.Logger

	gate chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup

	mu            stdsync.Mutex
	reachable     bool
	retries       int
	debounceTimer *time.Timer
	retryTimer    *time.Timer
	closed        bool
}

// NewScheduler creates a scheduler around the given runner. Zero config
// fields fall back to DefaultSchedulerConfig values.
func NewScheduler(runner Runner, tokens remote.TokenProvider, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		tokens: tokens,
		cfg:    cfg,
		log:    logger.With().Str("component", "scheduler").Logger(),
		gate:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		// Optimistic until the connectivity monitor says otherwise.
		reachable: true,
	}
}

// NetworkChanged feeds a reachability transition into the scheduler. A
// new event cancels any pending debounce timer and resets the retry
// chain; becoming reachable starts a fresh debounce window.
func (s *Scheduler) NetworkChanged(reachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reachable = reachable
	s.stopTimersLocked()
	s.retries = 0
	if !reachable {
		s.log.Debug().Msg("network unreachable, sync triggers paused")
		return
	}
	s.log.Debug().Dur("debounce", s.cfg.Debounce).Msg("network reachable, debouncing sync trigger")
	s.debounceTimer = time.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		ok := s.reachable && !s.closed
		s.mu.Unlock()
		if ok {
			s.tryRun()
		}
	})
}

// SyncNow attempts an immediate, non-debounced run: used at application
// start and for user-initiated refresh. It reports whether a run was
// started; a refresh while one is already in flight simply proceeds to
// read local state.
func (s *Scheduler) SyncNow() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.stopTimersLocked()
	s.retries = 0
	s.mu.Unlock()
	return s.tryRun()
}

// InFlight reports whether a sync run is currently executing.
func (s *Scheduler) InFlight() bool {
	return len(s.gate) > 0
}

// Close cancels pending timers, stops accepting triggers and waits for
// an in-flight run to finish its current entity phase.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimersLocked()
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) stopTimersLocked() {
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// tryRun acquires the single-slot gate and runs the engine in the
// background. Overlapping triggers collapse: whoever loses the gate
// no-ops.
func (s *Scheduler) tryRun() bool {
	if !s.tokens.Valid() {
		s.log.Debug().Msg("no valid credential, skipping sync run")
		return false
	}
	select {
	case s.gate <- struct{}{}:
	default:
		s.log.Debug().Msg("sync already in flight, trigger dropped")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.runner.Run(s.ctx)
		<-s.gate
		if err != nil {
			s.scheduleRetry()
			return
		}
		s.mu.Lock()
		s.retries = 0
		s.mu.Unlock()
	}()
	return true
}

// scheduleRetry arms the bounded backoff chain after a failed run.
func (s *Scheduler) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.reachable {
		return
	}
	if s.retries >= s.cfg.MaxRetries {
		s.log.Warn().Int("retries", s.retries).Msg("retry budget exhausted, waiting for next trigger")
		return
	}
	delay := s.cfg.BackoffBase << s.retries
	if delay > s.cfg.BackoffCap || delay <= 0 {
		delay = s.cfg.BackoffCap
	}
	s.retries++
	s.log.Info().Dur("delay", delay).Int("attempt", s.retries).Msg("scheduling sync retry")
	s.retryTimer = time.AfterFunc(delay, func() {
		s.tryRun()
	})
}
