// Package sched owns the two maintenance timers: periodic update
// polling and the one-shot scheduled restart. Re-arming is explicit
// here rather than callback recursion, so a cancelled cycle cannot
// leak a timer into the next server run.
package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is how often the background update check runs.
const DefaultPollInterval = 1800 * time.Second

// Controller is the slice of the supervisor the timers act on. The
// callbacks must tolerate firing moments after cancellation: each
// checks live state before acting.
type Controller interface {
	// Running reports whether a server process is currently attached.
	Running() bool
	// UpdateAvailable resolves the channel target and compares it to
	// the installed version. It must be cheap to call every poll.
	UpdateAvailable(ctx context.Context) (version string, available bool)
	// Restart performs the notify/stop/settle/start cycle.
	Restart(reason string)
}

// Scheduler drives the timers for one server run. Arm after a
// successful start, Cancel on stop; both are idempotent per cycle.
type Scheduler struct {
	ctrl         Controller
	log          *slog.Logger
	PollInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(ctrl Controller, log *slog.Logger) *Scheduler {
	return &Scheduler{ctrl: ctrl, log: log, PollInterval: DefaultPollInterval}
}

// Arm starts the timers for the new server run. pollUpdates enables
// the repeating update check; restartAfter > 0 arms the one-shot
// scheduled restart. A previous cycle, if any, is cancelled first.
func (s *Scheduler) Arm(pollUpdates bool, restartAfter time.Duration) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	if pollUpdates {
		s.log.Info("update polling armed", "interval", s.PollInterval)
		go s.pollLoop(ctx)
	}
	if restartAfter > 0 {
		s.log.Info("scheduled restart armed", "after", restartAfter)
		go s.restartOnce(ctx, restartAfter)
	}
}

// Cancel stops both timers. Callbacks already in flight re-check live
// state and become no-ops.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	t := time.NewTicker(s.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ctx.Err() != nil || !s.ctrl.Running() {
				return
			}
			version, available := s.ctrl.UpdateAvailable(ctx)
			if !available {
				s.log.Debug("background update check: up to date")
				continue
			}
			s.log.Info("background update check found new version", "version", version)
			// Restart tears this cycle down; the next start re-arms.
			s.ctrl.Restart("update to " + version)
			return
		}
	}
}

func (s *Scheduler) restartOnce(ctx context.Context, after time.Duration) {
	t := time.NewTimer(after)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
		if ctx.Err() != nil || !s.ctrl.Running() {
			return
		}
		s.log.Info("executing scheduled restart")
		s.ctrl.Restart("scheduled maintenance")
	}
}
