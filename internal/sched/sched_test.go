package sched

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeController struct {
	mu        sync.Mutex
	running   bool
	version   string
	available bool
	restarts  []string
	polls     atomic.Int32
}

func (f *fakeController) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeController) UpdateAvailable(context.Context) (string, bool) {
	f.polls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, f.available
}

func (f *fakeController) Restart(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts = append(f.restarts, reason)
}

func (f *fakeController) restartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.restarts)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollRestartsOnNewVersion(t *testing.T) {
	ctrl := &fakeController{running: true, version: "1.21.9", available: true}
	s := New(ctrl, discard())
	s.PollInterval = 10 * time.Millisecond
	s.Arm(true, 0)
	defer s.Cancel()

	deadline := time.After(2 * time.Second)
	for ctrl.restartCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("no restart triggered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// The poll loop exits after requesting a restart; give it a few more
	// intervals and confirm no second restart fires.
	time.Sleep(50 * time.Millisecond)
	if n := ctrl.restartCount(); n != 1 {
		t.Errorf("restarts=%d want 1", n)
	}
	if ctrl.restarts[0] != "update to 1.21.9" {
		t.Errorf("reason=%q", ctrl.restarts[0])
	}
}

func TestPollKeepsGoingWhenUpToDate(t *testing.T) {
	ctrl := &fakeController{running: true, available: false}
	s := New(ctrl, discard())
	s.PollInterval = 5 * time.Millisecond
	s.Arm(true, 0)
	defer s.Cancel()

	deadline := time.After(2 * time.Second)
	for ctrl.polls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("poll loop did not re-arm")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if ctrl.restartCount() != 0 {
		t.Errorf("restarted while up to date")
	}
}

func TestPollStopsWhenNotRunning(t *testing.T) {
	ctrl := &fakeController{running: false, available: true, version: "x"}
	s := New(ctrl, discard())
	s.PollInterval = 5 * time.Millisecond
	s.Arm(true, 0)
	defer s.Cancel()

	time.Sleep(50 * time.Millisecond)
	if ctrl.restartCount() != 0 {
		t.Error("restart fired for a stopped server")
	}
	if ctrl.polls.Load() != 0 {
		t.Error("poll performed after liveness check failed")
	}
}

func TestScheduledRestartFiresOnce(t *testing.T) {
	ctrl := &fakeController{running: true}
	s := New(ctrl, discard())
	s.Arm(false, 20*time.Millisecond)
	defer s.Cancel()

	deadline := time.After(2 * time.Second)
	for ctrl.restartCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduled restart never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(60 * time.Millisecond)
	if n := ctrl.restartCount(); n != 1 {
		t.Errorf("restarts=%d want exactly 1", n)
	}
	if ctrl.restarts[0] != "scheduled maintenance" {
		t.Errorf("reason=%q", ctrl.restarts[0])
	}
}

func TestCancelSuppressesTimers(t *testing.T) {
	ctrl := &fakeController{running: true, available: true, version: "x"}
	s := New(ctrl, discard())
	s.PollInterval = 30 * time.Millisecond
	s.Arm(true, 30*time.Millisecond)
	s.Cancel()

	time.Sleep(100 * time.Millisecond)
	if ctrl.restartCount() != 0 {
		t.Errorf("restarts=%d after cancel", ctrl.restartCount())
	}
}

func TestRearmCancelsPreviousCycle(t *testing.T) {
	ctrl := &fakeController{running: true}
	s := New(ctrl, discard())
	s.Arm(false, 30*time.Millisecond)
	// Re-arm with a long timer; the short one from the first cycle must die.
	s.Arm(false, time.Hour)
	defer s.Cancel()

	time.Sleep(100 * time.Millisecond)
	if ctrl.restartCount() != 0 {
		t.Error("stale timer from previous cycle fired")
	}
}
