// Package supervisor owns the managed server's lifecycle: the state
// machine, start/stop sequencing, crash detection and the wiring
// between updater, backups, console and scheduler.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/craftd/internal/backup"
	"github.com/loykin/craftd/internal/config"
	"github.com/loykin/craftd/internal/console"
	"github.com/loykin/craftd/internal/history"
	"github.com/loykin/craftd/internal/install"
	"github.com/loykin/craftd/internal/metrics"
	"github.com/loykin/craftd/internal/notify"
	"github.com/loykin/craftd/internal/sched"
	"github.com/loykin/craftd/internal/updater"
)

// Lifecycle errors surfaced to callers (CLI, HTTP API).
var (
	ErrNotStopped   = errors.New("server is not stopped")
	ErrNotRunning   = errors.New("server is not running")
	ErrNotInstalled = errors.New("server is not installed")
)

// Fixed delays from the crash policy and restart sequencing. Both are
// fields so tests can shrink them.
const (
	DefaultCoolDown    = 10 * time.Second // wait before crash restart
	DefaultSettleDelay = 5 * time.Second  // let the OS release handles on restart
	monitorInterval    = time.Second
	stopWait           = 60 * time.Second // exit grace before a restart proceeds
)

// stopCommand is the graceful shutdown line written to the server's
// console input.
const stopCommand = "stop"

// Options wires a Supervisor's collaborators.
type Options struct {
	Config   *config.Store
	Paths    config.Paths
	Updater  *updater.Updater
	Resolver updater.Resolver
	Backups  *backup.Manager
	Notifier notify.Notifier
	History  history.Store
	Sink     console.Sink
	Logger   *slog.Logger
}

// Supervisor manages exactly one server process.
type Supervisor struct {
	cfg      *config.Store
	paths    config.Paths
	updater  *updater.Updater
	resolver updater.Resolver
	backups  *backup.Manager
	notifier notify.Notifier
	hist     history.Store
	sink     console.Sink
	log      *slog.Logger
	sched    *sched.Scheduler

	CoolDown    time.Duration
	SettleDelay time.Duration

	// Install runs the external install flow when no server is present.
	// Left nil, an uninstalled directory aborts the start sequence.
	Install func(ctx context.Context) error

	// Launch resolves the command line; defaults to install.LaunchCommand.
	Launch func(memory string) []string

	// Sweep kills stray processes bound to the artifact; defaults to
	// the gopsutil scan in sweepOrphans.
	Sweep func()

	mu            sync.Mutex
	state         State
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	startedAt     time.Time
	stopRequested bool
}

func New(o Options) *Supervisor {
	s := &Supervisor{
		cfg:         o.Config,
		paths:       o.Paths,
		updater:     o.Updater,
		resolver:    o.Resolver,
		backups:     o.Backups,
		notifier:    o.Notifier,
		hist:        o.History,
		sink:        o.Sink,
		log:         o.Logger,
		CoolDown:    DefaultCoolDown,
		SettleDelay: DefaultSettleDelay,
	}
	if s.notifier == nil {
		s.notifier = notify.Noop{}
	}
	if s.hist == nil {
		s.hist = history.Noop{}
	}
	if s.sink == nil {
		s.sink = console.SinkFunc(func(console.Record) {})
	}
	s.Launch = func(memory string) []string {
		return install.LaunchCommand(s.paths, memory)
	}
	s.Sweep = s.sweepOrphans
	s.sched = sched.New(s, s.log)
	return s
}

// Scheduler exposes the timer facility, mainly for tests to shorten
// the poll interval.
func (s *Supervisor) Scheduler() *sched.Scheduler { return s.sched }

// Status reports the current state snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:   s.state.String(),
		Version: s.cfg.Snapshot().LastServerVersion,
		Flavor:  string(install.ReadFlavor(s.paths)),
	}
	if s.state == StateRunning && s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
		st.Uptime = time.Since(s.startedAt).Seconds()
	}
	return st
}

// Running implements sched.Controller.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// UpdateAvailable implements sched.Controller: it resolves the channel
// target and compares it to the recorded installed version. Modded
// servers never report an update; their jars are not ours to replace.
func (s *Supervisor) UpdateAvailable(ctx context.Context) (string, bool) {
	if install.ReadFlavor(s.paths).Modded() {
		return "", false
	}
	cfg := s.cfg.Snapshot()
	v, err := s.resolver.Latest(ctx, cfg.UpdateToSnapshot)
	if err != nil {
		s.log.Warn("background update check failed", "error", err)
		return "", false
	}
	if v.ID == cfg.LastServerVersion {
		return v.ID, false
	}
	return v.ID, true
}

// StartSequence runs the full start path. It is an idempotent guard:
// any state other than Stopped returns ErrNotStopped immediately.
func (s *Supervisor) StartSequence(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrNotStopped
	}
	s.state = StateStarting
	s.stopRequested = false
	s.mu.Unlock()
	metrics.SetCurrentState(StateStopped.String(), false)
	metrics.SetCurrentState(StateStarting.String(), true)

	if err := s.runStartSequence(ctx); err != nil {
		s.setState(StateStopped)
		return err
	}
	return nil
}

// runStartSequence does the work of StartSequence after the Starting
// transition. It runs unlocked; the mutex is taken only around handle
// and flag access.
func (s *Supervisor) runStartSequence(ctx context.Context) error {
	cfg := s.cfg.Snapshot()
	flavor := install.ReadFlavor(s.paths)

	if !install.IsInstalled(s.paths) {
		if s.Install == nil {
			return ErrNotInstalled
		}
		s.log.Info("no server detected, running install flow")
		if err := s.Install(ctx); err != nil {
			return fmt.Errorf("install server: %w", err)
		}
		flavor = install.ReadFlavor(s.paths)
	}

	if cfg.CheckUpdates {
		if flavor.Modded() {
			s.log.Info("modded server detected, skipping vanilla auto-update", "flavor", string(flavor))
		} else {
			s.Sweep()
			res, v, err := s.updater.CheckAndReplace(ctx, cfg.UpdateToSnapshot, false)
			metrics.IncUpdateCheck(res.String())
			switch {
			case err != nil:
				// A failed check never blocks the start; the previous
				// artifact is still intact.
				s.log.Warn("update check failed, starting existing server", "error", err)
			case res == updater.Updated:
				_ = s.hist.Record(ctx, history.EventUpdate, v.ID)
			}
		}
	}

	// Any stray process bound to the artifact would corrupt the world
	// or hold the jar open; kill it before backup and spawn.
	s.Sweep()

	if cfg.EnableBackups {
		if err := s.backups.Snapshot(cfg.MaxBackups); err == nil {
			metrics.IncBackup()
			_ = s.hist.Record(ctx, history.EventBackup, "")
		}
	}

	s.log.Info("starting server")
	s.notifier.Notify(ctx, "Minecraft server starting...")

	argv := s.Launch(cfg.ServerMemory)
	s.log.Info("execute", "cmd", argv)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.paths.Dir
	configureSysProcAttr(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn server: %w", err)
	}

	mux := console.New(s.sink)
	mux.Attach(stdout, stderr)

	s.mu.Lock()
	// A stop issued mid-sequence lands before cmd is attached and has
	// nothing to signal; honor it here instead of going Running with
	// freshly re-armed timers.
	if s.stopRequested {
		s.mu.Unlock()
		s.log.Info("stop requested during start, terminating spawn")
		killTree(cmd)
		_ = cmd.Wait()
		mux.Wait()
		return errors.New("start aborted by stop request")
	}
	s.cmd = cmd
	s.stdin = stdin
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.setState(StateRunning)
	metrics.IncStart()
	_ = s.hist.Record(ctx, history.EventStart, "")

	go s.monitor(cmd, mux)

	pollUpdates := cfg.CheckUpdates && !flavor.Modded()
	var restartAfter time.Duration
	if cfg.EnableSchedule {
		restartAfter = time.Duration(cfg.RestartIntervalHours * float64(time.Hour))
	}
	s.sched.Arm(pollUpdates, restartAfter)
	return nil
}

// monitor waits on the one process this Supervisor spawned, publishing
// uptime until exit, then applies the crash policy. It is the sole
// authority on process termination.
func (s *Supervisor) monitor(cmd *exec.Cmd, mux *console.Multiplexer) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	var waitErr error
loop:
	for {
		select {
		case waitErr = <-done:
			break loop
		case <-ticker.C:
			s.mu.Lock()
			if s.state == StateRunning {
				metrics.SetUptime(time.Since(s.startedAt).Seconds())
			}
			s.mu.Unlock()
		}
	}
	mux.Wait()

	code := 0
	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			code = ee.ExitCode()
		} else {
			code = -1
		}
	}

	s.mu.Lock()
	s.cmd = nil
	s.stdin = nil
	stopRequested := s.stopRequested
	s.mu.Unlock()
	s.setState(StateStopped)
	metrics.SetUptime(0)
	metrics.IncStop()

	ctx := context.Background()
	s.log.Info("server exited", "code", code)
	s.notifier.Notify(ctx, fmt.Sprintf("Server stopped (code %d)", code))
	typ := history.EventStop
	if code != 0 {
		typ = history.EventCrash
	}
	_ = s.hist.Record(ctx, typ, fmt.Sprintf("exit code %d", code))

	if code != 0 && !stopRequested && s.cfg.Snapshot().EnableAutoRestart {
		s.log.Warn("crash detected, restarting after cool-down", "cooldown", s.CoolDown)
		s.notifier.Notify(ctx, fmt.Sprintf("Crash detected. Restarting in %s...", s.CoolDown))
		time.Sleep(s.CoolDown)
		// A stop issued during the cool-down suppresses the restart.
		s.mu.Lock()
		suppressed := s.stopRequested
		s.mu.Unlock()
		if suppressed {
			s.log.Info("restart suppressed by stop request")
			return
		}
		metrics.IncCrashRestart()
		_ = s.hist.Record(ctx, history.EventCrashRestart, "")
		if err := s.StartSequence(ctx); err != nil {
			s.log.Error("crash restart failed", "error", err)
		}
	}
}

// SendCommand writes one line to the server console.
func (s *Supervisor) SendCommand(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.stdin == nil {
		return ErrNotRunning
	}
	s.log.Info("> " + text)
	if _, err := io.WriteString(s.stdin, text+"\n"); err != nil {
		return fmt.Errorf("write console command: %w", err)
	}
	return nil
}

// StopRequested initiates a graceful shutdown. It suppresses the crash
// restart policy, cancels both timers and asks the server to save and
// exit; if the console write fails the process tree is killed. Actual
// exit is observed asynchronously by the monitor loop.
func (s *Supervisor) StopRequested() {
	s.mu.Lock()
	s.stopRequested = true
	cmd := s.cmd
	stdin := s.stdin
	running := s.state == StateRunning || s.state == StateStarting
	s.mu.Unlock()

	s.sched.Cancel()
	if !running || cmd == nil {
		return
	}
	// Only flip to Stopping if the monitor has not already observed the
	// exit; a Stopped set by the monitor is final for this run.
	s.mu.Lock()
	if s.state == StateRunning || s.state == StateStarting {
		s.state = StateStopping
		metrics.SetCurrentState(StateRunning.String(), false)
		metrics.SetCurrentState(StateStopping.String(), true)
	}
	s.mu.Unlock()
	s.log.Info("stopping server")
	if stdin == nil {
		killTree(cmd)
		return
	}
	if _, err := io.WriteString(stdin, stopCommand+"\n"); err != nil {
		s.log.Warn("graceful stop failed, killing process", "error", err)
		killTree(cmd)
	}
}

// RestartServer is stop, a settling delay, then start. The world save
// on shutdown can take a while, so the exit is awaited before settling.
func (s *Supervisor) RestartServer(ctx context.Context) error {
	s.log.Info("restarting server")
	s.StopRequested()
	s.waitStopped(stopWait)
	time.Sleep(s.SettleDelay)
	return s.StartSequence(ctx)
}

func (s *Supervisor) waitStopped(limit time.Duration) {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		stopped := s.state == StateStopped
		s.mu.Unlock()
		if stopped {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.log.Warn("server did not exit within the stop grace period")
}

// Restart implements sched.Controller for timer-driven restarts.
func (s *Supervisor) Restart(reason string) {
	ctx := context.Background()
	s.notifier.Notify(ctx, "Restarting server: "+reason)
	if err := s.RestartServer(ctx); err != nil {
		s.log.Error("timed restart failed", "reason", reason, "error", err)
	}
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		s.log.Debug("state transition", "from", prev.String(), "to", next.String())
	}
	metrics.SetCurrentState(prev.String(), false)
	metrics.SetCurrentState(next.String(), true)
}
