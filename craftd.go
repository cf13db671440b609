package craftd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/loykin/craftd/internal/backup"
	"github.com/loykin/craftd/internal/config"
	"github.com/loykin/craftd/internal/console"
	"github.com/loykin/craftd/internal/history"
	"github.com/loykin/craftd/internal/install"
	"github.com/loykin/craftd/internal/logger"
	"github.com/loykin/craftd/internal/metrics"
	"github.com/loykin/craftd/internal/mojang"
	"github.com/loykin/craftd/internal/notify"
	iapi "github.com/loykin/craftd/internal/server"
	"github.com/loykin/craftd/internal/supervisor"
	"github.com/loykin/craftd/internal/updater"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Paths = config.Paths

type Status = supervisor.Status

type Event = history.Event

type Flavor = install.Flavor

type LogConfig = logger.Config

type UpdateResult = updater.Result

const (
	Vanilla  = install.Vanilla
	Forge    = install.Forge
	NeoForge = install.NeoForge
)

const (
	UpdateFailed = updater.Failed
	UpToDate     = updater.UpToDate
	Updated      = updater.Updated
)

// Daemon is a fully wired supervisor for one server directory. It is
// the embedding entry point; the craftd binary is a thin wrapper over
// it.
type Daemon struct {
	Supervisor *supervisor.Supervisor
	Config     *config.Store
	Paths      config.Paths
	History    history.Store
	Backups    *backup.Manager

	updater    *updater.Updater
	installer  *install.Installer
	consoleLog io.WriteCloser
	log        *slog.Logger
}

// DaemonOptions configures NewDaemon.
type DaemonOptions struct {
	Dir     string       // server directory (required)
	Logger  *slog.Logger // defaults to slog.Default()
	Console io.Writer    // live server output destination; nil disables it
}

// NewDaemon loads the configuration under o.Dir and wires a Supervisor
// with its updater, backup manager, webhook notifier, event history and
// console sink. The caller owns Close.
func NewDaemon(o DaemonOptions) (*Daemon, error) {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(o.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create server dir: %w", err)
	}
	paths := config.DefaultPaths(o.Dir)
	store, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	hist, err := history.Open(context.Background(), paths.HistoryDB)
	if err != nil {
		return nil, err
	}

	moj := mojang.NewClient()
	record := func(version string) error {
		if err := os.WriteFile(paths.VersionFile, []byte(version+"\n"), 0o600); err != nil {
			return err
		}
		return store.Update(func(c *config.Config) { c.LastServerVersion = version })
	}
	upd := updater.New(moj, moj, paths.Artifact, record, log)
	backups := backup.New(paths.World, paths.BackupDir, log)

	var fileLog io.WriteCloser
	if store.Snapshot().EnableFileLog {
		fileLog = logger.FileWriter(paths.LogFile, logger.DefaultMaxBackups)
	}
	var display console.DisplayFunc
	if o.Console != nil {
		display = renderTo(o.Console)
	}
	var fileW io.Writer
	if fileLog != nil {
		fileW = fileLog
	}
	sink := console.NewRecorder(fileW, display)

	sup := supervisor.New(supervisor.Options{
		Config:   store,
		Paths:    paths,
		Updater:  upd,
		Resolver: moj,
		Backups:  backups,
		Notifier: notify.ForConfig(store.Snapshot().DiscordWebhook, log),
		History:  hist,
		Sink:     sink,
		Logger:   log,
	})
	installer := install.New(upd, moj, paths, log)
	sup.Install = func(ctx context.Context) error {
		return installer.Vanilla(ctx, store.Snapshot().UpdateToSnapshot)
	}

	return &Daemon{
		Supervisor: sup,
		Config:     store,
		Paths:      paths,
		History:    hist,
		Backups:    backups,
		updater:    upd,
		installer:  installer,
		consoleLog: fileLog,
		log:        log,
	}, nil
}

// Start runs the full start sequence: update check, backup, launch.
func (d *Daemon) Start(ctx context.Context) error {
	return d.Supervisor.StartSequence(ctx)
}

// Stop requests a graceful shutdown of the server process.
func (d *Daemon) Stop() { d.Supervisor.StopRequested() }

// Status reports the current supervisor state.
func (d *Daemon) Status() Status { return d.Supervisor.Status() }

// Send writes one command line to the server console.
func (d *Daemon) Send(command string) error { return d.Supervisor.SendCommand(command) }

// Update checks the version manifest and replaces the server jar when a
// newer build is published. Modded servers are left alone. It returns
// the outcome and the target version id.
func (d *Daemon) Update(ctx context.Context, force bool) (UpdateResult, string, error) {
	cfg := d.Config.Snapshot()
	if install.ReadFlavor(d.Paths).Modded() {
		return UpToDate, cfg.LastServerVersion, nil
	}
	res, v, err := d.updater.CheckAndReplace(ctx, cfg.UpdateToSnapshot, force)
	return res, v.ID, err
}

// InstallServer provisions a fresh server of the given flavor into the
// server directory. installerURL is required for modded flavors and
// ignored otherwise.
func (d *Daemon) InstallServer(ctx context.Context, flavor Flavor, installerURL string) error {
	if flavor.Modded() {
		return d.installer.Modded(ctx, flavor, installerURL)
	}
	return d.installer.Vanilla(ctx, d.Config.Snapshot().UpdateToSnapshot)
}

// Backup archives the world directory, honoring the retention limit.
func (d *Daemon) Backup() error {
	return d.Backups.Snapshot(d.Config.Snapshot().MaxBackups)
}

// Serve exposes the HTTP API on addr under basePath and returns the
// running server. Shut it down via http.Server's Close or Shutdown.
func (d *Daemon) Serve(addr, basePath string) *http.Server {
	router := iapi.NewRouter(d.Supervisor, d.History, d.Backups, basePath)
	return iapi.NewServer(addr, router)
}

// Close stops the managed server and releases the history database and
// console log.
func (d *Daemon) Close() error {
	d.Supervisor.StopRequested()
	if d.consoleLog != nil {
		_ = d.consoleLog.Close()
	}
	return d.History.Close()
}

var tagColors = map[logger.Tag]string{
	logger.TagRed:    "\033[31m",
	logger.TagGreen:  "\033[32m",
	logger.TagYellow: "\033[33m",
	logger.TagCyan:   "\033[36m",
}

// renderTo rebuilds colored terminal output from tagged spans.
func renderTo(w io.Writer) console.DisplayFunc {
	return func(_ console.Record, spans []logger.Span) {
		for _, sp := range spans {
			if c, ok := tagColors[sp.Tag]; ok {
				_, _ = io.WriteString(w, c+sp.Text+"\033[0m")
				continue
			}
			_, _ = io.WriteString(w, sp.Text)
		}
		_, _ = io.WriteString(w, "\n")
	}
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
