package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/craftd"
)

const stopGrace = 30 * time.Second

func runServe(dir string, flags ServeFlags) error {
	logCfg := craftd.LogConfig{FilePath: flags.LogFile}
	if flags.Debug {
		logCfg.Level = slog.LevelDebug
	}
	log := logCfg.Setup()
	slog.SetDefault(log)

	d, err := craftd.NewDaemon(craftd.DaemonOptions{
		Dir:     dir,
		Logger:  log,
		Console: os.Stdout,
	})
	if err != nil {
		return err
	}

	if err := craftd.RegisterMetricsDefault(); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}

	srv := d.Serve(flags.Listen, flags.BasePath)
	log.Info("api listening", "addr", flags.Listen, "base_path", flags.BasePath)

	// Bring the server up; a failure here (not installed, download
	// refused) leaves the API serving so the operator can intervene.
	if err := d.Start(context.Background()); err != nil {
		log.Warn("initial start failed", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	d.Stop()
	waitStopped(d, stopGrace)
	_ = srv.Close()
	return d.Close()
}

// runHeadless is console mode: bring the server up, mirror its output,
// stop it on the first interrupt. No HTTP API.
func runHeadless(dir string, flags ServeFlags) error {
	logCfg := craftd.LogConfig{FilePath: flags.LogFile}
	if flags.Debug {
		logCfg.Level = slog.LevelDebug
	}
	log := logCfg.Setup()
	slog.SetDefault(log)

	d, err := craftd.NewDaemon(craftd.DaemonOptions{
		Dir:     dir,
		Logger:  log,
		Console: os.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	if err := d.Start(context.Background()); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	d.Stop()
	waitStopped(d, stopGrace)
	return nil
}

// waitStopped blocks until the supervisor reports stopped or the grace
// period runs out.
func waitStopped(d *craftd.Daemon, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if d.Status().State == "stopped" {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
