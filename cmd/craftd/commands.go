package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loykin/craftd"
	"github.com/loykin/craftd/pkg/client"
)

// command dispatches CLI verbs. Remote verbs talk to a running daemon
// through pkg/client; local verbs operate on the server directory
// directly and must not race a serving daemon.
type command struct {
	out io.Writer
}

func (c command) api(flags APIFlags) *client.Client {
	cfg := client.DefaultConfig()
	if flags.URL != "" {
		cfg.BaseURL = flags.URL
	}
	if flags.Timeout > 0 {
		cfg.Timeout = flags.Timeout
	}
	return client.New(cfg)
}

func (c command) Status(flags APIFlags) error {
	st, err := c.api(flags).Status(context.Background())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "state:   %s\n", st.State)
	if st.PID != 0 {
		up := time.Duration(st.Uptime * float64(time.Second)).Truncate(time.Second)
		_, _ = fmt.Fprintf(c.out, "pid:     %d\nuptime:  %s\n", st.PID, up)
	}
	_, _ = fmt.Fprintf(c.out, "version: %s\nflavor:  %s\n", st.Version, st.Flavor)
	return nil
}

func (c command) Start(flags APIFlags) error {
	if err := c.api(flags).Start(context.Background()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "start requested")
	return nil
}

func (c command) Stop(flags APIFlags) error {
	if err := c.api(flags).Stop(context.Background()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "stop requested")
	return nil
}

func (c command) Restart(flags APIFlags) error {
	if err := c.api(flags).Restart(context.Background()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "restart requested")
	return nil
}

func (c command) Send(flags APIFlags, text string) error {
	return c.api(flags).Send(context.Background(), text)
}

func (c command) History(flags APIFlags, limit int) error {
	events, err := c.api(flags).History(context.Background(), limit)
	if err != nil {
		return err
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %-13s", ev.At.Local().Format("2006-01-02 15:04:05"), ev.Type)
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		_, _ = fmt.Fprintln(c.out, line)
	}
	return nil
}

func (c command) Backups(flags APIFlags) error {
	names, err := c.api(flags).Backups(context.Background())
	if err != nil {
		return err
	}
	for _, name := range names {
		_, _ = fmt.Fprintln(c.out, name)
	}
	return nil
}

// local opens the server directory without serving it.
func (c command) local(dir string) (*craftd.Daemon, error) {
	return craftd.NewDaemon(craftd.DaemonOptions{Dir: dir})
}

func (c command) Update(dir string, force bool) error {
	d, err := c.local(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	res, version, err := d.Update(context.Background(), force)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "%s (%s)\n", res, version)
	return nil
}

func (c command) Install(dir string, flags InstallFlags) error {
	flavor := craftd.Flavor(flags.Flavor)
	switch flavor {
	case craftd.Vanilla, craftd.Forge, craftd.NeoForge:
	default:
		return fmt.Errorf("unknown flavor %q (expected Vanilla, Forge or NeoForge)", flags.Flavor)
	}
	if flavor.Modded() && flags.InstallerURL == "" {
		return fmt.Errorf("%s requires --installer-url", flavor)
	}
	d, err := c.local(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	if err := d.InstallServer(context.Background(), flavor, flags.InstallerURL); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "%s server installed in %s\n", flavor, dir)
	return nil
}

func (c command) Backup(dir string) error {
	d, err := c.local(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	if err := d.Backup(); err != nil {
		return err
	}
	names, err := d.Backups.List()
	if err != nil {
		return err
	}
	if len(names) > 0 {
		_, _ = fmt.Fprintln(c.out, names[len(names)-1])
	}
	return nil
}

func defaultDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
