// Package backup archives the world directory before each start and
// enforces a keep-newest retention policy.
package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const prefix = "world_backup_"

// Manager snapshots one data directory into timestamped zip archives.
type Manager struct {
	worldDir  string
	backupDir string
	log       *slog.Logger
	now       func() time.Time
}

func New(worldDir, backupDir string, log *slog.Logger) *Manager {
	return &Manager{worldDir: worldDir, backupDir: backupDir, log: log, now: time.Now}
}

// Snapshot archives the world directory and prunes old backups down to
// maxBackups. A missing world directory is a no-op. Errors are logged
// and returned, but callers treat backups as best-effort: a failure
// never blocks the start sequence.
func (m *Manager) Snapshot(maxBackups int) error {
	if _, err := os.Stat(m.worldDir); os.IsNotExist(err) {
		m.log.Debug("no world directory, skipping backup", "dir", m.worldDir)
		return nil
	}
	if err := os.MkdirAll(m.backupDir, 0o750); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	name := prefix + m.now().Format("2006-01-02_15-04-05") + ".zip"
	dst := filepath.Join(m.backupDir, name)
	if err := zipDir(m.worldDir, dst); err != nil {
		_ = os.Remove(dst)
		m.log.Error("world backup failed", "error", err)
		return err
	}
	m.log.Info("world backup created", "file", name)
	if err := m.prune(maxBackups); err != nil {
		m.log.Warn("backup pruning failed", "error", err)
		return err
	}
	return nil
}

// List returns backup archive names, oldest first. Timestamped names
// sort chronologically.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".zip") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Manager) prune(maxBackups int) error {
	if maxBackups <= 0 {
		return nil
	}
	names, err := m.List()
	if err != nil {
		return err
	}
	if len(names) <= maxBackups {
		return nil
	}
	for _, name := range names[:len(names)-maxBackups] {
		if err := os.Remove(filepath.Join(m.backupDir, name)); err != nil {
			return fmt.Errorf("prune %s: %w", name, err)
		}
		m.log.Info("old backup removed", "file", name)
	}
	return nil
}

func zipDir(src, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, in)
		_ = in.Close()
		return err
	})
	if err != nil {
		_ = zw.Close()
		_ = f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
