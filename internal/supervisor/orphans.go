package supervisor

import (
	"os"
	"path/filepath"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// sweepOrphans kills any OS process whose command line references the
// server artifact and that we do not own. The updater replaces the jar
// with no cross-process lock; stopping strays first is the only
// defense against swapping the file under a live server.
func (s *Supervisor) sweepOrphans() {
	jar := filepath.Base(s.paths.Artifact)
	self := int32(os.Getpid())

	s.mu.Lock()
	var own int32
	if s.cmd != nil && s.cmd.Process != nil {
		own = int32(s.cmd.Process.Pid)
	}
	s.mu.Unlock()

	procs, err := gopsproc.Processes()
	if err != nil {
		s.log.Warn("orphan sweep failed", "error", err)
		return
	}
	for _, p := range procs {
		if p.Pid == self || (own != 0 && p.Pid == own) {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil || !strings.Contains(cmdline, jar) {
			continue
		}
		s.log.Warn("killing stray server process", "pid", p.Pid)
		if err := p.Kill(); err != nil {
			s.log.Warn("failed to kill stray process", "pid", p.Pid, "error", err)
		}
	}
}
