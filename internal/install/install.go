// Package install handles first-run provisioning of a server
// directory and resolves how an installed server is launched.
package install

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/loykin/craftd/internal/config"
	"github.com/loykin/craftd/internal/mojang"
	"github.com/loykin/craftd/internal/updater"
)

// Flavor names the server distribution in the flavor marker file.
type Flavor string

const (
	Vanilla  Flavor = "Vanilla"
	Forge    Flavor = "Forge"
	NeoForge Flavor = "NeoForge"
)

// Modded reports whether the flavor ships its own launcher and must
// not be touched by the vanilla auto-updater.
func (f Flavor) Modded() bool {
	return f == Forge || f == NeoForge
}

// ParseFlavor maps marker file content to a Flavor, defaulting to
// Vanilla for unknown values.
func ParseFlavor(s string) Flavor {
	switch Flavor(strings.TrimSpace(s)) {
	case Forge:
		return Forge
	case NeoForge:
		return NeoForge
	default:
		return Vanilla
	}
}

// ReadFlavor reads the flavor marker; a missing or unreadable marker
// means Vanilla.
func ReadFlavor(paths config.Paths) Flavor {
	b, err := os.ReadFile(paths.FlavorFile)
	if err != nil {
		return Vanilla
	}
	return ParseFlavor(string(b))
}

// WriteFlavor persists the flavor marker.
func WriteFlavor(paths config.Paths, f Flavor) error {
	return os.WriteFile(paths.FlavorFile, []byte(string(f)), 0o600)
}

// IsInstalled reports whether the directory already holds a server.
// Any of the well-known files counts: a half-finished modded install
// leaves eula.txt or the flavor marker even without the jar.
func IsInstalled(paths config.Paths) bool {
	candidates := []string{
		paths.Artifact,
		filepath.Join(paths.Dir, "server.properties"),
		filepath.Join(paths.Dir, "eula.txt"),
		paths.FlavorFile,
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// AcceptEULA writes the eula acceptance file the server checks on boot.
func AcceptEULA(paths config.Paths) error {
	return os.WriteFile(filepath.Join(paths.Dir, "eula.txt"), []byte("eula=true\n"), 0o600)
}

// Installer provisions a fresh server directory.
type Installer struct {
	updater *updater.Updater
	fetcher updater.Fetcher
	paths   config.Paths
	log     *slog.Logger
}

func New(u *updater.Updater, fetcher updater.Fetcher, paths config.Paths, log *slog.Logger) *Installer {
	return &Installer{updater: u, fetcher: fetcher, paths: paths, log: log}
}

// Vanilla downloads the latest vanilla server jar for the channel,
// accepts the EULA and writes the flavor marker.
func (i *Installer) Vanilla(ctx context.Context, snapshot bool) error {
	i.log.Info("installing vanilla server", "snapshot", snapshot)
	if err := WriteFlavor(i.paths, Vanilla); err != nil {
		return err
	}
	res, v, err := i.updater.CheckAndReplace(ctx, snapshot, true)
	if err != nil {
		return fmt.Errorf("install vanilla server: %w", err)
	}
	if res != updater.Updated {
		return fmt.Errorf("install vanilla server: unexpected result %s", res)
	}
	if err := AcceptEULA(i.paths); err != nil {
		return err
	}
	i.log.Info("vanilla server installed", "version", v.ID)
	return nil
}

// Modded downloads the given installer jar and runs it with
// --installServer, then accepts the EULA and writes the flavor marker.
// The installer runs in the server directory and typically drops a
// run.sh launch script that later takes precedence over the raw jar.
func (i *Installer) Modded(ctx context.Context, flavor Flavor, installerURL string) error {
	if !flavor.Modded() {
		return fmt.Errorf("flavor %s has no installer flow", flavor)
	}
	i.log.Info("installing modded server", "flavor", string(flavor), "url", installerURL)
	if err := WriteFlavor(i.paths, flavor); err != nil {
		return err
	}
	installerJar := filepath.Join(i.paths.Dir, "installer.jar")
	if err := i.fetcher.Download(ctx, installerURL, installerJar); err != nil {
		return fmt.Errorf("download %s installer: %w", flavor, err)
	}
	cmd := exec.CommandContext(ctx, "java", "-jar", installerJar, "--installServer")
	cmd.Dir = i.paths.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s installer: %w", flavor, err)
	}
	if err := AcceptEULA(i.paths); err != nil {
		return err
	}
	i.log.Info("modded server installed", "flavor", string(flavor))
	return nil
}

// Ensure *mojang.Client keeps satisfying the fetcher contract.
var _ updater.Fetcher = (*mojang.Client)(nil)

// LaunchCommand resolves how the installed server starts, in order of
// preference: a run.sh/run.bat launch script (modern Forge installs
// pass JVM args through it), a loader jar whose name mentions forge,
// then the plain artifact with explicit heap flags.
func LaunchCommand(paths config.Paths, memory string) []string {
	if runtime.GOOS == "windows" {
		if _, err := os.Stat(filepath.Join(paths.Dir, "run.bat")); err == nil {
			return []string{"run.bat"}
		}
	} else if _, err := os.Stat(filepath.Join(paths.Dir, "run.sh")); err == nil {
		return []string{"./run.sh"}
	}

	jar := filepath.Base(paths.Artifact)
	if entries, err := os.ReadDir(paths.Dir); err == nil {
		for _, e := range entries {
			name := e.Name()
			if !strings.HasSuffix(name, ".jar") {
				continue
			}
			if strings.Contains(strings.ToLower(name), "forge") {
				jar = name
				break
			}
		}
	}
	return []string{"java", "-Xmx" + memory, "-Xms" + memory, "-jar", jar, "nogui"}
}
