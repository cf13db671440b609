package install

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/loykin/craftd/internal/config"
	"github.com/loykin/craftd/internal/mojang"
	"github.com/loykin/craftd/internal/updater"
)

type stubResolver struct{ v mojang.Version }

func (s stubResolver) Latest(context.Context, bool) (mojang.Version, error) { return s.v, nil }

type stubFetcher struct{ body string }

func (s stubFetcher) Download(_ context.Context, _ string, dst string) error {
	return os.WriteFile(dst, []byte(s.body), 0o600)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseFlavor(t *testing.T) {
	cases := map[string]Flavor{
		"Vanilla":    Vanilla,
		"Forge":      Forge,
		"NeoForge\n": NeoForge,
		"unknown":    Vanilla,
		"":           Vanilla,
	}
	for in, want := range cases {
		if got := ParseFlavor(in); got != want {
			t.Errorf("ParseFlavor(%q)=%q want %q", in, got, want)
		}
	}
}

func TestFlavorModded(t *testing.T) {
	if Vanilla.Modded() {
		t.Error("Vanilla.Modded()=true")
	}
	if !Forge.Modded() || !NeoForge.Modded() {
		t.Error("loader flavors should be modded")
	}
}

func TestReadFlavorMissingDefaultsVanilla(t *testing.T) {
	paths := config.DefaultPaths(t.TempDir())
	if got := ReadFlavor(paths); got != Vanilla {
		t.Errorf("ReadFlavor=%q", got)
	}
	if err := WriteFlavor(paths, NeoForge); err != nil {
		t.Fatal(err)
	}
	if got := ReadFlavor(paths); got != NeoForge {
		t.Errorf("ReadFlavor=%q want NeoForge", got)
	}
}

func TestIsInstalled(t *testing.T) {
	paths := config.DefaultPaths(t.TempDir())
	if IsInstalled(paths) {
		t.Error("empty dir reported installed")
	}
	for _, marker := range []string{"minecraft_server.jar", "server.properties", "eula.txt", "server_type.txt"} {
		paths := config.DefaultPaths(t.TempDir())
		if err := os.WriteFile(filepath.Join(paths.Dir, marker), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		if !IsInstalled(paths) {
			t.Errorf("marker %s not detected", marker)
		}
	}
}

func TestInstallVanilla(t *testing.T) {
	paths := config.DefaultPaths(t.TempDir())
	body := "serverjar"
	sum := sha1.Sum([]byte(body))
	res := stubResolver{v: mojang.Version{ID: "1.21.8", SHA1: hex.EncodeToString(sum[:]), URL: "u"}}
	fetch := stubFetcher{body: body}
	u := updater.New(res, fetch, paths.Artifact, nil, discard())
	inst := New(u, fetch, paths, discard())

	if err := inst.Vanilla(context.Background(), false); err != nil {
		t.Fatalf("Vanilla: %v", err)
	}
	if _, err := os.Stat(paths.Artifact); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
	eula, err := os.ReadFile(filepath.Join(paths.Dir, "eula.txt"))
	if err != nil || string(eula) != "eula=true\n" {
		t.Errorf("eula: %q %v", eula, err)
	}
	if got := ReadFlavor(paths); got != Vanilla {
		t.Errorf("flavor=%q", got)
	}
}

func TestModdedRejectsVanilla(t *testing.T) {
	paths := config.DefaultPaths(t.TempDir())
	inst := New(nil, stubFetcher{}, paths, discard())
	if err := inst.Modded(context.Background(), Vanilla, "http://example.invalid"); err == nil {
		t.Fatal("expected error for vanilla flavor")
	}
}

func TestLaunchCommandPlainJar(t *testing.T) {
	paths := config.DefaultPaths(t.TempDir())
	if err := os.WriteFile(paths.Artifact, []byte("jar"), 0o600); err != nil {
		t.Fatal(err)
	}
	got := LaunchCommand(paths, "4G")
	want := []string{"java", "-Xmx4G", "-Xms4G", "-jar", "minecraft_server.jar", "nogui"}
	if len(got) != len(want) {
		t.Fatalf("cmd=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cmd[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

func TestLaunchCommandPrefersForgeJar(t *testing.T) {
	paths := config.DefaultPaths(t.TempDir())
	if err := os.WriteFile(paths.Artifact, []byte("jar"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(paths.Dir, "neoforge-21.1.0.jar"), []byte("jar"), 0o600); err != nil {
		t.Fatal(err)
	}
	got := LaunchCommand(paths, "2G")
	if got[4] != "neoforge-21.1.0.jar" {
		t.Errorf("cmd=%v want loader jar", got)
	}
}

func TestLaunchCommandPrefersRunScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix launch script")
	}
	paths := config.DefaultPaths(t.TempDir())
	if err := os.WriteFile(filepath.Join(paths.Dir, "run.sh"), []byte("#!/bin/sh\n"), 0o700); err != nil {
		t.Fatal(err)
	}
	got := LaunchCommand(paths, "2G")
	if len(got) != 1 || got[0] != "./run.sh" {
		t.Errorf("cmd=%v want run.sh", got)
	}
}
