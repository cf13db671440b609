// Package updater keeps the server artifact converged on the resolved
// target version by hash comparison. It assumes the supervisor has
// already stopped anything running against the artifact; there is no
// cross-process lock here.
package updater

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/loykin/craftd/internal/mojang"
)

// Result classifies a CheckAndReplace outcome.
type Result int

const (
	Failed Result = iota
	UpToDate
	Updated
)

func (r Result) String() string {
	switch r {
	case Updated:
		return "updated"
	case UpToDate:
		return "up-to-date"
	default:
		return "failed"
	}
}

// Resolver yields the target version descriptor. *mojang.Client
// satisfies it; tests inject stubs.
type Resolver interface {
	Latest(ctx context.Context, snapshot bool) (mojang.Version, error)
}

// Fetcher streams an artifact to disk. *mojang.Client satisfies it.
type Fetcher interface {
	Download(ctx context.Context, url, dst string) error
}

// RecordFunc persists the installed version id after a replacement.
type RecordFunc func(version string) error

// Updater owns the artifact path and the resolve/compare/replace cycle.
type Updater struct {
	resolver Resolver
	fetcher  Fetcher
	artifact string
	record   RecordFunc
	log      *slog.Logger
}

func New(resolver Resolver, fetcher Fetcher, artifact string, record RecordFunc, log *slog.Logger) *Updater {
	if record == nil {
		record = func(string) error { return nil }
	}
	return &Updater{resolver: resolver, fetcher: fetcher, artifact: artifact, record: record, log: log}
}

// CheckAndReplace resolves the target version for the channel, hashes
// the local artifact and replaces it when the hashes differ or force
// is set. A failed download leaves the installed artifact untouched:
// the transfer lands in a temp file that is only promoted on success.
func (u *Updater) CheckAndReplace(ctx context.Context, snapshot, force bool) (Result, mojang.Version, error) {
	target, err := u.resolver.Latest(ctx, snapshot)
	if err != nil {
		return Failed, mojang.Version{}, fmt.Errorf("resolve target version: %w", err)
	}

	local, err := HashFile(u.artifact)
	if err != nil {
		return Failed, target, fmt.Errorf("hash %s: %w", u.artifact, err)
	}
	// A manifest without a digest can never confirm the local artifact;
	// both hashes being empty means "no jar and nothing to compare", not
	// up to date.
	if target.SHA1 != "" && local == target.SHA1 && !force {
		u.log.Debug("artifact up to date", "version", target.ID)
		return UpToDate, target, nil
	}

	u.log.Info("downloading server artifact", "version", target.ID, "sha1", target.SHA1)
	tmp := u.artifact + ".download"
	if err := u.fetcher.Download(ctx, target.URL, tmp); err != nil {
		_ = os.Remove(tmp)
		return Failed, target, fmt.Errorf("download %s: %w", target.ID, err)
	}
	got, err := HashFile(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return Failed, target, err
	}
	if target.SHA1 != "" && got != target.SHA1 {
		_ = os.Remove(tmp)
		return Failed, target, fmt.Errorf("download %s: checksum mismatch: got %s want %s", target.ID, got, target.SHA1)
	}
	if err := os.Rename(tmp, u.artifact); err != nil {
		_ = os.Remove(tmp)
		return Failed, target, fmt.Errorf("promote %s: %w", tmp, err)
	}
	if err := u.record(target.ID); err != nil {
		u.log.Warn("record installed version", "error", err)
	}
	u.log.Info("server artifact updated", "version", target.ID)
	return Updated, target, nil
}

// HashFile streams path through SHA-1 in fixed-size chunks. A missing
// file yields the empty string, which never matches a remote digest,
// so a fresh install always takes the update path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha1.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return strings.ToLower(hex.EncodeToString(h.Sum(nil))), nil
}
