// Package mojang resolves the latest official server version and
// downloads release artifacts from the launcher metadata service.
package mojang

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ManifestURL is the public version manifest endpoint.
const ManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

const (
	requestTimeout = 10 * time.Second
	// downloadTimeout caps one whole artifact transfer. Generous for a
	// server jar on a slow line, but finite: a stalled mirror must not
	// wedge the start sequence.
	downloadTimeout = 15 * time.Minute
)

// Version describes a resolved target artifact.
type Version struct {
	ID   string // e.g. "1.21.8"
	SHA1 string // hex digest of the server jar
	URL  string // direct download URL for the server jar
}

// Client talks to the launcher metadata service. The zero value is not
// usable; construct with NewClient.
type Client struct {
	http        *http.Client
	manifestURL string
	dlTimeout   time.Duration
}

// Option tweaks the client, mainly for tests.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithManifestURL(u string) Option {
	return func(c *Client) { c.manifestURL = u }
}

func WithDownloadTimeout(d time.Duration) Option {
	return func(c *Client) { c.dlTimeout = d }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: requestTimeout},
		manifestURL: ManifestURL,
		dlTimeout:   downloadTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"versions"`
}

type versionMeta struct {
	Downloads struct {
		Server struct {
			SHA1 string `json:"sha1"`
			URL  string `json:"url"`
		} `json:"server"`
	} `json:"downloads"`
}

// Latest resolves the newest release (or snapshot) to a full Version
// descriptor. It performs two requests: the manifest for the id and
// metadata URL, then the per-version document for the jar hash and URL.
func (c *Client) Latest(ctx context.Context, snapshot bool) (Version, error) {
	var m manifest
	if err := c.getJSON(ctx, c.manifestURL, &m); err != nil {
		return Version{}, fmt.Errorf("fetch version manifest: %w", err)
	}
	id := m.Latest.Release
	if snapshot {
		id = m.Latest.Snapshot
	}
	var metaURL string
	for _, v := range m.Versions {
		if v.ID == id {
			metaURL = v.URL
			break
		}
	}
	if metaURL == "" {
		return Version{}, fmt.Errorf("version %q not listed in manifest", id)
	}
	var meta versionMeta
	if err := c.getJSON(ctx, metaURL, &meta); err != nil {
		return Version{}, fmt.Errorf("fetch metadata for %s: %w", id, err)
	}
	if meta.Downloads.Server.URL == "" {
		return Version{}, fmt.Errorf("version %s has no server download", id)
	}
	return Version{ID: id, SHA1: meta.Downloads.Server.SHA1, URL: meta.Downloads.Server.URL}, nil
}

// Download streams the artifact at url into dst. dst is created or
// truncated; on any error the partial file is removed so a failed
// download never leaves a corrupt artifact at the destination.
func (c *Client) Download(ctx context.Context, url, dst string) error {
	// Large jars exceed the metadata timeout, so the jar gets its own
	// client: headers bounded by the transport, the whole transfer by
	// the deadline below.
	ctx, cancel := context.WithTimeout(ctx, c.dlTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	tr := c.http.Transport
	if tr == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = requestTimeout
		tr = t
	}
	dl := &http.Client{Transport: tr}
	resp, err := dl.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
