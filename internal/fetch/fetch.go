// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/outcome"
)

// Step is the step name used in events and results.
const Step = "fetch"

// =============================================================================
// SOURCE
// =============================================================================

// Source describes where branch archives are published.
type Source struct {
	Host    string
	Org     string
	Project string
}

// DefaultSource is the upstream Odoo repository on GitHub.
var DefaultSource = Source{
	Host:    "https://github.com",
	Org:     "odoo",
	Project: "odoo",
}

// URL returns the branch archive URL for version.
func (s Source) URL(version string) string {
	host := strings.TrimRight(s.Host, "/")
	return fmt.Sprintf("%s/%s/%s/archive/refs/heads/%s.zip", host, s.Org, s.Project, version)
}

// DefaultURL returns the upstream archive URL for version.
func DefaultURL(version string) string {
	return DefaultSource.URL(version)
}

// =============================================================================
// FETCHER
// =============================================================================

// Fetcher downloads and extracts source archives.
type Fetcher struct {
	client *http.Client
	sink   events.Sink
	source Source
	stall  time.Duration
}

// NewClient returns a pooled client for archive downloads. stall bounds the
// wait for response headers; the body has no overall deadline so a slow but
// steady link can finish. Zero leaves headers unbounded.
func NewClient(stall time.Duration) *http.Client {
	c := cleanhttp.DefaultPooledClient()
	if t, ok := c.Transport.(*http.Transport); ok {
		t.ResponseHeaderTimeout = stall
	}
	return c
}

// New creates a fetcher. A nil client gets a pooled cleanhttp client.
func New(client *http.Client, sink events.Sink) *Fetcher {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &Fetcher{
		client: client,
		sink:   events.OrDiscard(sink),
		source: DefaultSource,
	}
}

// WithSource sets where default URLs point.
func (f *Fetcher) WithSource(s Source) *Fetcher {
	if s.Host == "" {
		s.Host = DefaultSource.Host
	}
	if s.Org == "" {
		s.Org = DefaultSource.Org
	}
	if s.Project == "" {
		s.Project = DefaultSource.Project
	}
	f.source = s
	return f
}

// WithStallTimeout aborts a download that receives no bytes for d. Zero
// disables the guard.
func (f *Fetcher) WithStallTimeout(d time.Duration) *Fetcher {
	f.stall = d
	return f
}

// ArchiveName picks the local file name for the download from the URL suffix.
// The query string is ignored.
func ArchiveName(version, rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	lower := strings.ToLower(p)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return fmt.Sprintf("odoo_%s.zip", version)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return fmt.Sprintf("odoo_%s.tar.gz", version)
	default:
		return fmt.Sprintf("odoo_%s%s", version, path.Ext(p))
	}
}

// ExtractDirName is the directory archives are unpacked into.
func ExtractDirName(version string) string {
	return fmt.Sprintf("odoo_%s_extracted", version)
}

// Fetch downloads the archive for version into targetDir and extracts it.
// An empty rawURL means the default source. The payload is the source
// directory.
func (f *Fetcher) Fetch(ctx context.Context, version, targetDir, rawURL string) (res outcome.Result) {
	defer outcome.Recover(Step, &res)

	if rawURL == "" {
		rawURL = f.source.URL(version)
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		f.sink.Emit(events.Error(Step, "Could not create target directory", "dir", targetDir, "error", err))
		return outcome.Failure(Step, outcome.KindUnexpected, fmt.Errorf("create target directory: %w", err))
	}

	archivePath := filepath.Join(targetDir, ArchiveName(version, rawURL))
	f.sink.Emit(events.Info(Step, "Downloading Odoo source archive", "url", rawURL, "dest", archivePath))

	n, err := f.download(ctx, rawURL, archivePath)
	if err != nil {
		f.sink.Emit(events.Error(Step, "Download failed", "url", rawURL, "error", err))
		return outcome.Failure(Step, outcome.KindTransport, err)
	}
	f.sink.Emit(events.Info(Step, "Download complete", "size", humanize.IBytes(uint64(n))))

	extractDir := filepath.Join(targetDir, ExtractDirName(version))
	f.sink.Emit(events.Info(Step, "Extracting archive", "dest", extractDir))

	if err := Extract(archivePath, extractDir); err != nil {
		kind := classify(err)
		switch kind {
		case outcome.KindUnsupportedFormat:
			f.sink.Emit(events.Error(Step, "Unsupported archive format", "archive", archivePath))
		case outcome.KindMalformedArchive:
			f.sink.Emit(events.Error(Step, "Archive is corrupt or unsafe", "archive", archivePath, "error", err))
		default:
			f.sink.Emit(events.Error(Step, "Extraction failed", "archive", archivePath, "error", err))
		}
		return outcome.Failure(Step, kind, err)
	}

	src, ok, err := sourceDir(extractDir)
	if err != nil {
		f.sink.Emit(events.Error(Step, "Could not read extraction directory", "dir", extractDir, "error", err))
		return outcome.Failure(Step, outcome.KindUnexpected, err)
	}
	if !ok {
		f.sink.Emit(events.Warn(Step, "No top-level directory in archive, using extraction root", "dir", extractDir))
	}

	f.sink.Emit(events.Info(Step, "Odoo source ready", "path", src))
	return outcome.Success(src)
}

// download streams rawURL to dest through a .part file and returns the
// number of bytes written.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "odoo-agent")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("create archive file: %w", err)
	}

	var body io.Reader = resp.Body
	var guard *stallReader
	if f.stall > 0 {
		guard = newStallReader(resp.Body, f.stall, cancel)
		defer guard.stop()
		body = guard
	}

	n, err := io.Copy(out, body)
	if err != nil && guard != nil && guard.fired() {
		err = fmt.Errorf("%w: no data for %s", ErrStalled, f.stall)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return n, fmt.Errorf("save download: %w", err)
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return n, fmt.Errorf("save download: %w", err)
	}
	return n, nil
}

// ErrStalled reports a download that stopped receiving data.
var ErrStalled = errors.New("download stalled")

// stallReader cancels the request when no Read returns data within d.
type stallReader struct {
	r       io.Reader
	d       time.Duration
	timer   *time.Timer
	tripped atomic.Bool
}

func newStallReader(r io.Reader, d time.Duration, cancel context.CancelFunc) *stallReader {
	s := &stallReader{r: r, d: d}
	s.timer = time.AfterFunc(d, func() {
		s.tripped.Store(true)
		cancel()
	})
	return s
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.timer.Reset(s.d)
	}
	return n, err
}

func (s *stallReader) fired() bool { return s.tripped.Load() }

func (s *stallReader) stop() { s.timer.Stop() }

// sourceDir returns the first subdirectory of dir in lexical order. ok is
// false when dir has no subdirectories and dir itself is returned.
func sourceDir(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(dir, e.Name()), true, nil
		}
	}
	return dir, false, nil
}
