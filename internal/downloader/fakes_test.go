package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/progress"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
	"github.com/NikunjBaldaniya/AnyviDow/internal/session"
)

// fakeProvider materialises the output template as a file. behave may
// override the outcome per request.
type fakeProvider struct {
	mu       sync.Mutex
	requests []provider.DownloadRequest
	size     int
	ext      string
	behave   func(ctx context.Context, req provider.DownloadRequest, onProgress func(provider.Progress)) error
}

func (f *fakeProvider) Resolve(ctx context.Context, url string, flatten bool) (*provider.Info, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) Download(ctx context.Context, req provider.DownloadRequest, onProgress func(provider.Progress)) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.behave != nil {
		if err := f.behave(ctx, req, onProgress); err != nil {
			return err
		}
	}
	size := f.size
	if size == 0 {
		size = 64 * 1024
	}
	onProgress(provider.Progress{Status: "downloading", DownloadedBytes: int64(size / 2), TotalBytes: int64(size), Speed: 1 << 20, ETA: time.Second})
	onProgress(provider.Progress{Status: "downloading", DownloadedBytes: int64(size), TotalBytes: int64(size)})
	return writeOutput(req.Output, f.extension(), size)
}

func (f *fakeProvider) extension() string {
	if f.ext != "" {
		return f.ext
	}
	return "mp4"
}

func (f *fakeProvider) formats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Format
	}
	return out
}

func (f *fakeProvider) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.URL
	}
	return out
}

func writeOutput(template, ext string, size int) error {
	name := strings.ReplaceAll(template, "%(ext)s", ext)
	name = strings.ReplaceAll(name, "%(title)s", "Entry")
	return os.WriteFile(name, make([]byte, size), 0o644)
}

// blockUntilCancelled emits progress until the transfer is aborted.
func blockUntilCancelled(ctx context.Context, req provider.DownloadRequest, onProgress func(provider.Progress)) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			onProgress(provider.Progress{Status: "downloading", DownloadedBytes: 1, TotalBytes: 100})
		}
	}
}

type fakeResolver struct {
	audioID  string
	audioErr error
	playlist *domain.PlaylistInfo
}

func (f *fakeResolver) BestAudioID(ctx context.Context, url string) (string, error) {
	return f.audioID, f.audioErr
}

func (f *fakeResolver) ResolvePlaylist(ctx context.Context, url string) (*domain.PlaylistInfo, error) {
	if f.playlist == nil {
		return nil, &domain.ResolutionError{URL: url, Err: errors.New("not a playlist")}
	}
	return f.playlist, nil
}

type fakeMuxer struct {
	mu       sync.Mutex
	merges   int
	mergeErr error
	hasAudio bool
	probeErr error
}

func (f *fakeMuxer) Merge(ctx context.Context, video, audio, out string) error {
	f.mu.Lock()
	f.merges++
	f.mu.Unlock()
	if f.mergeErr != nil {
		return f.mergeErr
	}
	return os.WriteFile(out, make([]byte, 4096), 0o644)
}

func (f *fakeMuxer) HasAudio(ctx context.Context, path string) (bool, error) {
	return f.hasAudio, f.probeErr
}

type fakeMirror struct {
	url string
}

func (f *fakeMirror) Publish(ctx context.Context, localPath, sessionID, name string) (string, error) {
	return f.url, nil
}

type harness struct {
	root     string
	sessions session.Registry
	provider *fakeProvider
	resolver *fakeResolver
	muxer    *fakeMuxer
	manager  Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		root:     t.TempDir(),
		sessions: session.NewRegistry(),
		provider: &fakeProvider{},
		resolver: &fakeResolver{audioID: "140"},
		muxer:    &fakeMuxer{},
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	h.manager = NewManager(Config{DownloadRoot: h.root, Logger: logger}, h.sessions, h.provider, h.resolver, h.muxer, &fakeMirror{})
	require.NoError(t, h.manager.Start(context.Background()))
	t.Cleanup(h.manager.Shutdown)
	return h
}

func (h *harness) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// collect drains a job's channel until the terminal flush.
func collect(t *testing.T, ch *progress.Channel) []domain.ProgressSnapshot {
	t.Helper()
	var all []domain.ProgressSnapshot
	deadline := time.After(5 * time.Second)
	for {
		batch, complete := ch.Drain()
		all = append(all, batch...)
		if complete {
			return all
		}
		select {
		case <-ch.Done():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("job did not finish")
		}
	}
}

func statuses(events []domain.ProgressSnapshot) []domain.ProgressStatus {
	out := make([]domain.ProgressStatus, len(events))
	for i, e := range events {
		out[i] = e.Status
	}
	return out
}

func count(events []domain.ProgressSnapshot, status domain.ProgressStatus) int {
	n := 0
	for _, e := range events {
		if e.Status == status {
			n++
		}
	}
	return n
}

func waitForEmptyRegistry(t *testing.T, r session.Registry) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func fileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
