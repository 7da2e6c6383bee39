package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/metrics"
	"github.com/NikunjBaldaniya/AnyviDow/internal/progress"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
	"github.com/NikunjBaldaniya/AnyviDow/internal/session"
	"github.com/NikunjBaldaniya/AnyviDow/internal/staging"
)

// Manager runs download jobs in the background and exposes their progress.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	StartSingle(req SingleRequest) (*Job, error)
	StartPlaylist(req PlaylistRequest) (*Job, error)
	RunSingle(ctx context.Context, req SingleRequest) (*Deliverable, error)
	Cancel(sessionID string) bool
	ActiveSessions() int
}

// Resolver is the subset of URL resolution the pipelines need.
type Resolver interface {
	BestAudioID(ctx context.Context, url string) (string, error)
	ResolvePlaylist(ctx context.Context, url string) (*domain.PlaylistInfo, error)
}

// Muxer merges streams and inspects media files.
type Muxer interface {
	Merge(ctx context.Context, video, audio, out string) error
	HasAudio(ctx context.Context, path string) (bool, error)
}

// Mirror publishes finished archives elsewhere and returns a download link.
type Mirror interface {
	Publish(ctx context.Context, localPath, sessionID, name string) (string, error)
}

// Job is a running download whose events can be streamed.
type Job struct {
	SessionID string
	Events    *progress.Channel
}

type Config struct {
	DownloadRoot    string
	MaxConcurrent   int
	QueueSize       int
	PlaylistQuality int
	Logger          *logrus.Logger
	Metrics         *metrics.Metrics
}

type manager struct {
	cfg      Config
	sessions session.Registry
	acquirer *Acquirer
	resolver Resolver
	muxer    Muxer
	mirror   Mirror

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config, sessions session.Registry, p provider.Provider, resolver Resolver, muxer Muxer, mirror Mirror) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = progress.DefaultCapacity
	}
	if cfg.PlaylistQuality <= 0 {
		cfg.PlaylistQuality = DefaultPlaylistQuality
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:      cfg,
		sessions: sessions,
		acquirer: NewAcquirer(p, sessions, cfg.Logger),
		resolver: resolver,
		muxer:    muxer,
		mirror:   mirror,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.DownloadRoot, 0o755); err != nil {
		return fmt.Errorf("create download root: %w", err)
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("download manager started, data dir: %s", m.cfg.DownloadRoot)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("download manager stopped")
}

func (m *manager) StartSingle(req SingleRequest) (*Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	job := m.newJob()
	rep := newReporter(job.Events, job.SessionID, false)

	m.spawn(job.SessionID, "single", rep, func(ctx context.Context) string {
		d, err := m.runSingle(ctx, job.SessionID, req, rep)
		if err != nil {
			return m.failJob(job.SessionID, err, rep)
		}
		rep.finish(
			domain.ProgressSnapshot{Status: domain.StatusCompleted, Progress: 100, Message: "Download completed!"},
			domain.ProgressSnapshot{Status: domain.StatusReady, Progress: 100, Filename: d.Filename},
		)
		return string(domain.StatusCompleted)
	})
	return job, nil
}

func (m *manager) StartPlaylist(req PlaylistRequest) (*Job, error) {
	if req.URL == "" {
		return nil, errors.New("url is required")
	}
	job := m.newJob()
	rep := newReporter(job.Events, job.SessionID, true)

	m.spawn(job.SessionID, "playlist", rep, func(ctx context.Context) string {
		res, err := m.runPlaylist(ctx, job.SessionID, req, rep)
		if err != nil {
			return m.failJob(job.SessionID, err, rep)
		}
		rep.finish(domain.ProgressSnapshot{
			Status:    domain.StatusFinished,
			Progress:  100,
			ZipName:   res.ZipName,
			RemoteURL: res.RemoteURL,
			Message:   fmt.Sprintf("Downloaded %d of %d videos", res.Archived, res.Requested),
		})
		return string(domain.StatusFinished)
	})
	return job, nil
}

// RunSingle performs a single-item download on the caller's goroutine.
// Shutdown cancels it and waits for it like a background job.
func (m *manager) RunSingle(ctx context.Context, req SingleRequest) (*Deliverable, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if m.ctx.Err() != nil {
		return nil, domain.ErrCancelled
	}
	m.wg.Add(1)
	defer m.wg.Done()

	sessionID := m.sessions.Create()
	defer m.sessions.Dispose(sessionID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()
	m.sessions.Attach(sessionID, cancel)

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return nil, domain.ErrCancelled
	}

	m.cfg.Metrics.JobStarted()
	d, err := m.runSingle(ctx, sessionID, req, newReporter(nil, sessionID, false))
	if err != nil {
		m.discardStaged(sessionID)
		m.cfg.Metrics.JobFinished("sync", string(domain.StatusError))
		return nil, err
	}
	m.cfg.Metrics.JobFinished("sync", string(domain.StatusCompleted))
	return d, nil
}

func (m *manager) Cancel(sessionID string) bool {
	ok := m.sessions.Cancel(sessionID)
	if ok {
		m.cfg.Logger.WithField("session_id", sessionID).Info("cancellation requested")
	}
	return ok
}

func (m *manager) ActiveSessions() int {
	return m.sessions.Len()
}

func (m *manager) newJob() *Job {
	return &Job{
		SessionID: m.sessions.Create(),
		Events:    progress.NewChannel(m.cfg.QueueSize),
	}
}

func (m *manager) spawn(sessionID, kind string, rep *reporter, run func(ctx context.Context) string) {
	jobCtx, cancel := context.WithCancel(m.ctx)
	m.sessions.Attach(sessionID, cancel)
	m.cfg.Metrics.JobStarted()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		defer m.sessions.Dispose(sessionID)

		outcome := string(domain.StatusCancelled)
		defer func() { m.cfg.Metrics.JobFinished(kind, outcome) }()

		select {
		case <-jobCtx.Done():
			m.cfg.Logger.WithField("session_id", sessionID).Info("job cancelled before start")
			rep.finish(domain.ProgressSnapshot{Status: domain.StatusCancelled, Message: "Download cancelled"})
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
		}
		outcome = run(jobCtx)
	}()
}

// failJob discards staged output and emits the terminal event for err.
func (m *manager) failJob(sessionID string, err error, rep *reporter) string {
	logger := m.cfg.Logger.WithField("session_id", sessionID)
	m.discardStaged(sessionID)

	if errors.Is(err, domain.ErrCancelled) || m.sessions.IsCancelled(sessionID) || m.ctx.Err() != nil {
		logger.Info("download cancelled")
		rep.finish(domain.ProgressSnapshot{Status: domain.StatusCancelled, Message: "Download cancelled"})
		return string(domain.StatusCancelled)
	}

	logger.Errorf("download failed: %v", err)
	rep.finish(domain.ProgressSnapshot{Status: domain.StatusError, Message: err.Error()})
	return string(domain.StatusError)
}

// discardStaged removes every staged file and playlist directory that
// belongs to sessionID.
func (m *manager) discardStaged(sessionID string) {
	logger := m.cfg.Logger.WithField("session_id", sessionID)
	entries, err := os.ReadDir(m.cfg.DownloadRoot)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), sessionID) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.cfg.DownloadRoot, entry.Name())); err != nil {
			logger.Warnf("cleanup staging dir: %v", err)
		}
	}
	for _, err := range staging.RemoveSession(m.cfg.DownloadRoot, sessionID) {
		logger.Warnf("cleanup staged file: %v", err)
	}
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy file: %w", err)
	}

	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}

var _ Manager = (*manager)(nil)
