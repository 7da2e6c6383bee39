package downloader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
	"github.com/NikunjBaldaniya/AnyviDow/internal/session"
	"github.com/NikunjBaldaniya/AnyviDow/internal/staging"
)

const (
	// FallbackSelector is appended to explicit video selections so a stale
	// format id still yields something downloadable.
	FallbackSelector = "bv*+ba/b"
	// AudioFallbackSelector plays the same role for audio selections.
	AudioFallbackSelector = "ba/b"
)

// PlaylistSelector caps playlist items at the given height.
func PlaylistSelector(height int) string {
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]/best", height, height)
}

// AcquireRequest describes one stream download into a staging directory.
type AcquireRequest struct {
	URL               string
	Selector          string
	Fallback          string
	Dir               string
	Template          string
	Token             string
	Phase             string
	MergeOutputFormat string
	RecodeVideo       string
}

func (r AcquireRequest) format() string {
	switch {
	case r.Selector == "":
		return r.Fallback
	case r.Fallback == "":
		return r.Selector
	default:
		return r.Selector + "/" + r.Fallback
	}
}

// Acquirer downloads a single stream on behalf of a session and locates the
// produced file.
type Acquirer struct {
	provider provider.Provider
	sessions session.Registry
	logger   *logrus.Logger
}

func NewAcquirer(p provider.Provider, sessions session.Registry, logger *logrus.Logger) *Acquirer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Acquirer{provider: p, sessions: sessions, logger: logger}
}

// Acquire downloads req and returns the path of the newest staged file that
// carries req.Token. The transfer is aborted as soon as the session is
// cancelled, in which case domain.ErrCancelled is returned.
func (a *Acquirer) Acquire(ctx context.Context, sessionID string, req AcquireRequest, onProgress func(provider.Progress)) (string, error) {
	if a.sessions.IsCancelled(sessionID) {
		return "", domain.ErrCancelled
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hook := func(p provider.Progress) {
		if a.sessions.IsCancelled(sessionID) {
			cancel()
			return
		}
		if onProgress != nil {
			onProgress(p)
		}
	}

	logger := a.logger.WithFields(logrus.Fields{"session_id": sessionID, "phase": req.Phase})
	logger.Debugf("downloading %s with format %q", req.URL, req.format())

	err := a.provider.Download(ctx, provider.DownloadRequest{
		URL:               req.URL,
		Format:            req.format(),
		Output:            filepath.Join(req.Dir, req.Template),
		MergeOutputFormat: req.MergeOutputFormat,
		RecodeVideo:       req.RecodeVideo,
	}, hook)
	if a.sessions.IsCancelled(sessionID) || ctx.Err() != nil {
		return "", domain.ErrCancelled
	}
	if err != nil {
		return "", &domain.AcquisitionError{Phase: req.Phase, Err: err}
	}

	path, err := staging.Find(req.Dir, req.Token)
	if err != nil {
		return "", &domain.AcquisitionError{Phase: req.Phase, Err: err}
	}
	logger.Debugf("staged %s", filepath.Base(path))
	return path, nil
}
