package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
	"github.com/NikunjBaldaniya/AnyviDow/internal/staging"
)

// SingleRequest asks for one media item in a chosen encoding.
type SingleRequest struct {
	URL         string
	FormatID    string
	Title       string
	Kind        domain.EncodingKind
	BestAudioID string
}

func (r SingleRequest) validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	if strings.TrimSpace(r.FormatID) == "" {
		return errors.New("format_id is required")
	}
	return nil
}

// Deliverable is the single file produced by a successful single-item job.
type Deliverable struct {
	SessionID string
	Path      string
	Filename  string
}

// runSingle downloads one item and, for video-only encodings, pairs it with
// the best audio track. It always yields exactly one deliverable unless the
// session is cancelled or the video itself cannot be acquired.
func (m *manager) runSingle(ctx context.Context, sessionID string, req SingleRequest, rep *reporter) (*Deliverable, error) {
	logger := m.cfg.Logger.WithField("session_id", sessionID)
	rep.milestone(domain.ProgressSnapshot{
		Status:  domain.StatusStarting,
		Message: "Preparing download...",
	})

	var (
		final string
		err   error
	)
	if req.Kind == domain.EncodingVideoOnly {
		final, err = m.acquireWithAudio(ctx, sessionID, req, rep, logger)
	} else {
		rep.milestone(domain.ProgressSnapshot{
			Status:  domain.StatusDownloading,
			Phase:   domain.PhaseVideo,
			Message: "Downloading...",
		})
		final, err = m.acquirer.Acquire(ctx, sessionID, AcquireRequest{
			URL:               req.URL,
			Selector:          req.FormatID,
			Fallback:          FallbackSelector,
			Dir:               m.cfg.DownloadRoot,
			Template:          staging.Template(req.Title, staging.RoleCombined, sessionID),
			Token:             staging.Token(staging.RoleCombined, sessionID),
			Phase:             domain.PhaseVideo,
			MergeOutputFormat: "mp4",
		}, transferHook(rep, domain.PhaseVideo))
	}
	if err != nil {
		return nil, err
	}
	if m.sessions.IsCancelled(sessionID) {
		return nil, domain.ErrCancelled
	}

	logger.Infof("deliverable ready: %s", filepath.Base(final))
	return &Deliverable{
		SessionID: sessionID,
		Path:      final,
		Filename:  staging.ClientName(final, sessionID),
	}, nil
}

func (m *manager) acquireWithAudio(ctx context.Context, sessionID string, req SingleRequest, rep *reporter, logger *logrus.Entry) (string, error) {
	rep.milestone(domain.ProgressSnapshot{
		Status:  domain.StatusDownloading,
		Phase:   domain.PhaseVideo,
		Message: "Downloading video...",
	})
	video, err := m.acquirer.Acquire(ctx, sessionID, AcquireRequest{
		URL:      req.URL,
		Selector: req.FormatID,
		Fallback: FallbackSelector,
		Dir:      m.cfg.DownloadRoot,
		Template: staging.Template(req.Title, staging.RoleVideo, sessionID),
		Token:    staging.Token(staging.RoleVideo, sessionID),
		Phase:    domain.PhaseVideo,
	}, transferHook(rep, domain.PhaseVideo))
	if err != nil {
		return "", err
	}
	if err := staging.Validate(video, staging.MinStreamSize); err != nil {
		removeFile(logger, video)
		return "", &domain.AcquisitionError{Phase: domain.PhaseVideo, Err: err}
	}
	if m.sessions.IsCancelled(sessionID) {
		return "", domain.ErrCancelled
	}

	audio, audioErr := m.acquireAudio(ctx, sessionID, req, rep, logger)
	if errors.Is(audioErr, domain.ErrCancelled) || m.sessions.IsCancelled(sessionID) {
		return "", domain.ErrCancelled
	}
	if audioErr != nil {
		logger.Warnf("audio unavailable: %v", audioErr)
		return m.embeddedAudioFallback(ctx, sessionID, req.Title, video, rep, logger), nil
	}

	rep.milestone(domain.ProgressSnapshot{
		Status:   domain.StatusMerging,
		Phase:    domain.PhaseMerging,
		Progress: 90,
		Message:  "Merging video and audio...",
	})
	out := filepath.Join(m.cfg.DownloadRoot, staging.MergedName(req.Title, sessionID))
	if err := m.muxer.Merge(ctx, video, audio, out); err != nil {
		if m.sessions.IsCancelled(sessionID) {
			return "", domain.ErrCancelled
		}
		logger.Warnf("merge failed, delivering video only: %v", err)
		removeFile(logger, audio)
		return video, nil
	}
	removeFile(logger, video)
	removeFile(logger, audio)
	return out, nil
}

func (m *manager) acquireAudio(ctx context.Context, sessionID string, req SingleRequest, rep *reporter, logger *logrus.Entry) (string, error) {
	audioID := req.BestAudioID
	if audioID == "" {
		id, err := m.resolver.BestAudioID(ctx, req.URL)
		if err != nil {
			logger.Warnf("look up best audio: %v", err)
		}
		audioID = id
	}
	if audioID == "" {
		return "", errors.New("no audio encoding available")
	}

	rep.milestone(domain.ProgressSnapshot{
		Status:  domain.StatusDownloading,
		Phase:   domain.PhaseAudio,
		Message: "Downloading audio...",
	})
	audio, err := m.acquirer.Acquire(ctx, sessionID, AcquireRequest{
		URL:      req.URL,
		Selector: audioID,
		Fallback: AudioFallbackSelector,
		Dir:      m.cfg.DownloadRoot,
		Template: staging.Template(req.Title, staging.RoleAudio, sessionID),
		Token:    staging.Token(staging.RoleAudio, sessionID),
		Phase:    domain.PhaseAudio,
	}, transferHook(rep, domain.PhaseAudio))
	if err != nil {
		return "", err
	}
	if err := staging.Validate(audio, staging.MinStreamSize); err != nil {
		removeFile(logger, audio)
		return "", err
	}
	return audio, nil
}

// embeddedAudioFallback checks whether the video stream already carries
// audio. Either way the video becomes the deliverable; when audio is present
// it is renamed to the regular deliverable name.
func (m *manager) embeddedAudioFallback(ctx context.Context, sessionID, title, video string, rep *reporter, logger *logrus.Entry) string {
	rep.milestone(domain.ProgressSnapshot{
		Status:   domain.StatusProcessing,
		Phase:    domain.PhaseFallback,
		Progress: 50,
		Message:  "Audio download failed, checking video for embedded audio...",
	})

	hasAudio, err := m.muxer.HasAudio(ctx, video)
	if err != nil {
		logger.Warnf("probe embedded audio: %v", err)
		return video
	}
	if !hasAudio {
		logger.Info("video has no embedded audio, delivering video only")
		return video
	}

	promoted := filepath.Join(m.cfg.DownloadRoot,
		fmt.Sprintf("%s_%s%s", staging.SanitizeFilename(title), sessionID, filepath.Ext(video)))
	if err := moveFile(video, promoted); err != nil {
		logger.Warnf("promote video with embedded audio: %v", err)
		return video
	}
	return promoted
}

func transferHook(rep *reporter, phase string) func(provider.Progress) {
	return func(p provider.Progress) {
		rep.sample(domain.ProgressSnapshot{
			Status:   domain.StatusDownloading,
			Phase:    phase,
			Progress: p.Percent(),
			Speed:    formatSpeed(p.Speed),
			Size:     formatSize(p.DownloadedBytes, p.TotalBytes),
			ETA:      formatETA(p.ETA),
		})
	}
}

func removeFile(logger *logrus.Entry, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("remove %s: %v", filepath.Base(path), err)
	}
}
