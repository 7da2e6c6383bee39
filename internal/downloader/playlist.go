package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NikunjBaldaniya/AnyviDow/internal/archive"
	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
	"github.com/NikunjBaldaniya/AnyviDow/internal/staging"
)

const DefaultPlaylistQuality = 1080

// PlaylistRequest selects a 1-based inclusive range of playlist entries.
// Zero values mean the whole playlist at the default quality.
type PlaylistRequest struct {
	URL     string
	Quality int
	Start   int
	End     int
}

// PlaylistResult describes the archive produced by a playlist job.
type PlaylistResult struct {
	ZipPath   string
	ZipName   string
	Requested int
	Archived  int
	RemoteURL string
}

// SelectRange returns entries[start-1:end] with end clamped to the entry count.
func SelectRange(entries []domain.PlaylistEntry, start, end int) []domain.PlaylistEntry {
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > len(entries) {
		end = len(entries)
	}
	if start > end {
		return nil
	}
	return entries[start-1 : end]
}

// PlaylistDir is the staging directory for a playlist session.
func PlaylistDir(root, title, sessionID string) string {
	return filepath.Join(root, staging.SanitizeFilename(title)+"_"+sessionID)
}

// PlaylistZip is the archive path for a playlist session.
func PlaylistZip(root, title, sessionID string) string {
	return PlaylistDir(root, title, sessionID) + ".zip"
}

func itemToken(sessionID string, pos int) string {
	return fmt.Sprintf("_%s-%03d", sessionID, pos)
}

func (m *manager) runPlaylist(ctx context.Context, sessionID string, req PlaylistRequest, rep *reporter) (*PlaylistResult, error) {
	logger := m.cfg.Logger.WithField("session_id", sessionID)
	rep.milestone(domain.ProgressSnapshot{
		Status:  domain.StatusStarting,
		Message: "Fetching playlist information...",
	})

	playlist, err := m.resolver.ResolvePlaylist(ctx, req.URL)
	if err != nil {
		if m.sessions.IsCancelled(sessionID) {
			return nil, domain.ErrCancelled
		}
		return nil, err
	}
	entries := SelectRange(playlist.Entries, req.Start, req.End)
	if len(entries) == 0 {
		return nil, errors.New("no videos found in the specified range")
	}

	quality := req.Quality
	if quality <= 0 {
		quality = m.cfg.PlaylistQuality
	}
	dir := PlaylistDir(m.cfg.DownloadRoot, playlist.Title, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create playlist dir: %w", err)
	}

	total := len(entries)
	rep.milestone(domain.ProgressSnapshot{
		Status:      domain.StatusStarting,
		TotalVideos: total,
		Message:     fmt.Sprintf("Starting download of %d videos...", total),
	})
	logger.Infof("playlist %q: downloading %d entries at <=%dp", playlist.Title, total, quality)

	selector := PlaylistSelector(quality)
	for i, entry := range entries {
		if m.sessions.IsCancelled(sessionID) || ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}
		pos := i + 1
		base := float64(i) / float64(total) * 100
		item := domain.ProgressSnapshot{
			Status:       domain.StatusDownloading,
			CurrentVideo: pos,
			TotalVideos:  total,
			VideoTitle:   entry.Title,
		}

		starting := item
		starting.Phase = domain.PhaseStarting
		starting.Progress = base
		starting.Message = fmt.Sprintf("Starting video %d of %d: %s", pos, total, entry.Title)
		rep.milestone(starting)

		if !isHTTPURL(entry.URL) {
			logger.Warnf("skipping entry %d: invalid url %q", pos, entry.URL)
			m.cfg.Metrics.PlaylistItem(false)
			failed := item
			failed.Phase = domain.PhaseError
			failed.Progress = base
			failed.Message = fmt.Sprintf("Skipped video %d: invalid URL", pos)
			rep.milestone(failed)
			continue
		}

		token := itemToken(sessionID, pos)
		_, err := m.acquirer.Acquire(ctx, sessionID, AcquireRequest{
			URL:               entry.URL,
			Selector:          selector,
			Dir:               dir,
			Template:          "%(title)s" + token + ".%(ext)s",
			Token:             token,
			Phase:             fmt.Sprintf("item %d", pos),
			MergeOutputFormat: "mp4",
			RecodeVideo:       "mp4",
		}, func(p provider.Progress) {
			s := item
			s.Phase = domain.PhaseItem
			s.Progress = base + p.Percent()/float64(total)
			s.Speed = formatSpeed(p.Speed)
			s.ETA = formatETA(p.ETA)
			rep.sample(s)
		})
		if errors.Is(err, domain.ErrCancelled) {
			return nil, err
		}
		if err != nil {
			logger.Warnf("playlist entry %d (%s) failed: %v", pos, entry.URL, err)
			for _, rmErr := range staging.RemoveSession(dir, token) {
				logger.Warnf("cleanup failed entry %d: %v", pos, rmErr)
			}
			m.cfg.Metrics.PlaylistItem(false)
			failed := item
			failed.Phase = domain.PhaseError
			failed.Progress = base
			failed.Message = fmt.Sprintf("Failed to download video %d: %v", pos, err)
			rep.milestone(failed)
			continue
		}

		m.cfg.Metrics.PlaylistItem(true)
		done := item
		done.Phase = domain.PhaseCompleted
		done.Progress = float64(pos) / float64(total) * 100
		done.Message = fmt.Sprintf("Completed video %d of %d", pos, total)
		rep.milestone(done)
	}
	if m.sessions.IsCancelled(sessionID) {
		return nil, domain.ErrCancelled
	}

	rep.milestone(domain.ProgressSnapshot{
		Status:   domain.StatusZipping,
		Phase:    domain.PhaseZipping,
		Progress: 95,
		Message:  "Creating zip file...",
	})
	zipPath := PlaylistZip(m.cfg.DownloadRoot, playlist.Title, sessionID)
	archived, err := archive.ZipDirectory(ctx, dir, zipPath, func(name string) string {
		return stripItemToken(name, sessionID)
	})
	if err != nil {
		if m.sessions.IsCancelled(sessionID) {
			return nil, domain.ErrCancelled
		}
		return nil, fmt.Errorf("create archive: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warnf("remove playlist staging dir: %v", err)
	}

	zipName := staging.SanitizeFilename(playlist.Title) + ".zip"
	result := &PlaylistResult{
		ZipPath:   zipPath,
		ZipName:   zipName,
		Requested: total,
		Archived:  archived,
	}
	if m.mirror != nil {
		url, err := m.mirror.Publish(ctx, zipPath, sessionID, zipName)
		if err != nil {
			logger.Warnf("archive mirror failed: %v", err)
		}
		result.RemoteURL = url
	}
	logger.Infof("playlist archived: %d of %d videos in %s", archived, total, filepath.Base(zipPath))
	return result, nil
}

// stripItemToken removes the staging token from an item file name.
func stripItemToken(name, sessionID string) string {
	prefix := "_" + sessionID + "-"
	idx := strings.Index(name, prefix)
	if idx < 0 {
		return name
	}
	end := idx + len(prefix)
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	return name[:idx] + name[end:]
}

func isHTTPURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
