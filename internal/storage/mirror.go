package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

type MirrorConfig struct {
	Bucket     string
	KeyPrefix  string
	PresignTTL time.Duration
	MaxElapsed time.Duration
	Logger     *logrus.Logger
}

// Mirror copies finished archives to object storage and hands back a
// time-limited download link.
type Mirror struct {
	cfg MirrorConfig
	svc Service
}

func NewMirror(cfg MirrorConfig, svc Service) *Mirror {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 24 * time.Hour
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Mirror{cfg: cfg, svc: svc}
}

// Publish uploads localPath under <prefix>/<sessionID>/<name>, retrying
// transient failures, and returns a presigned URL for the object.
func (m *Mirror) Publish(ctx context.Context, localPath, sessionID, name string) (string, error) {
	if m == nil || m.svc == nil || m.cfg.Bucket == "" {
		return "", nil
	}
	key := objectKey(m.cfg.KeyPrefix, sessionID, name)
	logger := m.cfg.Logger.WithFields(logrus.Fields{"session_id": sessionID, "key": key})

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = m.cfg.MaxElapsed
	policy := backoff.WithContext(expo, ctx)

	progressLogger := newUploadProgressLogger(logger)
	attempt := 0
	upload := func() error {
		attempt++
		_, err := m.svc.UploadFile(ctx, localPath, UploadOptions{
			Bucket:           m.cfg.Bucket,
			Key:              key,
			ContentType:      "application/zip",
			Filename:         name,
			ProgressCallback: progressLogger,
		})
		if err != nil {
			logger.Warnf("upload attempt %d failed: %v", attempt, err)
		}
		return err
	}
	if err := backoff.Retry(upload, policy); err != nil {
		return "", fmt.Errorf("mirror archive: %w", err)
	}

	url, err := m.svc.PresignURL(ctx, m.cfg.Bucket, key, m.cfg.PresignTTL)
	if err != nil {
		return "", err
	}
	logger.Infof("archive mirrored to s3://%s/%s", m.cfg.Bucket, key)
	return url, nil
}

func objectKey(prefix, sessionID, name string) string {
	parts := []string{}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, sessionID, filepath.Base(name))
	return strings.Join(parts, "/")
}

func newUploadProgressLogger(logger *logrus.Entry) func(done, total int64) {
	var lastLog time.Time
	return func(done, total int64) {
		now := time.Now()
		if now.Sub(lastLog) < 500*time.Millisecond && done != total {
			return
		}
		lastLog = now
		if total == 0 {
			logger.Infof("upload progress: %s uploaded", formatBytes(done))
			return
		}
		percent := float64(done) / float64(total) * 100
		logger.Infof("upload progress: %.1f%% (%s/%s)", percent, formatBytes(done), formatBytes(total))
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB",
		float64(b)/float64(div),
		"KMGTPE"[exp],
	)
}
