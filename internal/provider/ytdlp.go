package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
)

const (
	DefaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultProgressInterval = 100 * time.Millisecond
)

type YtdlpConfig struct {
	UserAgent        string
	ProgressInterval time.Duration
	AutoInstall      bool
	Logger           *logrus.Logger
}

// Ytdlp drives the yt-dlp binary.
type Ytdlp struct {
	cfg YtdlpConfig
}

func NewYtdlp(cfg YtdlpConfig) *Ytdlp {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Ytdlp{cfg: cfg}
}

// Install makes sure a usable yt-dlp binary is available when auto-install is
// enabled; otherwise the binary on PATH is used as-is.
func (y *Ytdlp) Install(ctx context.Context) {
	if !y.cfg.AutoInstall {
		return
	}
	ytdlp.MustInstall(ctx, nil)
	y.cfg.Logger.Info("yt-dlp binary ready")
}

func (y *Ytdlp) command() *ytdlp.Command {
	return ytdlp.New().
		NoWarnings().
		NoMtime().
		AddHeaders("User-Agent:" + y.cfg.UserAgent)
}

func (y *Ytdlp) Resolve(ctx context.Context, url string, flatten bool) (*Info, error) {
	cmd := y.command().DumpSingleJSON().SkipDownload()
	if flatten {
		cmd = cmd.FlatPlaylist()
	} else {
		cmd = cmd.NoPlaylist()
	}

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("run yt-dlp: %w", withStderr(err, res))
	}

	var info Info
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	return &info, nil
}

func (y *Ytdlp) Download(ctx context.Context, req DownloadRequest, onProgress func(Progress)) error {
	cmd := y.command().
		NoPlaylist().
		Format(req.Format).
		Output(req.Output)
	if req.MergeOutputFormat != "" {
		cmd = cmd.MergeOutputFormat(req.MergeOutputFormat)
	}
	if req.RecodeVideo != "" {
		cmd = cmd.RecodeVideo(req.RecodeVideo)
	}
	if onProgress != nil {
		cmd = cmd.ProgressFunc(y.cfg.ProgressInterval, func(update ytdlp.ProgressUpdate) {
			onProgress(fromUpdate(update))
		})
	}

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run yt-dlp: %w", withStderr(err, res))
	}
	return nil
}

func fromUpdate(update ytdlp.ProgressUpdate) Progress {
	p := Progress{
		Status:          string(update.Status),
		Filename:        update.Filename,
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
		ETA:             update.ETA(),
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			p.Speed = float64(update.DownloadedBytes) / elapsed
		}
	}
	if update.Info != nil && update.Info.Title != nil {
		p.Title = *update.Info.Title
	}
	return p
}

func withStderr(err error, res *ytdlp.Result) error {
	if res == nil {
		return err
	}
	stderr := strings.TrimSpace(res.Stderr)
	if stderr == "" {
		return err
	}
	if idx := strings.LastIndex(stderr, "\n"); idx >= 0 {
		stderr = stderr[idx+1:]
	}
	return fmt.Errorf("%w: %s", err, stderr)
}

var _ Provider = (*Ytdlp)(nil)
