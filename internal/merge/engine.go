// Package merge combines separately downloaded video and audio streams with
// ffmpeg, stepping down through progressively more tolerant strategies.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/staging"
)

const (
	FFmpegCommand  = "ffmpeg"
	FFprobeCommand = "ffprobe"

	// MinInputSize rejects inputs that cannot contain a playable stream.
	MinInputSize int64 = 512
	// MinOutputSize is the size an output must exceed to count as merged.
	MinOutputSize int64 = 1024

	AudioCodec   = "aac"
	AudioBitrate = "192k"
	VideoCodec   = "libx264"
	VideoPreset  = "fast"
	VideoCRF     = "23"

	probeTimeout = 30 * time.Second
)

// Tier is one merge strategy.
type Tier struct {
	Name    string
	Timeout time.Duration
	Args    func(video, audio, out string) []string
}

// DefaultTiers returns the remux, re-encode and basic strategies in order.
func DefaultTiers(remux, reencode, basic time.Duration) []Tier {
	if remux <= 0 {
		remux = 5 * time.Minute
	}
	if reencode <= 0 {
		reencode = 10 * time.Minute
	}
	if basic <= 0 {
		basic = 10 * time.Minute
	}
	return []Tier{
		{
			Name:    "remux",
			Timeout: remux,
			Args: func(video, audio, out string) []string {
				return []string{"-y", "-i", video, "-i", audio,
					"-c:v", "copy", "-c:a", AudioCodec, "-b:a", AudioBitrate,
					"-shortest", "-avoid_negative_ts", "make_zero", out}
			},
		},
		{
			Name:    "reencode",
			Timeout: reencode,
			Args: func(video, audio, out string) []string {
				return []string{"-y", "-i", video, "-i", audio,
					"-c:v", VideoCodec, "-preset", VideoPreset, "-crf", VideoCRF,
					"-c:a", AudioCodec, "-b:a", AudioBitrate,
					"-shortest", "-avoid_negative_ts", "make_zero", out}
			},
		},
		{
			Name:    "basic",
			Timeout: basic,
			Args: func(video, audio, out string) []string {
				return []string{"-y", "-i", video, "-i", audio, "-shortest", out}
			},
		},
	}
}

// Observer receives the outcome of each tier attempt.
type Observer func(tier string, ok bool)

type Config struct {
	FFmpeg   string
	FFprobe  string
	Tiers    []Tier
	Observer Observer
	Logger   *logrus.Logger
}

// Engine merges streams and inspects files.
type Engine struct {
	cfg    Config
	runner Runner
}

func NewEngine(cfg Config, runner Runner) *Engine {
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = FFmpegCommand
	}
	if cfg.FFprobe == "" {
		cfg.FFprobe = FFprobeCommand
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultTiers(0, 0, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Engine{cfg: cfg, runner: runner}
}

// Merge writes video+audio into out. It returns nil on success and an error
// wrapping domain.ErrMergeFailed when no strategy produced a usable file.
// A failed attempt never leaves a partial out behind.
func (e *Engine) Merge(ctx context.Context, video, audio, out string) error {
	for _, input := range []string{video, audio} {
		if err := staging.Validate(input, MinInputSize); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrMergeFailed, err)
		}
	}

	logger := e.cfg.Logger.WithField("output", out)
	var lastErr error
	for _, tier := range e.cfg.Tiers {
		if err := ctx.Err(); err != nil {
			e.removePartial(out)
			return fmt.Errorf("%w: %v", domain.ErrMergeFailed, err)
		}

		err := e.runTier(ctx, tier, video, audio, out)
		e.observe(tier.Name, err == nil)
		if err == nil {
			logger.Infof("merge succeeded with %s strategy", tier.Name)
			return nil
		}

		lastErr = err
		e.removePartial(out)
		logger.Warnf("%s merge failed: %v", tier.Name, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrMergeFailed, lastErr)
}

func (e *Engine) runTier(ctx context.Context, tier Tier, video, audio, out string) error {
	tierCtx, cancel := context.WithTimeout(ctx, tier.Timeout)
	defer cancel()

	_, stderr, err := e.runner.Run(tierCtx, e.cfg.FFmpeg, tier.Args(video, audio, out)...)
	if err != nil {
		if errors.Is(tierCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s", tier.Timeout)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr))
	}
	size := staging.Size(out)
	if size <= MinOutputSize {
		return fmt.Errorf("output too small: %d bytes", size)
	}
	return nil
}

// HasAudio reports whether path carries at least one audio stream.
func (e *Engine) HasAudio(ctx context.Context, path string) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	stdout, stderr, err := e.runner.Run(probeCtx, e.cfg.FFprobe,
		"-v", "quiet", "-show_streams", "-select_streams", "a", path)
	if err != nil {
		return false, fmt.Errorf("ffprobe: %w: %s", err, tail(stderr))
	}
	return len(bytes.TrimSpace(stdout)) > 0, nil
}

func (e *Engine) observe(tier string, ok bool) {
	if e.cfg.Observer != nil {
		e.cfg.Observer(tier, ok)
	}
}

func (e *Engine) removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.cfg.Logger.Warnf("remove partial merge output %s: %v", path, err)
	}
}

func tail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) > 200 {
		s = s[len(s)-200:]
	}
	return s
}
