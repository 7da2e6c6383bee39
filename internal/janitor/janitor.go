// Package janitor removes staged downloads that are no longer needed: files
// handed to a client are removed shortly after delivery, and anything left
// behind by abandoned sessions is swept periodically.
package janitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Root     string
	MaxAge   time.Duration
	Schedule string
	Logger   *logrus.Logger
	// InUse reports entries that belong to a running download. The sweep
	// never removes them.
	InUse func(name string) bool
}

// Janitor manages delayed and periodic cleanup of the download root.
type Janitor struct {
	cfg  Config
	cron *cron.Cron
	now  func() time.Time

	mu     sync.Mutex
	timers map[*time.Timer][]string
}

func New(cfg Config) *Janitor {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 15m"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Janitor{
		cfg:    cfg,
		cron:   cron.New(),
		now:    time.Now,
		timers: make(map[*time.Timer][]string),
	}
}

// Start registers the periodic sweep.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.cfg.Schedule, j.runSweep); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}
	j.cron.Start()
	j.cfg.Logger.Infof("janitor started, sweeping %s every %q", j.cfg.Root, j.cfg.Schedule)
	return nil
}

// Stop halts the periodic sweep and performs pending delayed removals
// immediately.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()

	j.mu.Lock()
	pending := j.timers
	j.timers = make(map[*time.Timer][]string)
	j.mu.Unlock()

	for t, paths := range pending {
		if !t.Stop() {
			continue
		}
		for _, p := range paths {
			j.remove(p)
		}
	}
}

// ScheduleRemoval deletes paths after delay. Directories are removed
// recursively.
func (j *Janitor) ScheduleRemoval(delay time.Duration, paths ...string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		j.mu.Lock()
		delete(j.timers, t)
		j.mu.Unlock()
		for _, p := range paths {
			j.remove(p)
		}
	})
	j.timers[t] = paths
}

func (j *Janitor) runSweep() {
	removed, err := j.Sweep()
	if err != nil {
		j.cfg.Logger.WithError(err).Error("sweep failed")
		return
	}
	if removed > 0 {
		j.cfg.Logger.Infof("sweep removed %d stale entries", removed)
	}
}

// Sweep removes top-level entries of the root that have not been modified
// for longer than MaxAge and are not in use.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.cfg.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read download root: %w", err)
	}

	cutoff := j.now().Add(-j.cfg.MaxAge)
	removed := 0
	for _, entry := range entries {
		if j.cfg.InUse != nil && j.cfg.InUse(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if j.remove(filepath.Join(j.cfg.Root, entry.Name())) {
			removed++
		}
	}
	return removed, nil
}

func (j *Janitor) remove(path string) bool {
	if err := os.RemoveAll(path); err != nil {
		j.cfg.Logger.Warnf("cleanup %s: %v", filepath.Base(path), err)
		return false
	}
	j.cfg.Logger.Debugf("removed %s", filepath.Base(path))
	return true
}
