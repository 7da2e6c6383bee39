package downloader

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/progress"
)

// reporter stamps events with the session id and keeps reported progress
// non-decreasing, per phase or across the whole job.
type reporter struct {
	events    *progress.Channel
	sessionID string
	global    bool

	mu    sync.Mutex
	phase string
	last  float64
}

func newReporter(events *progress.Channel, sessionID string, global bool) *reporter {
	return &reporter{events: events, sessionID: sessionID, global: global}
}

func (r *reporter) clamp(s *domain.ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.global && s.Phase != r.phase {
		r.phase = s.Phase
		r.last = 0
	}
	s.Progress = math.Round(s.Progress*10) / 10
	if s.Progress < r.last {
		s.Progress = r.last
	}
	r.last = s.Progress
	s.SessionID = r.sessionID
}

func (r *reporter) sample(s domain.ProgressSnapshot) {
	r.clamp(&s)
	if r.events != nil {
		r.events.Publish(s)
	}
}

func (r *reporter) milestone(s domain.ProgressSnapshot) {
	r.clamp(&s)
	if r.events != nil {
		r.events.Milestone(s)
	}
}

func (r *reporter) finish(terminal ...domain.ProgressSnapshot) {
	for i := range terminal {
		terminal[i].SessionID = r.sessionID
	}
	if r.events != nil {
		r.events.Finish(terminal...)
	}
}

func formatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f MB/s", bytesPerSecond/1024/1024)
}

func formatSize(done, total int64) string {
	const mb = 1024 * 1024
	if total <= 0 {
		return fmt.Sprintf("%.1f MB", float64(done)/mb)
	}
	return fmt.Sprintf("%.1f MB / %.1f MB", float64(done)/mb, float64(total)/mb)
}

func formatETA(d time.Duration) string {
	if d <= 0 {
		return "N/A"
	}
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
