package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/downloader"
)

func (h *Handler) streamSingleDownload(c *gin.Context) {
	req := downloader.SingleRequest{
		URL:         c.Query("url"),
		FormatID:    c.Query("format_id"),
		Title:       c.DefaultQuery("title", "video"),
		Kind:        domain.EncodingKind(c.Query("type")),
		BestAudioID: c.Query("best_audio_id"),
	}
	if req.URL == "" || req.FormatID == "" {
		c.String(http.StatusBadRequest, "Missing required parameters")
		return
	}

	job, err := h.cfg.Manager.StartSingle(req)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	h.stream(c, job)
}

func (h *Handler) streamPlaylistDownload(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.String(http.StatusBadRequest, "Missing URL parameter.")
		return
	}

	req := downloader.PlaylistRequest{URL: url}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"quality", &req.Quality},
		{"start", &req.Start},
		{"end", &req.End},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.String(http.StatusBadRequest, fmt.Sprintf("Invalid %s parameter.", p.name))
			return
		}
		*p.dst = n
	}

	job, err := h.cfg.Manager.StartPlaylist(req)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	h.stream(c, job)
}

// stream relays job events as server-sent events until the job finishes or
// the client goes away. A client that disconnects early cancels the job.
func (h *Handler) stream(c *gin.Context, job *downloader.Job) {
	logger := h.cfg.Logger.WithField("session_id", job.SessionID)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(h.cfg.StreamInterval)
	defer ticker.Stop()

	finished := false
	clientGone := c.Stream(func(w io.Writer) bool {
		batch, complete := job.Events.Drain()
		for _, ev := range batch {
			if err := writeEvent(w, ev); err != nil {
				logger.Warnf("write event: %v", err)
				return false
			}
		}
		if complete {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			finished = true
			return false
		}

		select {
		case <-c.Request.Context().Done():
			return false
		case <-job.Events.Done():
		case <-ticker.C:
		}
		return true
	})

	if !finished {
		logger.Infof("client disconnected (gone=%t), cancelling download", clientGone)
		h.cfg.Manager.Cancel(job.SessionID)
	}
}

func writeEvent(w io.Writer, ev domain.ProgressSnapshot) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
