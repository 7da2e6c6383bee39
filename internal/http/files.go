package http

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/downloader"
	"github.com/NikunjBaldaniya/AnyviDow/internal/staging"
)

// Cleaner removes delivered files after a grace period.
type Cleaner interface {
	ScheduleRemoval(delay time.Duration, paths ...string)
}

type cancelRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) cancelDownload(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID required"})
		return
	}
	if !h.cfg.Manager.Cancel(req.SessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Download not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// downloadFile serves the deliverable of a finished single-item session.
func (h *Handler) downloadFile(c *gin.Context) {
	sessionID, filename := c.Query("session_id"), c.Query("filename")
	if sessionID == "" || filename == "" {
		c.String(http.StatusBadRequest, "Missing parameters")
		return
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		c.String(http.StatusBadRequest, "Invalid session id")
		return
	}

	path, err := staging.Find(h.cfg.DataRoot, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrStagedFileNotFound) {
			c.String(http.StatusNotFound, "File not found")
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.FileAttachment(path, filename)
	h.cfg.Cleaner.ScheduleRemoval(h.cfg.CleanupDelay, path)
}

// download runs a single-item download within the request and returns the
// file directly.
func (h *Handler) download(c *gin.Context) {
	req := downloader.SingleRequest{
		URL:         c.Query("url"),
		FormatID:    c.Query("format_id"),
		Title:       c.Query("title"),
		Kind:        domain.EncodingKind(c.Query("type")),
		BestAudioID: c.Query("best_audio_id"),
	}
	if req.URL == "" || req.FormatID == "" || req.Title == "" || req.Kind == "" {
		c.String(http.StatusBadRequest, "Missing required parameters")
		return
	}

	d, err := h.cfg.Manager.RunSingle(c.Request.Context(), req)
	if err != nil {
		h.cfg.Logger.Warnf("synchronous download failed: %v", err)
		c.String(http.StatusInternalServerError, "Download failed: "+err.Error())
		return
	}

	c.FileAttachment(d.Path, d.Filename)
	h.cfg.Cleaner.ScheduleRemoval(h.cfg.CleanupDelay, d.Path)
}

// downloadZip serves a playlist archive and then removes it together with
// any staging directory left behind.
func (h *Handler) downloadZip(c *gin.Context) {
	sessionID, zipName := c.Query("session_id"), c.Query("zip_name")
	if sessionID == "" || zipName == "" {
		c.String(http.StatusBadRequest, "Missing parameters")
		return
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		c.String(http.StatusBadRequest, "Invalid session id")
		return
	}

	title := strings.TrimSuffix(zipName, ".zip")
	zipPath := downloader.PlaylistZip(h.cfg.DataRoot, title, sessionID)
	if _, err := os.Stat(zipPath); err != nil {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	c.FileAttachment(zipPath, zipName)
	h.cfg.Cleaner.ScheduleRemoval(h.cfg.CleanupDelay, zipPath, downloader.PlaylistDir(h.cfg.DataRoot, title, sessionID))
}
