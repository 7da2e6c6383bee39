package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
)

// InfoResolver resolves a URL into media or playlist metadata.
type InfoResolver interface {
	Resolve(ctx context.Context, url string) (*domain.Resolution, error)
}

var countPrinter = message.NewPrinter(language.English)

type fetchInfoRequest struct {
	URL string `json:"url"`
}

type VideoFormatResponse struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution"`
	Ext        string `json:"ext"`
	Filesize   string `json:"filesize"`
	Type       string `json:"type"`
}

type AudioFormatResponse struct {
	FormatID string `json:"format_id"`
	Quality  string `json:"quality"`
	Ext      string `json:"ext"`
	Filesize string `json:"filesize"`
	Type     string `json:"type"`
}

type VideoInfoResponse struct {
	Type         string                `json:"type"`
	Title        string                `json:"title"`
	Author       string                `json:"author"`
	AuthorURL    *string               `json:"author_url"`
	Platform     string                `json:"platform"`
	Thumbnail    string                `json:"thumbnail"`
	OriginalURL  string                `json:"original_url"`
	EmbedURL     *string               `json:"embed_url"`
	Duration     string                `json:"duration"`
	UploadDate   string                `json:"upload_date"`
	LikeCount    string                `json:"like_count"`
	VideoFormats []VideoFormatResponse `json:"video_formats"`
	AudioFormats []AudioFormatResponse `json:"audio_formats"`
	BestAudioID  *string               `json:"best_audio_id"`
}

type PlaylistVideoResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Duration string `json:"duration"`
}

type PlaylistInfoResponse struct {
	Type        string                  `json:"type"`
	Title       string                  `json:"title"`
	Author      string                  `json:"author"`
	Thumbnail   string                  `json:"thumbnail"`
	VideoCount  int                     `json:"video_count"`
	OriginalURL string                  `json:"original_url"`
	Videos      []PlaylistVideoResponse `json:"videos"`
}

func (h *Handler) fetchInfo(c *gin.Context) {
	var req fetchInfoRequest
	_ = c.ShouldBindJSON(&req)
	url := strings.TrimSpace(req.URL)
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	res, err := h.cfg.Resolver.Resolve(c.Request.Context(), url)
	if err != nil {
		h.cfg.Metrics.Resolve("error")
		h.cfg.Logger.WithField("url", url).Warnf("fetch info: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to fetch info. The URL may be invalid or unsupported."})
		return
	}

	if res.IsPlaylist() {
		h.cfg.Metrics.Resolve("playlist")
		c.JSON(http.StatusOK, playlistToResponse(res.Playlist))
		return
	}
	h.cfg.Metrics.Resolve("video")
	c.JSON(http.StatusOK, mediaToResponse(res.Media))
}

func mediaToResponse(m *domain.MediaInfo) VideoInfoResponse {
	resp := VideoInfoResponse{
		Type:         "video",
		Title:        m.Title,
		Author:       m.Author,
		AuthorURL:    optional(m.AuthorURL),
		Platform:     m.Platform,
		Thumbnail:    m.Thumbnail,
		OriginalURL:  m.OriginalURL,
		EmbedURL:     optional(m.EmbedURL),
		Duration:     formatDuration(m.Duration),
		UploadDate:   formatUploadDate(m.UploadDate),
		LikeCount:    countPrinter.Sprintf("%d", m.LikeCount),
		VideoFormats: make([]VideoFormatResponse, len(m.Video)),
		AudioFormats: make([]AudioFormatResponse, len(m.Audio)),
		BestAudioID:  optional(m.BestAudioID),
	}
	for i, f := range m.Video {
		resp.VideoFormats[i] = VideoFormatResponse{
			FormatID:   f.ID,
			Resolution: f.Label,
			Ext:        f.Ext,
			Filesize:   formatFileSize(f.Size),
			Type:       string(f.Kind),
		}
	}
	for i, f := range m.Audio {
		resp.AudioFormats[i] = AudioFormatResponse{
			FormatID: f.ID,
			Quality:  f.Label,
			Ext:      f.Ext,
			Filesize: formatFileSize(f.Size),
			Type:     string(f.Kind),
		}
	}
	return resp
}

func playlistToResponse(p *domain.PlaylistInfo) PlaylistInfoResponse {
	resp := PlaylistInfoResponse{
		Type:        "playlist",
		Title:       p.Title,
		Author:      p.Author,
		Thumbnail:   p.Thumbnail,
		VideoCount:  len(p.Entries),
		OriginalURL: p.OriginalURL,
		Videos:      make([]PlaylistVideoResponse, len(p.Entries)),
	}
	for i, e := range p.Entries {
		resp.Videos[i] = PlaylistVideoResponse{
			ID:       e.ID,
			Title:    e.Title,
			URL:      e.URL,
			Duration: formatDuration(e.Duration),
		}
	}
	return resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// formatDuration renders HH:MM:SS, or MM:SS under an hour.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "N/A"
	}
	total := int(d / time.Second)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatUploadDate(raw string) string {
	t, err := time.Parse("20060102", raw)
	if err != nil {
		return "N/A"
	}
	return t.Format("Jan 02, 2006")
}

func formatFileSize(size int64) string {
	if size <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f MB", float64(size)/1024/1024)
}
