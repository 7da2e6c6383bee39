// Package provider talks to the external extraction/download tool.
package provider

import (
	"context"
	"time"
)

// Info is the subset of the provider's JSON metadata the service consumes.
type Info struct {
	ID           string   `json:"id"`
	Type         string   `json:"_type"`
	Title        string   `json:"title"`
	Uploader     string   `json:"uploader"`
	Channel      string   `json:"channel"`
	UploaderURL  string   `json:"uploader_url"`
	ChannelURL   string   `json:"channel_url"`
	Thumbnail    string   `json:"thumbnail"`
	WebpageURL   string   `json:"webpage_url"`
	URL          string   `json:"url"`
	Extractor    string   `json:"extractor"`
	ExtractorKey string   `json:"extractor_key"`
	UploadDate   string   `json:"upload_date"`
	Duration     *float64 `json:"duration"`
	LikeCount    *int64   `json:"like_count"`
	Formats      []Format `json:"formats"`
	Entries      []*Info  `json:"entries"`
}

// IsPlaylist reports whether the provider returned a collection.
func (i *Info) IsPlaylist() bool {
	return i != nil && (i.Type == "playlist" || i.Entries != nil)
}

// Format is one encoding as described by the provider.
type Format struct {
	FormatID       string   `json:"format_id"`
	FormatNote     string   `json:"format_note"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Height         *int     `json:"height"`
	ABR            *float64 `json:"abr"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	Quality        *float64 `json:"quality"`
}

// Size returns the exact or approximate size in bytes, or 0 when unknown.
func (f Format) Size() int64 {
	if f.Filesize != nil && *f.Filesize > 0 {
		return *f.Filesize
	}
	if f.FilesizeApprox != nil && *f.FilesizeApprox > 0 {
		return *f.FilesizeApprox
	}
	return 0
}

// HasVideo is true unless the provider explicitly reports no video codec.
func (f Format) HasVideo() bool { return f.VCodec != "none" }

// HasAudio is true unless the provider explicitly reports no audio codec.
func (f Format) HasAudio() bool { return f.ACodec != "none" }

// DownloadRequest describes a single stream download.
type DownloadRequest struct {
	URL               string
	Format            string
	Output            string
	MergeOutputFormat string
	RecodeVideo       string
}

// Progress is a per-chunk transfer update.
type Progress struct {
	Status          string
	Filename        string
	Title           string
	DownloadedBytes int64
	TotalBytes      int64
	Speed           float64
	ETA             time.Duration
}

// Percent returns the completion percentage, or 0 when the total is unknown.
func (p Progress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return 0
	}
	pct := float64(p.DownloadedBytes) / float64(p.TotalBytes) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Provider resolves metadata and downloads streams. Download must stop
// promptly once ctx is cancelled.
type Provider interface {
	Resolve(ctx context.Context, url string, flatten bool) (*Info, error)
	Download(ctx context.Context, req DownloadRequest, onProgress func(Progress)) error
}
