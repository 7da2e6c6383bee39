package domain

import "time"

// EncodingKind classifies a single encoding offered by the provider.
type EncodingKind string

const (
	EncodingVideoOnly EncodingKind = "video_only"
	EncodingAudio     EncodingKind = "audio"
	EncodingCombined  EncodingKind = "combined"
)

// EncodingOption is one downloadable rendition of a media item.
type EncodingOption struct {
	ID      string
	Kind    EncodingKind
	Ext     string
	Size    int64
	Label   string
	Height  int
	Bitrate float64
}

// MediaInfo describes a resolved single media item.
type MediaInfo struct {
	ID          string
	Title       string
	Author      string
	AuthorURL   string
	Duration    time.Duration
	Thumbnail   string
	Platform    string
	OriginalURL string
	EmbedURL    string
	UploadDate  string
	LikeCount   int64
	Video       []EncodingOption
	Audio       []EncodingOption
	BestAudioID string
}

// PlaylistEntry is a flattened playlist member. Encodings are fetched lazily.
type PlaylistEntry struct {
	ID       string
	Title    string
	URL      string
	Duration time.Duration
}

// PlaylistInfo describes a resolved playlist.
type PlaylistInfo struct {
	ID          string
	Title       string
	Author      string
	Thumbnail   string
	OriginalURL string
	Entries     []PlaylistEntry
}

// Resolution is the result of resolving a URL: exactly one of Media or
// Playlist is set.
type Resolution struct {
	Media    *MediaInfo
	Playlist *PlaylistInfo
}

func (r *Resolution) IsPlaylist() bool {
	return r != nil && r.Playlist != nil
}
