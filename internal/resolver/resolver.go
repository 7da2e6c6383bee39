// Package resolver turns a media URL into display metadata and encoding
// options, or into a list of playlist entries.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
)

const DefaultCacheTTL = 10 * time.Minute

var playlistMarkers = []string{"list=", "/playlist/", "/sets/"}

// IsPlaylistURL is a cheap pre-filter that selects flattened resolution. The
// provider response remains authoritative.
func IsPlaylistURL(url string) bool {
	for _, marker := range playlistMarkers {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}

type Config struct {
	CacheTTL time.Duration
	Logger   *logrus.Logger
}

// Resolver resolves URLs through the provider, caching results per URL and
// collapsing concurrent lookups of the same URL.
type Resolver struct {
	cfg      Config
	provider provider.Provider
	cache    *cache.Cache
	group    singleflight.Group
}

func New(cfg Config, p provider.Provider) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Resolver{
		cfg:      cfg,
		provider: p,
		cache:    cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// Resolve returns either single-item metadata or playlist entries.
func (r *Resolver) Resolve(ctx context.Context, url string) (*domain.Resolution, error) {
	flatten := IsPlaylistURL(url)
	info, err := r.info(ctx, url, flatten)
	if err != nil {
		return nil, err
	}

	if info.IsPlaylist() {
		playlist := toPlaylist(info, url)
		if playlist.Thumbnail == "" && len(playlist.Entries) > 0 {
			playlist.Thumbnail = r.borrowThumbnail(ctx, playlist.Entries[0].URL)
		}
		return &domain.Resolution{Playlist: playlist}, nil
	}

	media := toMedia(info, url)
	r.cache.SetDefault(audioKey(url), media.BestAudioID)
	return &domain.Resolution{Media: media}, nil
}

// ResolvePlaylist resolves url and fails unless it is a playlist.
func (r *Resolver) ResolvePlaylist(ctx context.Context, url string) (*domain.PlaylistInfo, error) {
	info, err := r.info(ctx, url, true)
	if err != nil {
		return nil, err
	}
	if !info.IsPlaylist() {
		return nil, &domain.ResolutionError{URL: url, Err: errors.New("not a playlist")}
	}
	return toPlaylist(info, url), nil
}

// BestAudioID returns the preferred audio encoding for url, reusing the
// selection from an earlier resolution when one is cached.
func (r *Resolver) BestAudioID(ctx context.Context, url string) (string, error) {
	if id, ok := r.cache.Get(audioKey(url)); ok {
		if s, _ := id.(string); s != "" {
			return s, nil
		}
	}
	info, err := r.info(ctx, url, false)
	if err != nil {
		return "", err
	}
	id := BestAudioFormat(info.Formats)
	if id != "" {
		r.cache.SetDefault(audioKey(url), id)
	}
	return id, nil
}

func (r *Resolver) info(ctx context.Context, url string, flatten bool) (*provider.Info, error) {
	key := infoKey(url, flatten)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*provider.Info), nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
		started := time.Now()
		info, err := r.provider.Resolve(ctx, url, flatten)
		if err != nil {
			return nil, err
		}
		r.cfg.Logger.WithFields(logrus.Fields{
			"url":         url,
			"flatten":     flatten,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Debug("resolved url")
		r.cache.SetDefault(key, info)
		return info, nil
	})
	if err != nil {
		return nil, &domain.ResolutionError{URL: url, Err: err}
	}
	return v.(*provider.Info), nil
}

func (r *Resolver) borrowThumbnail(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}
	info, err := r.info(ctx, url, false)
	if err != nil {
		r.cfg.Logger.WithField("url", url).Debugf("playlist thumbnail fallback: %v", err)
		return ""
	}
	return info.Thumbnail
}

func infoKey(url string, flatten bool) string {
	return fmt.Sprintf("info:%t:%s", flatten, url)
}

func audioKey(url string) string {
	return "audio:" + url
}

func toMedia(info *provider.Info, requested string) *domain.MediaInfo {
	video, audio := ProcessFormats(info.Formats)
	m := &domain.MediaInfo{
		ID:          info.ID,
		Title:       firstNonEmpty(info.Title, "Unknown"),
		Author:      firstNonEmpty(info.Uploader, info.Channel, "Unknown"),
		AuthorURL:   httpURL(firstNonEmpty(info.UploaderURL, info.ChannelURL)),
		Duration:    seconds(info.Duration),
		Thumbnail:   info.Thumbnail,
		Platform:    firstNonEmpty(info.ExtractorKey, info.Extractor, "Unknown"),
		OriginalURL: firstNonEmpty(info.WebpageURL, requested),
		UploadDate:  info.UploadDate,
		Video:       video,
		Audio:       audio,
	}
	m.EmbedURL = EmbedURL(m.Platform, info.ID)
	if info.LikeCount != nil {
		m.LikeCount = *info.LikeCount
	}
	if len(audio) > 0 {
		m.BestAudioID = audio[0].ID
	}
	return m
}

func toPlaylist(info *provider.Info, requested string) *domain.PlaylistInfo {
	p := &domain.PlaylistInfo{
		ID:          info.ID,
		Title:       firstNonEmpty(info.Title, "Untitled Playlist"),
		Author:      firstNonEmpty(info.Uploader, info.Channel, "Unknown"),
		Thumbnail:   info.Thumbnail,
		OriginalURL: firstNonEmpty(info.WebpageURL, requested),
	}
	for _, entry := range info.Entries {
		if entry == nil {
			continue
		}
		p.Entries = append(p.Entries, domain.PlaylistEntry{
			ID:       entry.ID,
			Title:    firstNonEmpty(entry.Title, "Untitled"),
			URL:      firstNonEmpty(entry.WebpageURL, entry.URL),
			Duration: seconds(entry.Duration),
		})
	}
	return p
}

// EmbedURL builds a player URL for platforms that offer one.
func EmbedURL(platform, id string) string {
	if id == "" {
		return ""
	}
	switch strings.ToLower(platform) {
	case "youtube":
		return "https://www.youtube.com/embed/" + id
	case "dailymotion":
		return "https://www.dailymotion.com/embed/video/" + id
	default:
		return ""
	}
}

func httpURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return ""
}

func seconds(v *float64) time.Duration {
	if v == nil || *v <= 0 {
		return 0
	}
	return time.Duration(*v * float64(time.Second))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
