package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
)

type fakeProvider struct {
	infos   map[string]*provider.Info
	err     error
	delay   time.Duration
	calls   atomic.Int32
	flatten []bool
	mu      sync.Mutex
}

func (f *fakeProvider) Resolve(ctx context.Context, url string, flatten bool) (*provider.Info, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.flatten = append(f.flatten, flatten)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[url]
	if !ok {
		return nil, errors.New("unsupported url")
	}
	return info, nil
}

func (f *fakeProvider) Download(ctx context.Context, req provider.DownloadRequest, onProgress func(provider.Progress)) error {
	return errors.New("not implemented")
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
func int64p(v int64) *int64     { return &v }

func scenarioFormats() []provider.Format {
	return []provider.Format{
		{FormatID: "137", Ext: "mp4", VCodec: "avc1", ACodec: "none", FormatNote: "1080p", Height: intp(1080)},
		{FormatID: "22", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", FormatNote: "720p", Height: intp(720)},
		{FormatID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a", ABR: floatp(128)},
	}
}

func TestProcessFormats_Scenario(t *testing.T) {
	video, audio := ProcessFormats(scenarioFormats())

	require.Len(t, video, 2)
	assert.Equal(t, "1080p", video[0].Label)
	assert.Equal(t, domain.EncodingVideoOnly, video[0].Kind)
	assert.Equal(t, "720p", video[1].Label)
	assert.Equal(t, domain.EncodingCombined, video[1].Kind)

	require.Len(t, audio, 1)
	assert.Equal(t, "140", audio[0].ID)
	assert.Equal(t, "128k", audio[0].Label)
	assert.Equal(t, domain.EncodingAudio, audio[0].Kind)
}

func TestProcessFormats_SortedAndDeduplicated(t *testing.T) {
	formats := []provider.Format{
		{FormatID: "a", VCodec: "vp9", ACodec: "none", Height: intp(360)},
		{FormatID: "b", VCodec: "vp9", ACodec: "none", Height: intp(1440)},
		{FormatID: "c", VCodec: "avc1", ACodec: "none", Height: intp(360)},
		{FormatID: "d", VCodec: "avc1", ACodec: "none", FormatNote: "720p60", Height: intp(720)},
		{FormatID: "e", VCodec: "none", ACodec: "opus", FormatNote: "low", ABR: floatp(50)},
		{FormatID: "f", VCodec: "none", ACodec: "opus", FormatNote: "medium", ABR: floatp(160)},
		{FormatID: "g", VCodec: "none", ACodec: "mp4a", FormatNote: "low", ABR: floatp(48)},
		{FormatID: "sb", VCodec: "none", ACodec: "none", FormatNote: "storyboard"},
	}

	video, audio := ProcessFormats(formats)

	ids := func(opts []domain.EncodingOption) []string {
		out := make([]string, len(opts))
		for i, o := range opts {
			out[i] = o.ID
		}
		return out
	}
	assert.Equal(t, []string{"b", "d", "a"}, ids(video))
	assert.Equal(t, []string{"f", "e"}, ids(audio))

	for i := 1; i < len(video); i++ {
		assert.GreaterOrEqual(t, video[i-1].Height, video[i].Height)
	}
}

func TestProcessFormats_StableOnTies(t *testing.T) {
	formats := []provider.Format{
		{FormatID: "x", VCodec: "vp9", ACodec: "none", FormatNote: "480p"},
		{FormatID: "y", VCodec: "avc1", ACodec: "none", FormatNote: "480p60"},
	}
	video, _ := ProcessFormats(formats)
	require.Len(t, video, 2)
	assert.Equal(t, "x", video[0].ID)
	assert.Equal(t, "y", video[1].ID)
}

func TestBestAudioFormat(t *testing.T) {
	assert.Equal(t, "140", BestAudioFormat(scenarioFormats()))

	combinedOnly := []provider.Format{
		{FormatID: "18", VCodec: "avc1", ACodec: "mp4a", Quality: floatp(1)},
		{FormatID: "22", VCodec: "avc1", ACodec: "mp4a", Quality: floatp(3)},
		{FormatID: "137", VCodec: "avc1", ACodec: "none", Quality: floatp(9)},
	}
	assert.Equal(t, "22", BestAudioFormat(combinedOnly))

	assert.Equal(t, "", BestAudioFormat([]provider.Format{{FormatID: "137", VCodec: "avc1", ACodec: "none"}}))
}

func TestIsPlaylistURL(t *testing.T) {
	assert.True(t, IsPlaylistURL("https://www.youtube.com/watch?v=x&list=PL1"))
	assert.True(t, IsPlaylistURL("https://example.com/playlist/42"))
	assert.True(t, IsPlaylistURL("https://soundcloud.com/artist/sets/album"))
	assert.False(t, IsPlaylistURL("https://www.youtube.com/watch?v=x"))
}

func TestResolver_ResolveMedia(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	fp := &fakeProvider{infos: map[string]*provider.Info{
		url: {
			ID:           "abc",
			Title:        "Clip",
			Uploader:     "Someone",
			UploaderURL:  "ftp://not-http",
			ChannelURL:   "https://www.youtube.com/@someone",
			ExtractorKey: "Youtube",
			Duration:     floatp(95),
			LikeCount:    int64p(1234567),
			UploadDate:   "20240131",
			Formats:      scenarioFormats(),
		},
	}}
	r := New(Config{}, fp)

	res, err := r.Resolve(context.Background(), url)
	require.NoError(t, err)
	require.False(t, res.IsPlaylist())

	m := res.Media
	assert.Equal(t, "Clip", m.Title)
	assert.Equal(t, "", m.AuthorURL)
	assert.Equal(t, "https://www.youtube.com/embed/abc", m.EmbedURL)
	assert.Equal(t, 95*time.Second, m.Duration)
	assert.Equal(t, int64(1234567), m.LikeCount)
	assert.Equal(t, "140", m.BestAudioID)
	assert.Equal(t, url, m.OriginalURL)
	assert.Equal(t, []bool{false}, fp.flatten)

	id, err := r.BestAudioID(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "140", id)
	assert.Equal(t, int32(1), fp.calls.Load())
}

func TestResolver_ResolvePlaylistWithThumbnailFallback(t *testing.T) {
	listURL := "https://www.youtube.com/playlist?list=PL1"
	firstURL := "https://www.youtube.com/watch?v=a1"
	fp := &fakeProvider{infos: map[string]*provider.Info{
		listURL: {
			ID:      "PL1",
			Type:    "playlist",
			Title:   "Road trip",
			Entries: []*provider.Info{{ID: "a1", Title: "First", URL: firstURL}, nil, {ID: "b2", URL: "https://www.youtube.com/watch?v=b2"}},
		},
		firstURL: {ID: "a1", Thumbnail: "https://img/a1.jpg"},
	}}
	r := New(Config{}, fp)

	res, err := r.Resolve(context.Background(), listURL)
	require.NoError(t, err)
	require.True(t, res.IsPlaylist())

	p := res.Playlist
	assert.Equal(t, "Road trip", p.Title)
	assert.Equal(t, "https://img/a1.jpg", p.Thumbnail)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, "Untitled", p.Entries[1].Title)
	assert.Equal(t, []bool{true, false}, fp.flatten)
}

func TestResolver_ResolutionErrorIsNotCached(t *testing.T) {
	fp := &fakeProvider{err: errors.New("unsupported url")}
	r := New(Config{}, fp)

	_, err := r.Resolve(context.Background(), "https://nowhere")
	var rerr *domain.ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "https://nowhere", rerr.URL)

	_, err = r.Resolve(context.Background(), "https://nowhere")
	require.Error(t, err)
	assert.Equal(t, int32(2), fp.calls.Load())
}

func TestResolver_ResolvePlaylistRejectsSingleItem(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	fp := &fakeProvider{infos: map[string]*provider.Info{url: {ID: "abc"}}}
	r := New(Config{}, fp)

	_, err := r.ResolvePlaylist(context.Background(), url)
	var rerr *domain.ResolutionError
	assert.ErrorAs(t, err, &rerr)
}

func TestResolver_ConcurrentResolvesShareOneCall(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	fp := &fakeProvider{
		infos: map[string]*provider.Info{url: {ID: "abc", Formats: scenarioFormats()}},
		delay: 50 * time.Millisecond,
	}
	r := New(Config{}, fp)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), url)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fp.calls.Load())
}

func TestEmbedURL(t *testing.T) {
	assert.Equal(t, "https://www.dailymotion.com/embed/video/x8", EmbedURL("Dailymotion", "x8"))
	assert.Equal(t, "", EmbedURL("Vimeo", "1"))
	assert.Equal(t, "", EmbedURL("Youtube", ""))
}
