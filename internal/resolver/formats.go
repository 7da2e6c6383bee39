package resolver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
)

// ProcessFormats splits raw provider formats into de-duplicated video and
// audio options, each sorted by descending quality.
func ProcessFormats(formats []provider.Format) (video, audio []domain.EncodingOption) {
	seenVideo := make(map[string]struct{})
	seenAudio := make(map[string]struct{})

	for _, f := range formats {
		switch {
		case f.HasVideo():
			label := videoLabel(f)
			if _, ok := seenVideo[label]; ok {
				continue
			}
			seenVideo[label] = struct{}{}

			kind := domain.EncodingCombined
			if !f.HasAudio() {
				kind = domain.EncodingVideoOnly
			}
			opt := domain.EncodingOption{
				ID:     f.FormatID,
				Kind:   kind,
				Ext:    f.Ext,
				Size:   f.Size(),
				Label:  label,
				Height: leadingNumber(label),
			}
			if f.Height != nil && *f.Height > 0 {
				opt.Height = *f.Height
			}
			video = append(video, opt)

		case f.HasAudio():
			label := audioLabel(f)
			if _, ok := seenAudio[label]; ok {
				continue
			}
			seenAudio[label] = struct{}{}

			opt := domain.EncodingOption{
				ID:      f.FormatID,
				Kind:    domain.EncodingAudio,
				Ext:     f.Ext,
				Size:    f.Size(),
				Label:   label,
				Bitrate: float64(leadingNumber(label)),
			}
			if f.ABR != nil && *f.ABR > 0 {
				opt.Bitrate = *f.ABR
			}
			audio = append(audio, opt)
		}
	}

	sort.SliceStable(video, func(i, j int) bool { return video[i].Height > video[j].Height })
	sort.SliceStable(audio, func(i, j int) bool { return audio[i].Bitrate > audio[j].Bitrate })
	return video, audio
}

// BestAudioFormat picks the highest-bitrate audio-only format, falling back to
// the best combined format. It returns "" when neither exists.
func BestAudioFormat(formats []provider.Format) string {
	var (
		bestID  string
		bestABR = -1.0
	)
	for _, f := range formats {
		if f.HasVideo() || !f.HasAudio() {
			continue
		}
		abr := 0.0
		if f.ABR != nil {
			abr = *f.ABR
		}
		if abr > bestABR {
			bestID, bestABR = f.FormatID, abr
		}
	}
	if bestID != "" {
		return bestID
	}

	bestQuality := -1.0
	for _, f := range formats {
		if !f.HasVideo() || !f.HasAudio() {
			continue
		}
		q := 0.0
		if f.Quality != nil {
			q = *f.Quality
		}
		if q > bestQuality {
			bestID, bestQuality = f.FormatID, q
		}
	}
	return bestID
}

func videoLabel(f provider.Format) string {
	if f.FormatNote != "" {
		return f.FormatNote
	}
	if f.Height != nil && *f.Height > 0 {
		return fmt.Sprintf("%dp", *f.Height)
	}
	return "N/A"
}

func audioLabel(f provider.Format) string {
	if f.FormatNote != "" {
		return f.FormatNote
	}
	if f.ABR != nil {
		return strconv.FormatFloat(*f.ABR, 'f', -1, 64) + "k"
	}
	return "N/A"
}

// leadingNumber parses the first run of digits in s, e.g. 720 from "720p60".
func leadingNumber(s string) int {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0
	}
	return n
}
