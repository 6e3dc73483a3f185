package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
)

var ErrNoTranscript = errors.New("no transcript available")

// ClientTranscriptSource looks up transcripts and titles through the
// innertube API.
type ClientTranscriptSource struct {
	client *youtube.Client
}

// NewClientTranscriptSource uses hc for every request; a nil hc gets a client
// with the given timeout.
func NewClientTranscriptSource(hc *http.Client, timeout time.Duration) *ClientTranscriptSource {
	if hc == nil {
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &ClientTranscriptSource{client: &youtube.Client{HTTPClient: hc}}
}

// Title returns the video title. Videos without playable formats still carry
// a title, so a partial lookup counts as success.
func (s *ClientTranscriptSource) Title(ctx context.Context, videoID string) (string, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if video != nil && strings.TrimSpace(video.Title) != "" {
		return strings.TrimSpace(video.Title), nil
	}
	if err == nil {
		err = errors.New("empty title")
	}
	return "", fmt.Errorf("video %s: %w", videoID, err)
}

// Transcript tries each language in order and returns the first non-empty
// transcript.
func (s *ClientTranscriptSource) Transcript(ctx context.Context, videoID string, languages []string) ([]TranscriptEntry, error) {
	if len(languages) == 0 {
		return nil, ErrNoTranscript
	}
	video := &youtube.Video{ID: videoID}
	var errs []error
	for _, lang := range languages {
		segments, err := s.client.GetTranscriptCtx(ctx, video, lang)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			continue
		}
		if entries := toEntries(segments); len(entries) > 0 {
			return entries, nil
		}
		errs = append(errs, fmt.Errorf("%s: empty transcript", lang))
	}
	return nil, fmt.Errorf("%w for %s: %w", ErrNoTranscript, videoID, errors.Join(errs...))
}

func toEntries(segments youtube.VideoTranscript) []TranscriptEntry {
	entries := make([]TranscriptEntry, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		entries = append(entries, TranscriptEntry{
			Text:     text,
			Start:    float64(seg.StartMs) / 1000,
			Duration: float64(seg.Duration) / 1000,
		})
	}
	return entries
}
