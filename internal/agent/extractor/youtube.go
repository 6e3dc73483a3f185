package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

var videoIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/|embed/)([a-zA-Z0-9_-]{11})`)

// ParseVideoID pulls the 11 character video id out of a YouTube URL.
func ParseVideoID(url string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("cannot extract video id from %q", url)
	}
	return m[1], nil
}

// TranscriptEntry is one caption line.
type TranscriptEntry struct {
	Text     string
	Start    float64
	Duration float64
}

// TranscriptSource looks up captions and metadata for a video.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string, languages []string) ([]TranscriptEntry, error)
	Title(ctx context.Context, videoID string) (string, error)
}

type YouTubeConfig struct {
	Languages        []string
	PlaceholderText  string
	PlaceholderTitle string
}

// YouTubeExtractor never fails: lookup errors produce a Degraded result with
// placeholder text and title.
type YouTubeExtractor struct {
	source TranscriptSource
	cfg    YouTubeConfig
	logger logger.Logger
}

func NewYouTubeExtractor(source TranscriptSource, cfg YouTubeConfig, log logger.Logger) *YouTubeExtractor {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"ru"}
	}
	if cfg.PlaceholderText == "" {
		cfg.PlaceholderText = "YouTube Video"
	}
	if cfg.PlaceholderTitle == "" {
		cfg.PlaceholderTitle = "YouTube Video"
	}
	return &YouTubeExtractor{source: source, cfg: cfg, logger: log}
}

func (y *YouTubeExtractor) Extract(ctx context.Context, doc *models.Document) (Result, error) {
	log := y.logger.With(logger.DocumentID(doc.ID), logger.String("url", doc.URL))

	videoID, err := ParseVideoID(doc.URL)
	if err != nil {
		log.Warn("Falling back to placeholder transcript", logger.Error(err))
		return Degraded(y.cfg.PlaceholderText, y.fallbackTitle(doc), err), nil
	}

	title := doc.Title
	if title == "" {
		fetched, err := y.source.Title(ctx, videoID)
		if err != nil || strings.TrimSpace(fetched) == "" {
			log.Warn("Video title lookup failed", logger.Error(err))
			title = y.cfg.PlaceholderTitle
		} else {
			title = strings.TrimSpace(fetched)
		}
	}

	entries, err := y.source.Transcript(ctx, videoID, y.cfg.Languages)
	if err != nil {
		log.Warn("Falling back to placeholder transcript", logger.Error(err))
		return Degraded(y.cfg.PlaceholderText, y.fallbackTitle(doc), err), nil
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Text)
	}
	return OK(strings.Join(lines, "\n"), title), nil
}

func (y *YouTubeExtractor) fallbackTitle(doc *models.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	return y.cfg.PlaceholderTitle
}
