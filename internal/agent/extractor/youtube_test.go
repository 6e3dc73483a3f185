package extractor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

type fakeSource struct {
	entries       []TranscriptEntry
	transcriptErr error
	title         string
	titleErr      error
	gotLanguages  []string
}

func (f *fakeSource) Transcript(_ context.Context, _ string, languages []string) ([]TranscriptEntry, error) {
	f.gotLanguages = languages
	return f.entries, f.transcriptErr
}

func (f *fakeSource) Title(context.Context, string) (string, error) {
	return f.title, f.titleErr
}

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=10", want: "dQw4w9WgXcQ"},
		{url: "https://youtu.be/abc12345678", want: "abc12345678"},
		{url: "https://www.youtube.com/embed/a_b-c_d-e_f", want: "a_b-c_d-e_f"},
		{url: "https://www.youtube.com/channel/xyz", wantErr: true},
		{url: "https://youtu.be/short", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ParseVideoID(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestYouTubeExtractor_JoinsTranscript(t *testing.T) {
	src := &fakeSource{
		entries: []TranscriptEntry{{Text: "first line"}, {Text: "second line"}},
		title:   "  Go Concurrency Patterns ",
	}
	y := NewYouTubeExtractor(src, YouTubeConfig{Languages: []string{"ru", "en"}}, logger.NewNop())

	res, err := y.Extract(context.Background(), &models.Document{
		ID:      "doc-1",
		Variant: models.VariantYouTube,
		URL:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "first line\nsecond line", res.Text)
	assert.Equal(t, "Go Concurrency Patterns", res.Title)
	assert.Equal(t, []string{"ru", "en"}, src.gotLanguages)
}

func TestYouTubeExtractor_TranscriptFailureDegrades(t *testing.T) {
	src := &fakeSource{transcriptErr: errors.New("transcripts disabled")}
	log := logger.NewTestLogger()
	y := NewYouTubeExtractor(src, YouTubeConfig{}, log)

	res, err := y.Extract(context.Background(), &models.Document{
		ID:      "doc-2",
		Variant: models.VariantYouTube,
		URL:     "https://youtu.be/abc12345678",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, "YouTube Video", res.Text)
	assert.Equal(t, "YouTube Video", res.Title)
	assert.EqualError(t, res.Reason, "transcripts disabled")
	assert.NotEmpty(t, log.Messages("WARN"))
}

func TestYouTubeExtractor_KeepsUserTitle(t *testing.T) {
	src := &fakeSource{transcriptErr: errors.New("boom"), titleErr: errors.New("unused")}
	y := NewYouTubeExtractor(src, YouTubeConfig{}, logger.NewNop())

	res, err := y.Extract(context.Background(), &models.Document{
		Variant: models.VariantYouTube,
		URL:     "https://youtu.be/abc12345678",
		Title:   "My lecture",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, "My lecture", res.Title)
}

func TestYouTubeExtractor_BadURLDegrades(t *testing.T) {
	y := NewYouTubeExtractor(&fakeSource{}, YouTubeConfig{PlaceholderText: "n/a"}, logger.NewNop())

	res, err := y.Extract(context.Background(), &models.Document{
		Variant: models.VariantYouTube,
		URL:     "https://example.com/video",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, "n/a", res.Text)
	assert.Equal(t, "YouTube Video", res.Title)
}

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	r.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

// transcriptLang recovers the language code from the get_transcript params.
func transcriptLang(t *testing.T, params string) string {
	t.Helper()
	outer, err := base64.RawStdEncoding.DecodeString(params)
	require.NoError(t, err)
	_, rest, ok := strings.Cut(string(outer), "\x12\x12")
	require.True(t, ok)
	inner, err := url.QueryUnescape(strings.TrimSuffix(rest, "\x18\x01"))
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(inner)
	require.NoError(t, err)
	_, lang, ok := strings.Cut(string(raw), "\x12\x02")
	require.True(t, ok)
	return lang[:2]
}

func segmentJSON(start, end int, text string) string {
	return fmt.Sprintf(`{"transcriptSegmentRenderer":{"startMs":"%d","endMs":"%d","snippet":{"elementsAttributedString":{"content":%q}},"startTimeText":{"elementsAttributedString":{"content":"0:00"}}}}`,
		start, end, text)
}

func transcriptJSON(segments ...string) string {
	return `{"actions":[{"elementsCommand":{"transformEntityCommand":{"arguments":{"transformTranscriptSegmentListArguments":{"overwrite":{"initialSegments":[` +
		strings.Join(segments, ",") + `]}}}}}}]}`
}

type youtubeServer struct {
	transcripts map[string]string
	title       string
	requested   []string
}

func newYouTubeServer(t *testing.T, ys *youtubeServer) *http.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/youtubei/v1/get_transcript", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Params string `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		lang := transcriptLang(t, body.Params)
		ys.requested = append(ys.requested, lang)
		out, ok := ys.transcripts[lang]
		if !ok {
			http.Error(w, "no captions", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, out)
	})
	mux.HandleFunc("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"playabilityStatus":{"status":"OK","playableInEmbed":true},"videoDetails":{"videoId":"dQw4w9WgXcQ","title":%q}}`, ys.title)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &http.Client{Transport: rewriteTransport{target: target}}
}

func TestClientTranscriptSource_Transcript(t *testing.T) {
	ys := &youtubeServer{transcripts: map[string]string{
		"en": transcriptJSON(segmentJSON(500, 2600, "Hello world"), segmentJSON(2600, 3600, "  "), segmentJSON(3600, 5100, "bye")),
		"ru": transcriptJSON(segmentJSON(0, 1000, "привет")),
	}}
	src := NewClientTranscriptSource(newYouTubeServer(t, ys), 0)

	entries, err := src.Transcript(context.Background(), "dQw4w9WgXcQ", []string{"de", "en", "ru"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Hello world", entries[0].Text)
	assert.InDelta(t, 0.5, entries[0].Start, 1e-9)
	assert.InDelta(t, 2.1, entries[0].Duration, 1e-9)
	assert.Equal(t, "bye", entries[1].Text)
	assert.Equal(t, []string{"de", "en"}, ys.requested)

	entries, err = src.Transcript(context.Background(), "dQw4w9WgXcQ", []string{"ru"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "привет", entries[0].Text)
}

func TestClientTranscriptSource_NoTranscript(t *testing.T) {
	ys := &youtubeServer{transcripts: map[string]string{
		"en": `{"actions":[]}`,
	}}
	src := NewClientTranscriptSource(newYouTubeServer(t, ys), 0)

	_, err := src.Transcript(context.Background(), "dQw4w9WgXcQ", []string{"de", "en"})
	assert.ErrorIs(t, err, ErrNoTranscript)

	_, err = src.Transcript(context.Background(), "dQw4w9WgXcQ", nil)
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestClientTranscriptSource_Title(t *testing.T) {
	ys := &youtubeServer{title: "Server Title"}
	title, err := NewClientTranscriptSource(newYouTubeServer(t, ys), 0).Title(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Server Title", title)

	ys.title = ""
	_, err = NewClientTranscriptSource(newYouTubeServer(t, ys), 0).Title(context.Background(), "dQw4w9WgXcQ")
	assert.Error(t, err)
}

func TestYouTubeExtractor_WithClientSource(t *testing.T) {
	ys := &youtubeServer{
		title:       "Server Title",
		transcripts: map[string]string{"en": transcriptJSON(segmentJSON(0, 1000, "Hello world"), segmentJSON(1000, 2000, "bye"))},
	}
	y := NewYouTubeExtractor(NewClientTranscriptSource(newYouTubeServer(t, ys), 0), YouTubeConfig{Languages: []string{"ru", "en"}}, logger.NewNop())

	res, err := y.Extract(context.Background(), &models.Document{
		Variant: models.VariantYouTube,
		URL:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "Hello world\nbye", res.Text)
	assert.Equal(t, "Server Title", res.Title)
}

func TestYouTubeExtractor_ClientSourceFailureDegrades(t *testing.T) {
	ys := &youtubeServer{title: "Server Title"}
	y := NewYouTubeExtractor(NewClientTranscriptSource(newYouTubeServer(t, ys), 0), YouTubeConfig{Languages: []string{"ru", "en"}}, logger.NewNop())

	res, err := y.Extract(context.Background(), &models.Document{
		Variant: models.VariantYouTube,
		URL:     "https://youtu.be/dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, "YouTube Video", res.Text)
	assert.Equal(t, "YouTube Video", res.Title)
	assert.ErrorIs(t, res.Reason, ErrNoTranscript)
}
