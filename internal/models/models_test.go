package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument_Filename(t *testing.T) {
	doc := &Document{Variant: VariantDocument, File: "pdfs/2f1c/doc.pdf"}
	assert.Equal(t, "doc.pdf", doc.Filename())
	assert.Equal(t, "doc.pdf", doc.DisplayName())

	video := &Document{Variant: VariantYouTube, URL: "https://youtu.be/abc12345678"}
	assert.Equal(t, "No file", video.Filename())
	assert.Equal(t, "Untitled video", video.DisplayName())
}

func TestStatusAndVariantDisplay(t *testing.T) {
	assert.Equal(t, "Processing", StatusProcessing.Display())
	assert.Equal(t, "YouTube Video", VariantYouTube.Display())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusUploaded.Terminal())
}

func TestModelSettings_Validate(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.Validate())

	s.Temperature = 1.5
	assert.Error(t, s.Validate())

	s = ModelSettings{Temperature: 0.2}
	assert.Error(t, s.Validate())
}

func TestModelSettings_WithDefaults(t *testing.T) {
	s := ModelSettings{Model: "m", MapPrompt: "custom %s"}.WithDefaults()
	assert.Equal(t, "custom %s", s.MapPrompt)
	assert.Equal(t, DefaultCombinePrompt, s.CombinePrompt)
	assert.Equal(t, DefaultTitlePrompt, s.TitlePrompt)
}

func TestRenderPrompt(t *testing.T) {
	assert.Equal(t, "Summary of: text 100%s", RenderPrompt("Summary of: %s", "text 100%s"))
	assert.Equal(t, "Summarize.\n\nbody", RenderPrompt("Summarize.", "body"))
}
