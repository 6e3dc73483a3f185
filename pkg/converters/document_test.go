package converters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-summarizer/internal/models"
)

func TestToDocumentView(t *testing.T) {
	v := ToDocumentView(&models.Document{
		ID:      "d1",
		Variant: models.VariantDocument,
		File:    "pdfs/1f/report.pdf",
		Status:  models.StatusProcessing,
	})
	assert.Equal(t, "Document", v.VariantDisplay)
	assert.Equal(t, "Processing", v.StatusDisplay)
	assert.Equal(t, "report.pdf", v.Filename)
	assert.Equal(t, "report.pdf", v.DisplayName)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "processing", m["status"])
	assert.Equal(t, "Processing", m["status_display"])
	assert.NotContains(t, m, "url")
}

func TestToDocumentViews_YouTube(t *testing.T) {
	views := ToDocumentViews([]*models.Document{
		{ID: "y1", Variant: models.VariantYouTube, URL: "https://youtu.be/abc12345678", Status: models.StatusDone, Title: "Talk"},
	})
	require.Len(t, views, 1)
	assert.Equal(t, "YouTube Video", views[0].VariantDisplay)
	assert.Equal(t, "No file", views[0].Filename)
	assert.Equal(t, "Talk", views[0].DisplayName)
	assert.Equal(t, "Done", views[0].StatusDisplay)
}
