package converters

import (
	"time"

	"github.com/feichai0017/document-summarizer/internal/models"
)

// DocumentView 是列表与详情接口返回的文档结构
type DocumentView struct {
	ID             string    `json:"id"`
	Variant        string    `json:"variant"`
	VariantDisplay string    `json:"variant_display"`
	Status         string    `json:"status"`
	StatusDisplay  string    `json:"status_display"`
	Filename       string    `json:"filename"`
	Title          string    `json:"title,omitempty"`
	DisplayName    string    `json:"display_name"`
	URL            string    `json:"url,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MessageView is one conversation turn as the chat surface shows it.
type MessageView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func ToDocumentView(doc *models.Document) DocumentView {
	return DocumentView{
		ID:             doc.ID,
		Variant:        string(doc.Variant),
		VariantDisplay: doc.Variant.Display(),
		Status:         string(doc.Status),
		StatusDisplay:  doc.Status.Display(),
		Filename:       doc.Filename(),
		Title:          doc.Title,
		DisplayName:    doc.DisplayName(),
		URL:            doc.URL,
		Summary:        doc.Summary,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

func ToDocumentViews(docs []*models.Document) []DocumentView {
	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, ToDocumentView(d))
	}
	return views
}

func ToMessageViews(msgs []models.Message) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, MessageView{Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return views
}
