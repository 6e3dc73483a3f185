package models

import (
	"path"
	"time"
)

// Variant 文档来源类型
type Variant string

const (
	VariantDocument Variant = "document"
	VariantYouTube  Variant = "youtube"
)

// Display returns the human label shown in listings.
func (v Variant) Display() string {
	switch v {
	case VariantDocument:
		return "Document"
	case VariantYouTube:
		return "YouTube Video"
	default:
		return string(v)
	}
}

func (v Variant) Valid() bool {
	return v == VariantDocument || v == VariantYouTube
}

// Status 文档处理状态
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

func (s Status) Display() string {
	switch s {
	case StatusUploaded:
		return "Uploaded"
	case StatusProcessing:
		return "Processing"
	case StatusDone:
		return "Done"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// Terminal reports whether no further transition happens without a new run.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Document is a submitted PDF or YouTube link. Exactly one of File and URL is
// set, chosen by Variant.
type Document struct {
	ID        string    `json:"id"`
	Variant   Variant   `json:"variant"`
	File      string    `json:"file,omitempty"` // storage key of the uploaded PDF
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	Status    Status    `json:"status"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filename returns the base name of the uploaded file, or "No file".
func (d *Document) Filename() string {
	if d.File == "" {
		return "No file"
	}
	return path.Base(d.File)
}

// DisplayName is the title for videos and the filename for PDFs.
func (d *Document) DisplayName() string {
	if d.Variant == VariantYouTube {
		if d.Title != "" {
			return d.Title
		}
		return "Untitled video"
	}
	if d.Title != "" {
		return d.Title
	}
	return d.Filename()
}

// Chunk is a contiguous slice of a document's extracted text.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}
