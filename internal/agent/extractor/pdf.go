package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/document-summarizer/internal/models"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

// Opener fetches stored bytes by key; pkg/storage.Storage satisfies it.
type Opener interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

type PDFExtractor struct {
	files  Opener
	logger logger.Logger
}

func NewPDFExtractor(files Opener, log logger.Logger) *PDFExtractor {
	return &PDFExtractor{
		files:  files,
		logger: log,
	}
}

// Extract joins the plain text of every page in order, one newline between
// pages, and trims the result.
func (p *PDFExtractor) Extract(ctx context.Context, doc *models.Document) (Result, error) {
	if doc.File == "" {
		return Result{}, apperrors.NewExtractionError("extract.pdf", "document has no file", nil)
	}

	rc, err := p.files.Get(ctx, doc.File)
	if err != nil {
		return Result{}, apperrors.NewExtractionError("extract.pdf", "cannot open "+doc.File, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return Result{}, apperrors.NewExtractionError("extract.pdf", "cannot read "+doc.File, err)
	}

	text, err := p.ExtractBytes(ctx, content)
	if err != nil {
		return Result{}, err
	}
	return OK(text, doc.Title), nil
}

// ExtractBytes parses an in-memory PDF.
func (p *PDFExtractor) ExtractBytes(ctx context.Context, content []byte) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewExtractionError("extract.pdf", "malformed pdf", fmt.Errorf("%v", r))
		}
	}()

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", apperrors.NewExtractionError("extract.pdf", "cannot parse pdf", err)
	}

	numPages := pdfReader.NumPage()
	var sb strings.Builder
	// pages are read one at a time; the reader caches objects without locking
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", apperrors.NewExtractionError("extract.pdf", fmt.Sprintf("cannot read page %d", i), err)
		}
		pageText = strings.TrimRight(pageText, "\n")
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(pageText)
	}

	p.logger.Debug("Extracted pdf text", logger.Int("pages", numPages))
	return strings.TrimSpace(sb.String()), nil
}
